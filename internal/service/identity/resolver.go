package identity

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
)

// ErrNoDevice is returned when a turn carries no device identifier.
var ErrNoDevice = errors.New("turn carries no device id")

// LinkWriter persists identity links.
type LinkWriter interface {
	SaveLink(ctx context.Context, link profile.IdentityLink) error
}

// Resolver determines the principal a turn's profile is keyed by.
type Resolver struct {
	links      LinkWriter
	background *Background
	now        func() time.Time
}

// NewResolver returns a resolver that records links through links using background.
func NewResolver(links LinkWriter, background *Background) *Resolver {
	return &Resolver{links: links, background: background, now: time.Now}
}

// Resolve returns current unchanged when the conversation already resolved a
// principal. Otherwise a person id wins over the device id, and a person id
// schedules a link write that never delays or fails the caller.
func (r *Resolver) Resolve(ctx context.Context, current *profile.Principal, deviceID, personID string) (profile.Principal, error) {
	if current != nil && current.ID != "" {
		return *current, nil
	}
	deviceID = strings.TrimSpace(deviceID)
	personID = strings.TrimSpace(personID)
	if deviceID == "" {
		return profile.Principal{}, ErrNoDevice
	}
	if personID == "" {
		return profile.Principal{ID: deviceID, DeviceID: deviceID}, nil
	}

	link := profile.IdentityLink{DeviceID: deviceID, PersonID: personID, CreatedAt: r.now().Unix()}
	if r.links != nil && r.background != nil {
		r.background.Submit(ctx, "identity-link", func(ctx context.Context) error {
			return r.links.SaveLink(ctx, link)
		})
	}
	return profile.Principal{ID: personID, Personalized: true, DeviceID: deviceID}, nil
}
