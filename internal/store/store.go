// Package store provides durable storage for rider profiles, device-to-person
// identity links and skill enable events.
//
// Four backends implement ProfileStore:
//
//   - MemoryStore: maps behind a mutex, for tests and local development
//   - SQLiteStore: modernc.org/sqlite, one row per profile
//   - RedisStore: go-redis, profiles as JSON values guarded by WATCH
//   - BoltStore: bbolt buckets in a single file
//
// Every Save checks the caller's Version against the stored one and bumps it
// on success. A profile that has never been stored has Version 0.
package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
)

var (
	// ErrVersionConflict is returned by Save when the stored version moved.
	ErrVersionConflict = errors.New("profile version conflict")
	// ErrInvalidKey is returned for empty principal or device ids.
	ErrInvalidKey = errors.New("empty store key")
)

// ProfileStore is the durable CRUD surface the dialog engine depends on.
type ProfileStore interface {
	Get(ctx context.Context, principalID string) (*profile.Profile, bool, error)
	Save(ctx context.Context, p *profile.Profile) error
	DeleteAll(ctx context.Context, principalIDs []string) error

	GetLinks(ctx context.Context, deviceID string) ([]profile.IdentityLink, error)
	SaveLink(ctx context.Context, link profile.IdentityLink) error
	DeleteLinks(ctx context.Context, links []profile.IdentityLink) error

	SaveEnableEvent(ctx context.Context, event profile.EnableEvent) error

	Close() error
}

func validKey(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidKey
	}
	return nil
}

func validLink(link profile.IdentityLink) error {
	if err := validKey(link.DeviceID); err != nil {
		return err
	}
	return validKey(link.PersonID)
}
