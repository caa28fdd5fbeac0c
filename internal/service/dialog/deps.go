package dialog

import (
	"context"

	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
	"github.com/zhouzirui/transit-voice/backend/internal/model/transit"
)

// GeoResolver is the geocoding plus region lookup collaborator.
type GeoResolver interface {
	Geocode(ctx context.Context, text string) (transit.LatLng, bool, error)
	NearestRegion(ctx context.Context, loc transit.LatLng, includeExperimental bool) (transit.Region, bool, error)
	AllRegions(ctx context.Context, includeExperimental bool) ([]transit.Region, error)
}

// IdentityResolver picks the principal of a turn.
type IdentityResolver interface {
	Resolve(ctx context.Context, current *profile.Principal, deviceID, personID string) (profile.Principal, error)
}
