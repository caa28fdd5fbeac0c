package profile

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// record is the stored form of a Profile; sets are kept as sorted lists.
type record struct {
	Profile
	RouteExclusions       map[string][]string `json:"routeExclusions,omitempty"`
	AnnouncedFeatureFlags []string            `json:"announcedFeatureFlags,omitempty"`
}

// Marshal encodes a profile for a key-value backend.
func Marshal(p *Profile) ([]byte, error) {
	if p == nil {
		return nil, errors.New("profile: marshal nil profile")
	}
	rec := record{Profile: *p}
	if len(p.RouteExclusions) > 0 {
		rec.RouteExclusions = make(map[string][]string, len(p.RouteExclusions))
		for stopID, routes := range p.RouteExclusions {
			rec.RouteExclusions[stopID] = SortedSet(routes)
		}
	}
	if len(p.AnnouncedFeatureFlags) > 0 {
		rec.AnnouncedFeatureFlags = SortedSet(p.AnnouncedFeatureFlags)
	}
	return json.Marshal(rec)
}

// Unmarshal decodes a profile written by Marshal.
func Unmarshal(data []byte) (*Profile, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "profile: unmarshal")
	}
	p := rec.Profile
	p.RouteExclusions = make(map[string]map[string]struct{}, len(rec.RouteExclusions))
	for stopID, routes := range rec.RouteExclusions {
		p.SetExcludedRoutes(stopID, routes)
	}
	p.AnnouncedFeatureFlags = make(map[string]struct{}, len(rec.AnnouncedFeatureFlags))
	for _, flag := range rec.AnnouncedFeatureFlags {
		p.AnnouncedFeatureFlags[flag] = struct{}{}
	}
	return &p, nil
}
