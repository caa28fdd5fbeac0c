package profile

import (
	"sort"
	"time"
)

// Feature flags announced once per user.
const (
	FeatureClockTimes = "clock_times"
)

// Profile is the durable per-principal record of a rider's settings.
type Profile struct {
	PrincipalID                string                         `json:"principalId"`
	City                       string                         `json:"city"`
	StopID                     string                         `json:"stopId"`
	StopCode                   string                         `json:"stopCode"`
	RegionID                   string                         `json:"regionId"`
	RegionName                 string                         `json:"regionName"`
	TransitBaseURL             string                         `json:"transitBaseUrl"`
	PreviousResponseText       string                         `json:"previousResponseText,omitempty"`
	LastAccessEpoch            int64                          `json:"lastAccessEpoch"`
	SpeakClockTime             bool                           `json:"speakClockTime"`
	TimeZone                   string                         `json:"timeZone,omitempty"`
	RouteExclusions            map[string]map[string]struct{} `json:"-"`
	ExperimentalRegionsEnabled bool                           `json:"experimentalRegionsEnabled"`
	AnnouncedIntroduction      bool                           `json:"announcedIntroduction"`
	AnnouncedFeatureFlags      map[string]struct{}            `json:"-"`
	Version                    int64                          `json:"version"`
}

// MissingFields reports which of the fields a stored profile must carry are empty.
func (p *Profile) MissingFields() []string {
	var missing []string
	if p.City == "" {
		missing = append(missing, "city")
	}
	if p.StopID == "" {
		missing = append(missing, "stopId")
	}
	if p.RegionID == "" {
		missing = append(missing, "regionId")
	}
	if p.TransitBaseURL == "" {
		missing = append(missing, "transitBaseUrl")
	}
	return missing
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.RouteExclusions = make(map[string]map[string]struct{}, len(p.RouteExclusions))
	for stopID, routes := range p.RouteExclusions {
		cp.RouteExclusions[stopID] = copySet(routes)
	}
	cp.AnnouncedFeatureFlags = copySet(p.AnnouncedFeatureFlags)
	return &cp
}

// ExcludedRoutes returns the exclusion set for a stop, never nil.
func (p *Profile) ExcludedRoutes(stopID string) map[string]struct{} {
	if routes, ok := p.RouteExclusions[stopID]; ok {
		return copySet(routes)
	}
	return map[string]struct{}{}
}

// SetExcludedRoutes replaces the exclusion set for a stop.
func (p *Profile) SetExcludedRoutes(stopID string, routeIDs []string) {
	if p.RouteExclusions == nil {
		p.RouteExclusions = make(map[string]map[string]struct{})
	}
	set := make(map[string]struct{}, len(routeIDs))
	for _, id := range routeIDs {
		set[id] = struct{}{}
	}
	p.RouteExclusions[stopID] = set
}

// HasAnnounced reports whether a feature flag was already announced.
func (p *Profile) HasAnnounced(flag string) bool {
	_, ok := p.AnnouncedFeatureFlags[flag]
	return ok
}

// MarkAnnounced records a feature flag as announced.
func (p *Profile) MarkAnnounced(flag string) {
	if p.AnnouncedFeatureFlags == nil {
		p.AnnouncedFeatureFlags = make(map[string]struct{})
	}
	p.AnnouncedFeatureFlags[flag] = struct{}{}
}

// Touch refreshes the last access time.
func (p *Profile) Touch(now time.Time) {
	p.LastAccessEpoch = now.Unix()
}

// SortedSet flattens a set into a sorted slice.
func SortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func copySet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
