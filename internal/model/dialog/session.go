package dialog

import (
	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
	"github.com/zhouzirui/transit-voice/backend/internal/model/transit"
)

// State is the tagged state of a multi-turn sub-flow.
type State string

const (
	StateNone           State = ""
	StateStopBeforeCity State = "stop_before_city"
	StateVerifyStop     State = "verify_stop"
	StateFilterRoutes   State = "filter_routes"
	StateCopyProfile    State = "copy_profile"
)

// Stage is the onboarding position derived from the session fields.
type Stage int

const (
	StageFresh Stage = iota
	StageCityKnown
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageCityKnown:
		return "city_known"
	case StageComplete:
		return "complete"
	default:
		return "fresh"
	}
}

// Field holds a value plus whether the user set it during this conversation.
// Fields with Set=false were copied from the profile and may be refreshed.
type Field[T any] struct {
	Value T    `json:"value"`
	Set   bool `json:"set,omitempty"`
}

// Assign stores a conversation-set value.
func (f *Field[T]) Assign(v T) {
	f.Value = v
	f.Set = true
}

// Session is the ephemeral per-conversation state. It is never the source of
// truth; it can always be rebuilt from a Profile plus in-conversation answers.
type Session struct {
	Principal   *profile.Principal `json:"principal,omitempty"`
	DialogState State              `json:"dialogState,omitempty"`

	City                Field[string]              `json:"city"`
	StopID              Field[string]              `json:"stopId"`
	StopCode            Field[string]              `json:"stopCode"`
	RegionID            Field[string]              `json:"regionId"`
	RegionName          Field[string]              `json:"regionName"`
	TransitBaseURL      Field[string]              `json:"transitBaseUrl"`
	TimeZone            Field[string]              `json:"timeZone"`
	PreviousResponse    Field[string]              `json:"previousResponseText"`
	SpeakClockTime      Field[bool]                `json:"speakClockTime"`
	ExperimentalRegions Field[bool]                `json:"experimentalRegionsEnabled"`
	RouteExclusions     Field[map[string][]string] `json:"routeExclusions"`

	CandidateStops        []transit.Stop  `json:"candidateStops,omitempty"`
	CandidateRoutes       []transit.Route `json:"candidateRoutes,omitempty"`
	FilterStopID          string          `json:"filterStopId,omitempty"`
	AccumulatedExclusions []string        `json:"accumulatedExclusions,omitempty"`
	ExcludedRouteNames    []string        `json:"excludedRouteNames,omitempty"`

	// CopyOffered is set once the shared-device copy question was asked.
	CopyOffered bool `json:"copyOffered,omitempty"`
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// Stage derives the onboarding position.
func (s *Session) Stage() Stage {
	switch {
	case s.City.Value == "":
		return StageFresh
	case s.StopID.Value == "" || s.RegionID.Value == "":
		return StageCityKnown
	default:
		return StageComplete
	}
}

// Region returns the region currently stored in the session.
func (s *Session) Region() transit.Region {
	return transit.Region{
		ID:      s.RegionID.Value,
		Name:    s.RegionName.Value,
		BaseURL: s.TransitBaseURL.Value,
	}
}

// SetRegion stores a conversation-set region.
func (s *Session) SetRegion(r transit.Region) {
	s.RegionID.Assign(r.ID)
	s.RegionName.Assign(r.Name)
	s.TransitBaseURL.Assign(r.BaseURL)
}

// ClearFlows drops any candidate lists left over from a sub-flow.
func (s *Session) ClearFlows() {
	s.CandidateStops = nil
	s.CandidateRoutes = nil
	s.FilterStopID = ""
	s.AccumulatedExclusions = nil
	s.ExcludedRouteNames = nil
}
