package dialog

import (
	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
)

// Reconcile refreshes every session field the user has not set during this
// conversation from the stored profile. A nil profile clears those fields.
// Conversation-set fields are left untouched. Calling it twice with the same
// profile is a no-op.
func Reconcile(sess *dialog.Session, p *profile.Profile) {
	if p == nil {
		p = &profile.Profile{}
	}
	refresh(&sess.City, p.City)
	refresh(&sess.StopID, p.StopID)
	refresh(&sess.StopCode, p.StopCode)
	refresh(&sess.RegionID, p.RegionID)
	refresh(&sess.RegionName, p.RegionName)
	refresh(&sess.TransitBaseURL, p.TransitBaseURL)
	refresh(&sess.TimeZone, p.TimeZone)
	refresh(&sess.PreviousResponse, p.PreviousResponseText)
	refresh(&sess.SpeakClockTime, p.SpeakClockTime)
	refresh(&sess.ExperimentalRegions, p.ExperimentalRegionsEnabled)
	refresh(&sess.RouteExclusions, exclusionsOf(p))
}

func refresh[T any](f *dialog.Field[T], v T) {
	if !f.Set {
		f.Value = v
	}
}

func exclusionsOf(p *profile.Profile) map[string][]string {
	if len(p.RouteExclusions) == 0 {
		return nil
	}
	out := make(map[string][]string, len(p.RouteExclusions))
	for stopID, routes := range p.RouteExclusions {
		out[stopID] = profile.SortedSet(routes)
	}
	return out
}
