package dialog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
	"github.com/zhouzirui/transit-voice/backend/internal/model/transit"
)

// speechOptions controls how an arrival set is rendered.
type speechOptions struct {
	Excluded      map[string]struct{}
	ClockTime     bool
	Location      *time.Location
	WindowMinutes int
	Now           time.Time
}

// composeArrivals turns an arrival set into one spoken paragraph.
func composeArrivals(set transit.ArrivalSet, opts speechOptions) string {
	now := set.CurrentTime
	if now.IsZero() {
		now = opts.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	upcoming := make([]transit.Arrival, 0, len(set.Arrivals))
	filtered := false
	for _, a := range set.Arrivals {
		if _, skip := opts.Excluded[a.RouteID]; skip {
			filtered = true
			continue
		}
		if a.Expected().Before(now.Add(-time.Minute)) {
			continue
		}
		upcoming = append(upcoming, a)
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].Expected().Before(upcoming[j].Expected())
	})

	if len(upcoming) == 0 {
		if filtered {
			return fmt.Sprintf("There are no upcoming arrivals for your selected routes for the next %d minutes.", opts.WindowMinutes)
		}
		return fmt.Sprintf("There are no upcoming arrivals at your stop for the next %d minutes.", opts.WindowMinutes)
	}

	sentences := make([]string, 0, len(upcoming))
	for _, a := range upcoming {
		sentences = append(sentences, arrivalSentence(a, now, opts.ClockTime, loc))
	}
	return strings.Join(sentences, " ")
}

func arrivalSentence(a transit.Arrival, now time.Time, clock bool, loc *time.Location) string {
	route := a.RouteShortName
	if route == "" {
		route = a.RouteID
	}
	subject := "Route " + route
	if a.Headsign != "" {
		subject += " to " + a.Headsign
	}

	expected := a.Expected()
	minutes := int(expected.Sub(now) / time.Minute)
	switch {
	case minutes <= 0:
		return subject + " is arriving now."
	case clock:
		return fmt.Sprintf("%s is arriving at %s.", subject, expected.In(loc).Format("3:04 PM"))
	case minutes == 1:
		return subject + " is arriving in 1 minute."
	default:
		return fmt.Sprintf("%s is arriving in %d minutes.", subject, minutes)
	}
}

// arrivalsText fetches arrivals for the session's stop and renders them.
func (r *Router) arrivalsText(ctx context.Context, sess *dialog.Session) (string, error) {
	client := r.transit.ForRegion(sess.TransitBaseURL.Value)
	set, err := client.GetArrivals(ctx, sess.StopID.Value, r.opts.ArrivalsWindowMinutes)
	if err != nil {
		return "", external(serviceTransit, err)
	}

	excluded := make(map[string]struct{})
	for _, id := range sess.RouteExclusions.Value[sess.StopID.Value] {
		excluded[id] = struct{}{}
	}
	return composeArrivals(set, speechOptions{
		Excluded:      excluded,
		ClockTime:     sess.SpeakClockTime.Value,
		Location:      loadLocation(sess.TimeZone.Value),
		WindowMinutes: r.opts.ArrivalsWindowMinutes,
		Now:           r.now(),
	}), nil
}

// tellArrivals answers with arrivals for a complete session. announce adds the
// one-time feature announcements a launch carries.
func (r *Router) tellArrivals(ctx context.Context, tc *turnContext, announce bool) (dialog.Reply, error) {
	text, err := r.arrivalsText(ctx, tc.session)
	if err != nil {
		return dialog.Reply{}, err
	}

	clockNews := announce && !tc.session.SpeakClockTime.Value &&
		(tc.profile == nil || !tc.profile.HasAnnounced(profile.FeatureClockTimes))
	if clockNews {
		text += promptClockTimeNews
	}
	r.remember(ctx, tc, text, func(p *profile.Profile) {
		if clockNews {
			p.MarkAnnounced(profile.FeatureClockTimes)
		}
	})
	return dialog.Tell(text), nil
}

// remember stores the last spoken answer. Failures are logged, the rider
// already has an answer.
func (r *Router) remember(ctx context.Context, tc *turnContext, text string, extra func(p *profile.Profile)) {
	tc.session.PreviousResponse.Assign(text)
	if tc.session.Stage() != dialog.StageComplete {
		return
	}
	err := r.persist(ctx, tc, func(p *profile.Profile) {
		p.PreviousResponseText = text
		if extra != nil {
			extra(p)
		}
	})
	if err != nil {
		log.Warn().Err(err).Str("component", "dialog").Str("principal", tc.principal.ID).Msg("failed to store previous response")
	}
}

func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Debug().Err(err).Str("timezone", name).Msg("unknown timezone, falling back to UTC")
		return time.UTC
	}
	return loc
}
