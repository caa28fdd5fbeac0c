package dialog

import (
	"context"
	"strings"
	"unicode"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
	"github.com/zhouzirui/transit-voice/backend/internal/model/transit"
)

func (r *Router) launch(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	if reply, offered, err := r.offerProfileCopy(ctx, tc); err != nil || offered {
		return reply, err
	}

	switch tc.session.Stage() {
	case dialog.StageFresh:
		return dialog.Ask(promptWelcome+" "+promptAskCity, promptAskCity), nil
	case dialog.StageCityKnown:
		return dialog.Ask(askStopForCity(tc.session.City.Value), promptAskStop), nil
	}
	return r.tellArrivals(ctx, tc, true)
}

func (r *Router) setCity(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	city := tc.turn.Slot(dialog.SlotCityName)
	if city == "" {
		return dialog.Reply{}, &UserInputError{Slot: dialog.SlotCityName, Reprompt: "Sorry, I didn't catch the city. " + promptAskCity}
	}

	loc, region, reply, ok, err := r.locateCity(ctx, tc, city)
	if err != nil || !ok {
		return reply, err
	}

	sess := tc.session
	sess.City.Assign(city)
	sess.SetRegion(region)

	if tc.prior == dialog.StateStopBeforeCity && sess.StopCode.Value != "" {
		return r.resolveStopAt(ctx, tc, loc, sess.StopCode.Value)
	}
	sess.StopID.Assign("")
	sess.StopCode.Assign("")
	sess.ClearFlows()
	return dialog.Ask(askStopForCity(city), promptAskStop), nil
}

// locateCity geocodes a city and picks its region. When either lookup comes
// back empty, ok is false and reply re-asks for the city keeping the prior
// asking state.
func (r *Router) locateCity(ctx context.Context, tc *turnContext, city string) (transit.LatLng, transit.Region, dialog.Reply, bool, error) {
	loc, found, err := r.geo.Geocode(ctx, city)
	if err != nil {
		return loc, transit.Region{}, dialog.Reply{}, false, external(serviceGeocoder, err)
	}
	if !found {
		tc.session.DialogState = tc.prior
		return loc, transit.Region{}, dialog.Ask(cityNotFound(city), promptAskCity), false, nil
	}

	region, found, err := r.geo.NearestRegion(ctx, loc, tc.session.ExperimentalRegions.Value)
	if err != nil {
		return loc, region, dialog.Reply{}, false, external(serviceGeocoder, err)
	}
	if !found {
		var regions []transit.Region
		if r.opts.SpeakRegionList {
			regions, err = r.geo.AllRegions(ctx, tc.session.ExperimentalRegions.Value)
			if err != nil {
				tc.logger.Warn().Err(err).Msg("failed to list regions")
			}
		}
		tc.session.DialogState = tc.prior
		return loc, region, dialog.Ask(noRegionNear(city, regions), promptAskCity), false, nil
	}
	return loc, region, dialog.Reply{}, true, nil
}

func (r *Router) setStopNumber(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	code := normalizeStopCode(tc.turn.Slot(dialog.SlotStopNumber))
	if code == "" {
		return dialog.Reply{}, &UserInputError{Slot: dialog.SlotStopNumber, Reprompt: "Sorry, I didn't catch the stop number. " + promptAskStop}
	}

	sess := tc.session
	if sess.City.Value == "" {
		sess.StopCode.Assign(code)
		sess.DialogState = dialog.StateStopBeforeCity
		return dialog.Ask("Ok, I'll remember stop "+code+". "+promptAskCity, promptAskCity), nil
	}

	// The city location is looked up again on every stop search.
	loc, region, reply, ok, err := r.locateCity(ctx, tc, sess.City.Value)
	if err != nil {
		return reply, err
	}
	if !ok {
		sess.City.Assign("")
		sess.StopCode.Assign(code)
		sess.DialogState = dialog.StateStopBeforeCity
		return reply, nil
	}
	sess.SetRegion(region)
	return r.resolveStopAt(ctx, tc, loc, code)
}

// resolveStopAt searches the session's region for the rider code near loc.
func (r *Router) resolveStopAt(ctx context.Context, tc *turnContext, loc transit.LatLng, code string) (dialog.Reply, error) {
	sess := tc.session
	client := r.transit.ForRegion(sess.TransitBaseURL.Value)
	stops, err := client.FindStopsByRiderCode(ctx, loc, r.opts.StopSearchRadiusMeters, code)
	if err != nil {
		return dialog.Reply{}, external(serviceTransit, err)
	}

	switch len(stops) {
	case 0:
		if sess.StopID.Value == "" {
			sess.StopCode.Assign("")
		}
		return dialog.Ask(stopNotFound(code, sess.City.Value), promptAskStop), nil
	case 1:
		return r.finishOnboarding(ctx, tc, stops[0])
	}

	sess.CandidateStops = stops
	sess.DialogState = dialog.StateVerifyStop
	tc.logger.Debug().Int("candidates", len(stops)).Str("code", code).Msg("ambiguous stop code")
	speech := "I found " + spokenCount(len(stops)) + " stops with that number. " + askVerifyStop(stops[0])
	return dialog.Ask(speech, askVerifyStop(stops[0])), nil
}

// finishOnboarding persists a chosen stop and answers with its arrivals.
func (r *Router) finishOnboarding(ctx context.Context, tc *turnContext, stop transit.Stop) (dialog.Reply, error) {
	sess := tc.session
	client := r.transit.ForRegion(sess.TransitBaseURL.Value)

	tz, err := client.GetRegionTimeZone(ctx)
	if err != nil {
		tc.logger.Warn().Err(err).Msg("failed to load region timezone")
		tz = sess.TimeZone.Value
	}

	firstTime := tc.profile == nil || !tc.profile.AnnouncedIntroduction
	err = r.persist(ctx, tc, func(p *profile.Profile) {
		p.City = sess.City.Value
		p.StopID = stop.ID
		p.StopCode = stop.Code
		p.RegionID = sess.RegionID.Value
		p.RegionName = sess.RegionName.Value
		p.TransitBaseURL = sess.TransitBaseURL.Value
		p.TimeZone = tz
		p.SpeakClockTime = sess.SpeakClockTime.Value
		p.ExperimentalRegionsEnabled = sess.ExperimentalRegions.Value
		p.AnnouncedIntroduction = true
	})
	if err != nil {
		return dialog.Reply{}, err
	}

	sess.StopID.Assign(stop.ID)
	sess.StopCode.Assign(stop.Code)
	sess.TimeZone.Assign(tz)
	sess.ClearFlows()
	tc.logger.Info().Str("principal", tc.profileKey()).Str("stop", stop.ID).Msg("onboarding complete")

	text := confirmStop(stop)
	arrivals, err := r.arrivalsText(ctx, sess)
	if err != nil {
		tc.logger.Warn().Err(err).Msg("arrivals unavailable after onboarding")
		text += " I couldn't get arrival times right now, but your stop is saved."
	} else {
		text += " " + arrivals
	}
	if firstTime {
		text += promptIntroduction
	}
	r.remember(ctx, tc, text, nil)
	return dialog.Tell(text), nil
}

func normalizeStopCode(raw string) string {
	return strings.Map(func(c rune) rune {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			return c
		}
		return -1
	}, raw)
}

func spokenCount(n int) string {
	words := []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten"}
	if n >= 0 && n < len(words) {
		return words[n]
	}
	return "several"
}
