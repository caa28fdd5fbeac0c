package dialog

import (
	"context"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
)

func (r *Router) startRouteFilter(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	sess := tc.session
	if next := nextQuestion(sess); next != "" {
		return dialog.Ask(promptNeedOnboarding+" "+next, next), nil
	}

	stopID := sess.StopID.Value
	routes, err := r.transit.ForRegion(sess.TransitBaseURL.Value).GetRoutesForStop(ctx, stopID)
	if err != nil {
		return dialog.Reply{}, external(serviceTransit, err)
	}
	switch len(routes) {
	case 0:
		return dialog.Tell("I couldn't find any routes serving your stop, so there is nothing to filter."), nil
	case 1:
		return dialog.Tell("Your stop is only served by one route, so there is nothing to filter."), nil
	}

	sess.CandidateRoutes = routes
	sess.FilterStopID = stopID
	sess.AccumulatedExclusions = []string{}
	sess.DialogState = dialog.StateFilterRoutes
	speech := "Let's pick the routes you want to hear about. " + askRoute(routes[0])
	return dialog.Ask(speech, askRoute(routes[0])), nil
}

// answerRoute consumes a yes/no about the head of the candidate route list.
// After the last route the accumulated exclusions replace the stop's
// previous exclusion set.
func (r *Router) answerRoute(ctx context.Context, tc *turnContext, yes bool) (dialog.Reply, error) {
	sess := tc.session
	routes := sess.CandidateRoutes
	if len(routes) == 0 || sess.FilterStopID == "" {
		return r.help(ctx, tc)
	}

	excluded := append([]string(nil), sess.AccumulatedExclusions...)
	names := append([]string(nil), sess.ExcludedRouteNames...)
	if !yes {
		excluded = append(excluded, routes[0].ID)
		names = append(names, routes[0].SpokenName())
	}

	if rest := routes[1:]; len(rest) > 0 {
		sess.CandidateRoutes = rest
		sess.AccumulatedExclusions = excluded
		sess.ExcludedRouteNames = names
		sess.DialogState = dialog.StateFilterRoutes
		return dialog.Ask(askRoute(rest[0]), ""), nil
	}

	stopID := sess.FilterStopID
	err := r.persist(ctx, tc, func(p *profile.Profile) {
		p.SetExcludedRoutes(stopID, excluded)
	})
	if err != nil {
		return dialog.Reply{}, err
	}

	all := make(map[string][]string, len(sess.RouteExclusions.Value)+1)
	for id, ex := range sess.RouteExclusions.Value {
		all[id] = ex
	}
	all[stopID] = excluded
	sess.RouteExclusions.Assign(all)

	sess.ClearFlows()
	tc.logger.Info().Str("stop", stopID).Strs("excluded", excluded).Msg("route filter saved")
	return dialog.Tell(exclusionSummary(names)), nil
}
