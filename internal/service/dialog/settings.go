package dialog

import (
	"context"
	"fmt"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
)

func (r *Router) yes(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	return r.answer(ctx, tc, true)
}

func (r *Router) no(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	return r.answer(ctx, tc, false)
}

// answer routes a yes/no to the sub-flow the previous turn was waiting on.
func (r *Router) answer(ctx context.Context, tc *turnContext, yes bool) (dialog.Reply, error) {
	switch tc.prior {
	case dialog.StateVerifyStop:
		return r.verifyStop(ctx, tc, yes)
	case dialog.StateFilterRoutes:
		return r.answerRoute(ctx, tc, yes)
	case dialog.StateCopyProfile:
		return r.answerCopy(ctx, tc, yes)
	case dialog.StateStopBeforeCity:
		tc.session.DialogState = tc.prior
		return dialog.Ask(promptAskCity, ""), nil
	}
	return r.help(ctx, tc)
}

func (r *Router) getArrivals(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	if next := nextQuestion(tc.session); next != "" {
		return dialog.Ask(promptNeedOnboarding+" "+next, next), nil
	}
	return r.tellArrivals(ctx, tc, false)
}

func (r *Router) getCity(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	city := tc.session.City.Value
	if city == "" {
		return dialog.Ask("I don't know your city yet. "+promptAskCity, promptAskCity), nil
	}
	speech := fmt.Sprintf("Your city is %s.", city)
	if name := tc.session.RegionName.Value; name != "" {
		speech = fmt.Sprintf("Your city is %s, in the %s region.", city, name)
	}
	return dialog.Tell(speech), nil
}

func (r *Router) getStopNumber(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	if tc.session.StopID.Value == "" {
		if next := nextQuestion(tc.session); next != "" {
			return dialog.Ask("I don't know your stop yet. "+next, next), nil
		}
	}
	return dialog.Tell(fmt.Sprintf("Your stop number is %s.", tc.session.StopCode.Value)), nil
}

func (r *Router) enableClockTime(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	return r.setClockTime(ctx, tc, true)
}

func (r *Router) disableClockTime(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	return r.setClockTime(ctx, tc, false)
}

func (r *Router) setClockTime(ctx context.Context, tc *turnContext, on bool) (dialog.Reply, error) {
	if err := r.updateSetting(ctx, tc, func(p *profile.Profile) {
		p.SpeakClockTime = on
		p.MarkAnnounced(profile.FeatureClockTimes)
	}); err != nil {
		return dialog.Reply{}, err
	}
	tc.session.SpeakClockTime.Assign(on)

	speech := "Ok, I'll tell you arrival times in minutes."
	if on {
		speech = "Ok, I'll tell you arrival times as clock times."
	}
	return r.settingReply(tc, speech), nil
}

func (r *Router) enableExperimentalRegions(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	return r.setExperimentalRegions(ctx, tc, true)
}

func (r *Router) disableExperimentalRegions(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	return r.setExperimentalRegions(ctx, tc, false)
}

func (r *Router) setExperimentalRegions(ctx context.Context, tc *turnContext, on bool) (dialog.Reply, error) {
	if err := r.updateSetting(ctx, tc, func(p *profile.Profile) {
		p.ExperimentalRegionsEnabled = on
	}); err != nil {
		return dialog.Reply{}, err
	}
	tc.session.ExperimentalRegions.Assign(on)

	speech := "Ok, experimental regions are off."
	if on {
		speech = "Ok, experimental regions are on. Service in these regions may be less reliable."
	}
	return r.settingReply(tc, speech), nil
}

// updateSetting persists a setting whenever a stored profile exists, even
// while the rider is part way through changing city. A rider who has never
// finished onboarding keeps the setting in the session until the profile is
// first saved.
func (r *Router) updateSetting(ctx context.Context, tc *turnContext, mutate func(p *profile.Profile)) error {
	if tc.profile == nil && tc.session.Stage() != dialog.StageComplete {
		return nil
	}
	return r.persist(ctx, tc, mutate)
}

func (r *Router) settingReply(tc *turnContext, speech string) dialog.Reply {
	if next := nextQuestion(tc.session); next != "" {
		return dialog.Ask(speech+" "+next, next)
	}
	return dialog.Tell(speech)
}

func (r *Router) getSupportedRegions(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	regions, err := r.geo.AllRegions(ctx, tc.session.ExperimentalRegions.Value)
	if err != nil {
		return dialog.Reply{}, external(serviceGeocoder, err)
	}
	if len(regions) == 0 {
		return r.settingReply(tc, "I don't have any supported regions right now."), nil
	}
	return r.settingReply(tc, "Supported regions are "+regionNames(regions)+"."), nil
}

func (r *Router) repeat(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	if prev := tc.session.PreviousResponse.Value; prev != "" {
		return dialog.Tell(prev), nil
	}
	return dialog.Ask(promptNothingToRepeat, ""), nil
}

func (r *Router) help(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	if next := nextQuestion(tc.session); next != "" {
		return dialog.Ask("I can tell you when your next bus is coming once I know your city and stop. "+next, next), nil
	}
	return dialog.Ask(promptHelp, ""), nil
}

func (r *Router) goodbye(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	return dialog.Tell(promptGoodbye), nil
}
