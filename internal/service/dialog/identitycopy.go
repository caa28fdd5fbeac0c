package dialog

import (
	"context"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
)

const promptCopyOffer = "I found settings saved for this device. Would you like me to copy them to your own profile?"

// offerProfileCopy asks a recognized person without a profile whether to copy
// the device profile. The question is asked at most once per conversation.
func (r *Router) offerProfileCopy(ctx context.Context, tc *turnContext) (dialog.Reply, bool, error) {
	sess := tc.session
	if !tc.principal.Personalized || tc.profile != nil || sess.CopyOffered {
		return dialog.Reply{}, false, nil
	}
	if sess.Stage() != dialog.StageFresh {
		return dialog.Reply{}, false, nil
	}

	device, err := r.loadProfile(ctx, tc.principal.DeviceID)
	if err != nil {
		return dialog.Reply{}, false, err
	}
	if device == nil {
		return dialog.Reply{}, false, nil
	}

	sess.CopyOffered = true
	sess.DialogState = dialog.StateCopyProfile
	return dialog.Ask(promptCopyOffer, ""), true, nil
}

// answerCopy either clones the device profile to the person, or answers this
// one turn from the device profile. Later turns read the person's own key.
func (r *Router) answerCopy(ctx context.Context, tc *turnContext, yes bool) (dialog.Reply, error) {
	device, err := r.loadProfile(ctx, tc.principal.DeviceID)
	if err != nil {
		return dialog.Reply{}, err
	}
	if device == nil {
		return dialog.Ask(promptWelcome+" "+promptAskCity, promptAskCity), nil
	}

	sess := tc.session
	if !yes {
		tc.profile = device
		Reconcile(sess, device)
		tc.logger.Info().Str("device", device.PrincipalID).Msg("using device profile")
		return r.tellArrivals(ctx, tc, false)
	}

	clone := device.Clone()
	clone.PrincipalID = tc.principal.ID
	clone.Version = 0
	clone.PreviousResponseText = ""
	clone.Touch(r.now())
	if err := r.store.Save(ctx, clone); err != nil {
		return dialog.Reply{}, external(serviceStore, err)
	}
	tc.profile = clone
	Reconcile(sess, clone)
	tc.logger.Info().Str("device", device.PrincipalID).Str("person", clone.PrincipalID).Msg("device profile copied")
	return r.tellArrivals(ctx, tc, false)
}
