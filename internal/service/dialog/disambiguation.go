package dialog

import (
	"context"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
)

// verifyStop consumes a yes/no about the head of the candidate stop list.
func (r *Router) verifyStop(ctx context.Context, tc *turnContext, yes bool) (dialog.Reply, error) {
	sess := tc.session
	candidates := sess.CandidateStops
	if len(candidates) == 0 {
		return dialog.Ask(promptAskStop, ""), nil
	}

	if yes {
		return r.finishOnboarding(ctx, tc, candidates[0])
	}

	rest := candidates[1:]
	if len(rest) == 0 {
		sess.CandidateStops = nil
		if sess.StopID.Value == "" {
			sess.StopCode.Assign("")
		}
		return dialog.Ask(promptStopNotLocated, promptAskStop), nil
	}
	sess.CandidateStops = rest
	sess.DialogState = dialog.StateVerifyStop
	return dialog.Ask(askVerifyStop(rest[0]), ""), nil
}
