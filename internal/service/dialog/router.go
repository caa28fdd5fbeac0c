// Package dialog implements the conversational state machine of the transit
// voice assistant: onboarding, stop disambiguation, route filtering and the
// shared-device profile copy, dispatched from a single intent table.
package dialog

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
	"github.com/zhouzirui/transit-voice/backend/internal/service/transit"
	"github.com/zhouzirui/transit-voice/backend/internal/store"
)

// Options tunes the router.
type Options struct {
	ArrivalsWindowMinutes  int
	StopSearchRadiusMeters int
	SpeakRegionList        bool
	Now                    func() time.Time
}

// Router turns one Turn into one Reply.
type Router struct {
	store    store.ProfileStore
	geo      GeoResolver
	transit  transit.Factory
	identity IdentityResolver
	opts     Options
}

// NewRouter wires the collaborators of the dialog engine.
func NewRouter(profiles store.ProfileStore, geo GeoResolver, transitFactory transit.Factory, identity IdentityResolver, opts Options) *Router {
	if opts.ArrivalsWindowMinutes <= 0 {
		opts.ArrivalsWindowMinutes = 35
	}
	if opts.StopSearchRadiusMeters <= 0 {
		opts.StopSearchRadiusMeters = 40000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Router{
		store:    profiles,
		geo:      geo,
		transit:  transitFactory,
		identity: identity,
		opts:     opts,
	}
}

// turnContext is the state shared by every handler of one turn.
type turnContext struct {
	turn      dialog.Turn
	session   *dialog.Session
	principal profile.Principal
	// profile is the effective stored profile, nil when none exists.
	profile *profile.Profile
	// prior is the dialog state the previous turn left behind.
	prior  dialog.State
	logger zerolog.Logger
}

type intentHandler func(r *Router, ctx context.Context, tc *turnContext) (dialog.Reply, error)

var intentTable = map[string]intentHandler{
	dialog.IntentSetCity:                    (*Router).setCity,
	dialog.IntentSetStopNumber:              (*Router).setStopNumber,
	dialog.IntentGetArrivals:                (*Router).getArrivals,
	dialog.IntentSetRouteFilter:             (*Router).startRouteFilter,
	dialog.IntentGetCity:                    (*Router).getCity,
	dialog.IntentGetStopNumber:              (*Router).getStopNumber,
	dialog.IntentEnableClockTime:            (*Router).enableClockTime,
	dialog.IntentDisableClockTime:           (*Router).disableClockTime,
	dialog.IntentEnableExperimentalRegions:  (*Router).enableExperimentalRegions,
	dialog.IntentDisableExperimentalRegions: (*Router).disableExperimentalRegions,
	dialog.IntentGetSupportedRegions:        (*Router).getSupportedRegions,
	dialog.IntentYes:                        (*Router).yes,
	dialog.IntentNo:                         (*Router).no,
	dialog.IntentRepeat:                     (*Router).repeat,
	dialog.IntentHelp:                       (*Router).help,
	dialog.IntentStop:                       (*Router).goodbye,
	dialog.IntentCancel:                     (*Router).goodbye,
}

// Handle processes one turn. It never returns an error; failures are turned
// into apology replies and logged.
func (r *Router) Handle(ctx context.Context, turn dialog.Turn) dialog.Reply {
	logger := log.With().
		Str("component", "dialog").
		Str("session", turn.SessionID).
		Str("kind", string(turn.Kind)).
		Str("intent", turn.IntentName).
		Logger()

	switch turn.Kind {
	case dialog.TurnSessionEnded:
		logger.Debug().Msg("session ended")
		return dialog.Reply{ShouldEndSession: true}
	case dialog.TurnSkillEnabled:
		r.skillEnabled(ctx, turn, logger)
		return dialog.Reply{ShouldEndSession: true}
	case dialog.TurnSkillDisabled:
		r.skillDisabled(ctx, turn, logger)
		return dialog.Reply{ShouldEndSession: true}
	}

	sess := turn.Session
	if sess == nil {
		sess = dialog.NewSession()
	}
	tc := &turnContext{
		turn:    turn,
		session: sess,
		prior:   sess.DialogState,
		logger:  logger,
	}
	// Every turn starts outside any sub-flow; handlers re-arm the state they need.
	sess.DialogState = dialog.StateNone

	reply, err := r.handle(ctx, tc)
	if err != nil {
		reply = r.fail(tc, err)
	}
	reply.Session = sess
	return reply
}

func (r *Router) handle(ctx context.Context, tc *turnContext) (dialog.Reply, error) {
	principal, err := r.identity.Resolve(ctx, tc.session.Principal, tc.turn.DeviceID, tc.turn.PersonID)
	if err != nil {
		return dialog.Reply{}, &IdentityResolutionError{Err: err}
	}
	tc.principal = principal
	tc.session.Principal = &principal

	if err := r.loadEffectiveProfile(ctx, tc); err != nil {
		return dialog.Reply{}, err
	}

	if tc.turn.Kind == dialog.TurnLaunch {
		return r.launch(ctx, tc)
	}
	handler, ok := intentTable[tc.turn.IntentName]
	if !ok {
		tc.logger.Info().Msg("unknown intent")
		return r.help(ctx, tc)
	}
	return handler(r, ctx, tc)
}

// fail maps an error onto the reply the taxonomy prescribes.
func (r *Router) fail(tc *turnContext, err error) dialog.Reply {
	switch classify(err) {
	case KindUserInput:
		var userErr *UserInputError
		errors.As(err, &userErr)
		tc.logger.Debug().Err(err).Msg("reprompting for slot")
		tc.session.DialogState = tc.prior
		return dialog.Ask(userErr.Reprompt, "")
	case KindExternalService:
		var svcErr *ExternalServiceError
		errors.As(err, &svcErr)
		tc.logger.Warn().Err(err).Str("service", svcErr.Service).Msg("external service failed")
		tc.session.DialogState = tc.prior
		speech := "Sorry, I'm having trouble reaching the " + svcErr.Service + " right now."
		if next := nextQuestion(tc.session); next != "" {
			return dialog.Ask(speech+" "+next, next)
		}
		return dialog.Tell(speech + " Please try again later.")
	case KindIdentityResolution, KindPersistenceInvariant:
		tc.logger.Error().Err(err).Msg("turn aborted")
		return dialog.Tell(promptFatal)
	default:
		tc.logger.Error().Err(err).Msg("unexpected dialog error")
		return dialog.Tell(promptFatal)
	}
}

// nextQuestion is the onboarding question the session is waiting on, or
// empty when onboarding is complete.
func nextQuestion(sess *dialog.Session) string {
	switch sess.Stage() {
	case dialog.StageFresh:
		return promptAskCity
	case dialog.StageCityKnown:
		return promptAskStop
	default:
		return ""
	}
}

// profileKey is the principal id writes go to.
func (tc *turnContext) profileKey() string {
	if tc.profile != nil {
		return tc.profile.PrincipalID
	}
	return tc.principal.ID
}

// loadEffectiveProfile loads the profile the turn reads from and refreshes
// the profile-sourced session fields.
func (r *Router) loadEffectiveProfile(ctx context.Context, tc *turnContext) error {
	p, err := r.loadProfile(ctx, tc.principal.ID)
	if err != nil {
		return err
	}
	tc.profile = p
	Reconcile(tc.session, p)
	return nil
}

func (r *Router) loadProfile(ctx context.Context, id string) (*profile.Profile, error) {
	p, ok, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, external(serviceStore, err)
	}
	if !ok {
		return nil, nil
	}
	if missing := p.MissingFields(); len(missing) > 0 {
		return nil, &PersistenceInvariantViolation{PrincipalID: id, Missing: missing}
	}
	return p, nil
}

// persist applies mutate to a copy of the effective profile and saves it.
// A missing profile is built from the session.
func (r *Router) persist(ctx context.Context, tc *turnContext, mutate func(p *profile.Profile)) error {
	p := tc.profile.Clone()
	if p == nil {
		p = profileFromSession(tc.profileKey(), tc.session)
	}
	mutate(p)
	p.Touch(r.now())
	if missing := p.MissingFields(); len(missing) > 0 {
		return &PersistenceInvariantViolation{PrincipalID: p.PrincipalID, Missing: missing}
	}
	if err := r.store.Save(ctx, p); err != nil {
		return external(serviceStore, err)
	}
	tc.profile = p
	return nil
}

func profileFromSession(id string, sess *dialog.Session) *profile.Profile {
	p := &profile.Profile{
		PrincipalID:                id,
		City:                       sess.City.Value,
		StopID:                     sess.StopID.Value,
		StopCode:                   sess.StopCode.Value,
		RegionID:                   sess.RegionID.Value,
		RegionName:                 sess.RegionName.Value,
		TransitBaseURL:             sess.TransitBaseURL.Value,
		TimeZone:                   sess.TimeZone.Value,
		SpeakClockTime:             sess.SpeakClockTime.Value,
		ExperimentalRegionsEnabled: sess.ExperimentalRegions.Value,
	}
	for stopID, routes := range sess.RouteExclusions.Value {
		p.SetExcludedRoutes(stopID, routes)
	}
	return p
}

func (r *Router) now() time.Time {
	return r.opts.Now()
}
