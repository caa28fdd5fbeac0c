package dialog

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/transit-voice/backend/internal/model/dialog"
	"github.com/zhouzirui/transit-voice/backend/internal/model/profile"
)

// skillEnabled records that the account enabled the assistant.
func (r *Router) skillEnabled(ctx context.Context, turn dialog.Turn, logger zerolog.Logger) {
	if turn.DeviceID == "" {
		logger.Warn().Msg("enable event without device id")
		return
	}
	event := profile.EnableEvent{
		ID:           uuid.NewString(),
		PrincipalID:  turn.DeviceID,
		EpochSeconds: r.now().Unix(),
	}
	if err := r.store.SaveEnableEvent(ctx, event); err != nil {
		logger.Error().Err(err).Msg("failed to record enable event")
		return
	}
	logger.Info().Str("device", turn.DeviceID).Msg("assistant enabled")
}

// skillDisabled deletes the device profile, every linked person profile and
// the links themselves.
func (r *Router) skillDisabled(ctx context.Context, turn dialog.Turn, logger zerolog.Logger) {
	if turn.DeviceID == "" {
		logger.Warn().Msg("disable event without device id")
		return
	}
	links, err := r.store.GetLinks(ctx, turn.DeviceID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load identity links")
		return
	}

	ids := make([]string, 0, len(links)+1)
	ids = append(ids, turn.DeviceID)
	for _, link := range links {
		ids = append(ids, link.PersonID)
	}
	if err := r.store.DeleteAll(ctx, ids); err != nil {
		logger.Error().Err(err).Strs("principals", ids).Msg("failed to delete profiles")
		return
	}
	if err := r.store.DeleteLinks(ctx, links); err != nil {
		logger.Error().Err(err).Msg("failed to delete identity links")
		return
	}
	logger.Info().Str("device", turn.DeviceID).Int("profiles", len(ids)).Msg("assistant disabled, profiles removed")
}
