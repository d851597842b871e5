package dismiss

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dashsync/internal/logging"
	"dashsync/internal/metrics"
)

// Remote performs the permanent dismiss call.
type Remote interface {
	DismissOutlier(ctx context.Context, outlierID string) (bool, error)
}

// ServerConfirmed makes dismissals permanent on the server. Nothing is cached
// locally: after a successful call the view is reloaded and the server's
// render no longer carries the warning.
type ServerConfirmed struct {
	remote    Remote
	confirmer Confirmer
	notifier  Notifier
	reloader  Reloader
	overlays  Overlays
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// ServerDeps are the collaborators of ServerConfirmed. Remote, Confirmer and
// Notifier are required.
type ServerDeps struct {
	Remote    Remote
	Confirmer Confirmer
	Notifier  Notifier
	Reloader  Reloader
	Overlays  Overlays
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

func NewServerConfirmed(deps ServerDeps) (*ServerConfirmed, error) {
	if deps.Remote == nil {
		return nil, errors.New("remote required")
	}
	if deps.Confirmer == nil {
		return nil, errors.New("confirmer required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("notifier required")
	}
	return &ServerConfirmed{
		remote:    deps.Remote,
		confirmer: deps.Confirmer,
		notifier:  deps.Notifier,
		reloader:  deps.Reloader,
		overlays:  deps.Overlays,
		logger:    logging.OrNop(deps.Logger),
		metrics:   deps.Metrics,
	}, nil
}

func (s *ServerConfirmed) Variant() string { return VariantServer }

// IsDismissed is always false: dismissed warnings are not rendered by the
// server, so any warning the client sees is live.
func (s *ServerConfirmed) IsDismissed(context.Context, string) bool { return false }

// Dismiss confirms with the user and then issues one dismiss request. On
// failure the user is alerted and nothing changes locally; there is no retry.
func (s *ServerConfirmed) Dismiss(ctx context.Context, outlierID string) error {
	if outlierID == "" {
		return errors.New("outlier id required")
	}
	if !s.confirmer.Confirm(ctx, ConfirmPrompt(outlierID)) {
		s.metrics.Dismissal(VariantServer, metrics.ResultDeclined)
		return ErrDeclined
	}

	ok, err := s.remote.DismissOutlier(ctx, outlierID)
	if err == nil && !ok {
		err = ErrRejected
	}
	if err != nil {
		s.metrics.Dismissal(VariantServer, metrics.ResultError)
		s.logger.Warn("server dismissal failed", zap.String("outlier_id", outlierID), zap.Error(err))
		s.notifier.Alert("Could not remove the outlier warning: " + err.Error())
		return fmt.Errorf("dismiss %s: %w", outlierID, err)
	}

	s.metrics.Dismissal(VariantServer, metrics.ResultOK)
	if s.overlays != nil {
		s.overlays.Dispose(outlierID)
	}
	if s.reloader != nil {
		if err := s.reloader.Reload(ctx); err != nil {
			s.logger.Warn("reload after dismissal failed", zap.Error(err))
			return fmt.Errorf("reload after dismissing %s: %w", outlierID, err)
		}
	}
	s.logger.Info("outlier dismissed on server", zap.String("outlier_id", outlierID))
	return nil
}
