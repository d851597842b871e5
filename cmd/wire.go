package cmd

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"dashsync/internal/config"
	"dashsync/internal/dismiss"
	"dashsync/internal/metrics"
	"dashsync/internal/redis"
	"dashsync/internal/storage"
	"dashsync/internal/transport"
)

// openStore builds the persisted dismissal store named by the config. The
// returned closer releases the underlying connection.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (dismiss.Store, io.Closer, error) {
	switch cfg.Dismissal.Store {
	case config.StoreMemory:
		return dismiss.NewMemoryStore(), nopCloser{}, nil
	case config.StoreSQLite, config.StoreMySQL:
		db, err := storage.Open(ctx, cfg.Dismissal.Store, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.Migrate(ctx, db, cfg.Dismissal.Store); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Debug("dismissal store opened", zap.String("driver", cfg.Dismissal.Store))
		return storage.NewKV(db, cfg.Dismissal.Store), db, nil
	case config.StoreRedis:
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("dismissal store opened", zap.String("driver", "redis"))
		return redis.NewKV(client), client, nil
	}
	return nil, nil, fmt.Errorf("unsupported dismissal store %q", cfg.Dismissal.Store)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newClient(cfg *config.Config, logger *zap.Logger) (*transport.Client, error) {
	return transport.NewClient(cfg.ServerURL, cfg.HTTPTimeout.Std(), logger)
}

// dismisserDeps are the view-side collaborators a command can offer.
type dismisserDeps struct {
	Confirmer dismiss.Confirmer
	Notifier  dismiss.Notifier
	Reloader  dismiss.Reloader
	View      dismiss.View
	Overlays  dismiss.Overlays
	Metrics   *metrics.Metrics
}

// newDismisser builds the one dismisser the configured mode calls for. The
// TTL variant also returns its cache so callers can inspect records.
func newDismisser(ctx context.Context, cfg *config.Config, logger *zap.Logger, deps dismisserDeps) (dismiss.Dismisser, *dismiss.TTLCache, io.Closer, error) {
	switch cfg.Dismissal.Mode {
	case config.ModeTTL:
		store, closer, err := openStore(ctx, cfg, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		opts := []dismiss.TTLOption{
			dismiss.WithTTLLogger(logger),
			dismiss.WithTTLMetrics(deps.Metrics),
		}
		if deps.Confirmer != nil {
			opts = append(opts, dismiss.WithConfirmer(deps.Confirmer))
		}
		if deps.View != nil {
			opts = append(opts, dismiss.WithView(deps.View))
		}
		if deps.Overlays != nil {
			opts = append(opts, dismiss.WithOverlays(deps.Overlays))
		}
		cache := dismiss.NewTTLCache(store, cfg.Dismissal.TTL.Std(), opts...)
		return cache, cache, closer, nil
	case config.ModeServer:
		client, err := newClient(cfg, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		d, err := dismiss.NewServerConfirmed(dismiss.ServerDeps{
			Remote:    client,
			Confirmer: deps.Confirmer,
			Notifier:  deps.Notifier,
			Reloader:  deps.Reloader,
			Overlays:  deps.Overlays,
			Logger:    logger,
			Metrics:   deps.Metrics,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return d, nil, nopCloser{}, nil
	}
	return nil, nil, nil, fmt.Errorf("unsupported dismissal mode %q", cfg.Dismissal.Mode)
}
