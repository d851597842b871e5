package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dashsync/internal/api"
	"dashsync/internal/chatsync"
	"dashsync/internal/dismiss"
	"dashsync/internal/metrics"
	"dashsync/internal/overlay"
	"dashsync/internal/render"
	"dashsync/internal/transport"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sync a conversation and serve it to a local UI",
	Long: `Runs the sync engine for one conversation and exposes the transcript,
outlier dismissal and metrics over HTTP.

Example usage:
  dashsync serve --conversation /conversations/42 --addr :8091`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&conversationPath, "conversation", "", "conversation path on the dashboard server (required)")
	serveCmd.Flags().Int64Var(&initialLastID, "last-id", 0, "highest message id already shown")
	serveCmd.Flags().DurationVar(&pollInterval, "interval", 0, "poll interval (default from config)")

	serveCmd.MarkFlagRequired("conversation")
}

// viewReloader stands in for a page reload: overlays are torn down and the
// transcript is brought up to date.
type viewReloader struct {
	engine   *chatsync.Engine
	overlays *overlay.Registry
}

func (r viewReloader) Reload(ctx context.Context) error {
	r.overlays.Close()
	if _, err := r.engine.Poll(ctx); err != nil && !errors.Is(err, chatsync.ErrPollInFlight) {
		return err
	}
	return nil
}

// logNotifier records alerts in the log; the HTTP response carries the error
// to the UI.
type logNotifier struct {
	logger *zap.Logger
}

func (n logNotifier) Alert(message string) { n.logger.Warn("alert", zap.String("message", message)) }

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	m := metrics.New()
	memory := render.NewMemory()
	html := render.NewHTML(cfg.CurrentUser)
	engine := chatsync.NewEngine(
		transport.ConversationFetcher{Client: client, Path: conversationPath},
		render.Fanout{memory, html},
		initialLastID,
		chatsync.WithLogger(logger),
		chatsync.WithMetrics(m),
	)
	overlays := overlay.NewRegistry(overlay.LogToolkit{Logger: logger}, overlay.DefaultHideDelay)
	defer overlays.Close()

	d, _, closer, err := newDismisser(ctx, cfg, logger, dismisserDeps{
		Confirmer: dismiss.AutoConfirm{},
		Notifier:  logNotifier{logger: logger},
		Reloader:  viewReloader{engine: engine, overlays: overlays},
		View:      overlays.Elements(),
		Overlays:  overlays,
		Metrics:   m,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	handler, err := api.NewHandler(api.Deps{
		Watermark:  engine,
		Transcript: memory,
		HTML:       html,
		Dismisser:  d,
		Overlays:   overlays,
		Metrics:    m,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterRoutes(router)

	addr := serveAddr
	if addr == "" {
		addr = cfg.ServeAddress
	}
	srv := &http.Server{Addr: addr, Handler: router}

	interval := pollInterval
	if interval <= 0 {
		interval = cfg.PollInterval.Std()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		engine.Run(gctx, interval)
		return nil
	})
	g.Go(func() error {
		logger.Info("serving local view", zap.String("addr", addr), zap.String("conversation", conversationPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
