package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dashsync/internal/chatsync"
	"dashsync/internal/metrics"
	"dashsync/internal/render"
	"dashsync/internal/transport"
)

var (
	conversationPath string
	initialLastID    int64
	pollInterval     time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a conversation and print new messages",
	Long: `Polls the conversation for messages newer than the last one seen and
prints them to the terminal until interrupted.

Example usage:
  dashsync watch --conversation /conversations/42 --last-id 17`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&conversationPath, "conversation", "", "conversation path on the dashboard server (required)")
	watchCmd.Flags().Int64Var(&initialLastID, "last-id", 0, "highest message id already shown")
	watchCmd.Flags().DurationVar(&pollInterval, "interval", 0, "poll interval (default from config)")

	watchCmd.MarkFlagRequired("conversation")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	engine := chatsync.NewEngine(
		transport.ConversationFetcher{Client: client, Path: conversationPath},
		render.NewTerminal(out, cfg.CurrentUser),
		initialLastID,
		chatsync.WithLogger(logger),
		chatsync.WithMetrics(metrics.New()),
	)

	// First poll right away so the user does not wait a full interval.
	if _, err := engine.Poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug("initial poll failed", zap.Error(err))
	}

	interval := pollInterval
	if interval <= 0 {
		interval = cfg.PollInterval.Std()
	}
	logger.Info("watching conversation",
		zap.String("conversation", conversationPath),
		zap.Duration("interval", interval),
		zap.Int64("last_seen_id", engine.LastSeenID()))
	engine.Run(ctx, interval)

	fmt.Fprintf(cmd.ErrOrStderr(), "stopped at message %d\n", engine.LastSeenID())
	return nil
}
