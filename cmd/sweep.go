package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired or unreadable dismissal records",
	Long: `Removes dismissal records that are past their expiry or cannot be
decoded. Reads already ignore such records; sweeping only reclaims space.
Only available in ttl mode.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, cache, closer, err := newDismisser(ctx, cfg, logger, dismisserDeps{
		Confirmer: newPromptConfirmer(false),
		Notifier:  stderrNotifier{out: cmd.ErrOrStderr()},
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	if cache == nil {
		return errors.New("sweep needs dismissal mode ttl")
	}

	removed, err := cache.SweepAll(ctx)
	if err != nil {
		return err
	}
	logger.Debug("sweep done", zap.Int("removed", removed))
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired dismissal records\n", removed)
	return nil
}
