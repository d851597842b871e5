package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <outlier-id>...",
	Short: "Show whether outlier warnings are dismissed",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, cache, closer, err := newDismisser(ctx, cfg, logger, dismisserDeps{
		Confirmer: newPromptConfirmer(false),
		Notifier:  stderrNotifier{out: cmd.ErrOrStderr()},
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	out := cmd.OutOrStdout()
	now := time.Now()
	for _, id := range args {
		if cache == nil {
			fmt.Fprintf(out, "%s\tvisible\t(%s mode: removed warnings are not rendered by the server)\n", id, d.Variant())
			continue
		}
		rec, ok := cache.Lookup(ctx, id)
		if !ok || !rec.Honored(now) {
			fmt.Fprintf(out, "%s\tvisible\n", id)
			continue
		}
		expiry := now.Add(rec.Remaining(now))
		fmt.Fprintf(out, "%s\tdismissed\tvisible again %s (%s)\n",
			id, humanize.RelTime(expiry, now, "ago", "from now"), expiry.Format(time.RFC3339))
	}
	return nil
}
