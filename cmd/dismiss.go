package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dashsync/internal/dismiss"
)

var assumeYes bool

var dismissCmd = &cobra.Command{
	Use:   "dismiss <outlier-id>",
	Short: "Dismiss an outlier warning",
	Long: `Asks for confirmation and dismisses the warning with the configured mode.

In ttl mode the warning stays hidden on this client for the configured
period. In server mode the dashboard removes it for good; reload the
dashboard afterwards to see the change.`,
	Args: cobra.ExactArgs(1),
	RunE: runDismiss,
}

func init() {
	rootCmd.AddCommand(dismissCmd)

	dismissCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}

func runDismiss(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]

	d, _, closer, err := newDismisser(ctx, cfg, logger, dismisserDeps{
		Confirmer: newPromptConfirmer(assumeYes),
		Notifier:  stderrNotifier{out: cmd.ErrOrStderr()},
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := d.Dismiss(ctx, id); err != nil {
		if errors.Is(err, dismiss.ErrDeclined) {
			fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
			return nil
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "dismissed %s (%s)\n", id, d.Variant())
	return nil
}
