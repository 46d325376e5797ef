package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dmfeed/internal/sweep"
	"dmfeed/pkg/config"
	"dmfeed/pkg/state"
)

func newSweepCmd(o *options) *cobra.Command {
	var (
		dryRun bool
		minAge time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete images no message references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open()
			if err != nil {
				return err
			}
			defer s.Close()

			cfg := config.SweepConfig{MinAge: config.Duration(minAge), DryRun: dryRun}
			sw := sweep.New(cfg, s.store, s.blobs, state.StatePath(o.cfg.DBPath))
			res, err := sw.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			verb := "deleted"
			if res.DryRun {
				verb = "would delete"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d blobs: %d referenced, %d too young, %s %d, %d failed\n",
				res.Scanned, res.Referenced, res.TooYoung, verb, res.Deleted, res.Failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without deleting")
	cmd.Flags().DurationVar(&minAge, "min-age", sweep.DefaultMinAge, "keep unreferenced blobs younger than this")
	return cmd
}
