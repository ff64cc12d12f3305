package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hexentour/pkg/persist"
)

// newResetCmd clears the stored progress and audio position, the same
// thing the debug reset button does in a running tour.
func newResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the stored tour progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			dbConn, st, err := initDB(cfg)
			if err != nil {
				return err
			}
			defer dbConn.Close()

			ctx := cmd.Context()
			persist.NewAdapter(st, cat, cfg.Storage.ProgressKey, nil).Clear(ctx)
			persist.NewResumeStore(st, cfg.Storage.AudioKey).Clear(ctx)

			fmt.Fprintln(cmd.OutOrStdout(), "Tour progress cleared")
			return nil
		},
	}
}
