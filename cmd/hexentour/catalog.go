package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hexentour/pkg/probe"
)

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	var checkAudio bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the station catalog",
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

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tVARIANT\tUNLOCK\tTITLE")
			for _, s := range cat.Stations() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Variant, s.Unlock, s.Title)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if !checkAudio {
				return nil
			}
			res := probe.Run(cmd.Context(), []probe.Probe{probe.AudioAssets(cat, cfg.Playback.AudioDir)})
			if res[0].Error != nil {
				return fmt.Errorf("audio check failed: %w", res[0].Error)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All station audio decodes")
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkAudio, "check-audio", false, "Decode every station's dialog audio")
	return cmd
}
