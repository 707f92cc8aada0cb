package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"prism/internal/catalog"
	"prism/internal/config"
)

func newRenditionsCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "renditions <videoId>",
		Short: "List the renditions produced for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(*configFlag)
			if err != nil {
				return err
			}
			store, err := catalog.Open(cfg.Paths.CatalogPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			renditions, err := store.ListRenditions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(renditions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No renditions found.")
				return nil
			}

			rows := make([][]string, 0, len(renditions))
			for _, r := range renditions {
				rows = append(rows, []string{
					r.ID,
					r.Name,
					r.Output,
					string(r.Status),
					strconv.Itoa(r.Progress) + "%",
					r.Path,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Output", "Status", "Progress", "Path"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}
