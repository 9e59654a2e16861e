package main

import (
	"github.com/spf13/cobra"
)

func newDatasetsCmd(c *cli) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:     "datasets",
		Aliases: []string{"ls"},
		Short:   "List datasets",
		Long: `List the datasets known to the knowledge API. The listing is cached and fetched
on first use; --refresh fetches it again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			printer, err := c.printer()
			if err != nil {
				return err
			}

			comp, err := c.build(ctx)
			if err != nil {
				return err
			}
			defer comp.close()

			list := comp.catalog.List
			if refresh {
				list = comp.catalog.Refresh
			}
			datasets, err := list(ctx)
			if err != nil {
				return err
			}
			return printer.Datasets(datasets)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the listing from the knowledge API")
	return cmd
}
