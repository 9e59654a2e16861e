package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/knoguchi/kbsearch/internal/service"
)

func newSearchCmd(c *cli) *cobra.Command {
	var (
		datasetIDs  []string
		all         bool
		rerank      bool
		rerankLimit int
	)

	cmd := &cobra.Command{
		Use:   "search [flags] QUERY...",
		Short: "Run a query against selected datasets",
		Long: `Run a query against each selected dataset and print one report per dataset,
in the order the datasets were given. A dataset that fails is reported with its
error; the others are unaffected.

Examples:
  kbsearch search -d 3f1c... "how do I define a class"
  kbsearch search --all --rerank --rerank-limit 5 "connection pooling"
  kbsearch search -d A -d B --format json "retry policy"`,
		Args: cobra.MinimumNArgs(1),
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

			ids := datasetIDs
			if all {
				datasets, err := comp.catalog.List(ctx)
				if err != nil {
					return err
				}
				ids = make([]string, 0, len(datasets))
				for _, ds := range datasets {
					ids = append(ids, ds.ID)
				}
			}
			if len(ids) == 0 {
				fmt.Fprintln(c.stderr, "No datasets selected.")
				return nil
			}

			if !cmd.Flags().Changed("rerank-limit") {
				rerankLimit = c.cfg.RerankLimit
			}
			query := strings.Join(args, " ")
			reports, err := comp.search.Run(ctx, query, ids, service.SearchOptions{
				Rerank:      rerank,
				RerankLimit: rerankLimit,
			})
			if err != nil {
				if errors.Is(err, service.ErrEmptyQuery) {
					return errors.New("no query provided")
				}
				return err
			}
			return printer.Print(reports)
		},
	}

	cmd.Flags().StringSliceVarP(&datasetIDs, "dataset", "d", nil, "dataset ID to search (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "search every cached dataset")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "rerank each dataset's results")
	cmd.Flags().IntVar(&rerankLimit, "rerank-limit", 20, "number of leading results to rerank")
	cmd.MarkFlagsMutuallyExclusive("dataset", "all")

	return cmd
}
