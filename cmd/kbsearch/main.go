// Command kbsearch queries knowledge-base datasets and optionally reranks the results.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/knoguchi/kbsearch/internal/config"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}

// cli carries state shared by every command.
type cli struct {
	cfg     *config.Config
	logger  *slog.Logger
	stdout  io.Writer
	stderr  io.Writer
	format  string
	noColor bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "kbsearch",
		Short: "Search knowledge-base datasets",
		Long: `kbsearch runs a query against one or more knowledge-base datasets, using each
dataset's hybrid retrieval endpoint, and optionally reranks each dataset's results
with a cross-encoder.

Example usage:
  kbsearch datasets                            # List cached datasets
  kbsearch datasets --refresh                  # Fetch the dataset listing again
  kbsearch search -d DATASET_ID "ruby class"   # Search one dataset
  kbsearch search -d A -d B --rerank "query"   # Search two datasets and rerank
  kbsearch serve                               # Serve the HTTP API`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&c.format, "format", "f", "text", "output format: text, json, or yaml")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newSearchCmd(c),
		newDatasetsCmd(c),
		newServeCmd(c),
		newTokenCmd(c),
	)
	return root
}

// init loads configuration and installs the default logger. The server logs to stdout
// like any service; other commands log to stderr so that stdout carries only results.
func (c *cli) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c.cfg = cfg

	logOut := c.stderr
	if cmd.Name() == "serve" {
		logOut = c.stdout
	}
	c.logger = slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(c.logger)
	return nil
}
