package demo

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tphakala/scopelog/internal/conf"
	workload "github.com/tphakala/scopelog/internal/demo"
	"github.com/tphakala/scopelog/internal/logger"
)

// DefaultWidth is the default wrap width of the rendered document.
const DefaultWidth = 60

// Command creates a new cobra.Command running the instrumented workload.
func Command(ctx *conf.Context) *cobra.Command {
	var (
		input string
		width int
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run an instrumented workload",
		Long: "Parses and renders a small document while logging through the configured rules, " +
			"so that level, location and depth settings can be tried out.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := workload.SampleText
			if input != "" {
				data, err := afero.ReadFile(ctx.Loader.Fs(), input)
				if err != nil {
					return err
				}
				text = string(data)
			}

			d, err := logger.New(ctx.Settings.Config)
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			lines, stats := workload.Run(logger.WithDepth(cmd.Context()), d, text, width)
			if quiet {
				return nil
			}
			out := cmd.OutOrStdout()
			for _, l := range lines {
				fmt.Fprintln(out, l)
			}
			fmt.Fprintf(out, "\n%d sections, %d lines, %d empty\n", stats.Sections, stats.Lines, stats.Empty)
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Document to process instead of the built-in sample")
	cmd.Flags().IntVar(&width, "width", DefaultWidth, "Wrap width of the rendered document")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the rendered document")

	return cmd
}
