package check

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tphakala/scopelog/internal/conf"
	"github.com/tphakala/scopelog/internal/logger"
)

// Command creates a new cobra.Command validating the configuration.
func Command(ctx *conf.Context) *cobra.Command {
	var writePath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate and print the effective configuration",
		Long: "Loads the configuration file, the environment and the flags, validates the result " +
			"and prints it. An invalid configuration exits with status 1.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printSummary(cmd.OutOrStdout(), ctx)
			if writePath == "" {
				return nil
			}
			if err := conf.Save(ctx.Loader.Fs(), writePath, ctx.Settings); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "written to %s\n", writePath)
			return nil
		},
	}

	cmd.Flags().StringVar(&writePath, "write", "", "Write the effective configuration to this file")

	return cmd
}

func printSummary(w io.Writer, ctx *conf.Context) {
	s := ctx.Settings
	source := "(defaults)"
	if ctx.Loader != nil {
		if used := ctx.Loader.ConfigFileUsed(); used != "" {
			source = used
		}
	}

	depth := "unlimited"
	if s.MaxDepth != logger.NoDepthLimit {
		depth = fmt.Sprint(s.MaxDepth)
	}

	fmt.Fprintf(w, "config:        %s\n", source)
	fmt.Fprintf(w, "default level: %s\n", s.DefaultLevel)
	fmt.Fprintf(w, "max depth:     %s (%s)\n", depth, s.DepthSource)
	fmt.Fprintf(w, "template:      %s\n", s.Format.Template)
	fmt.Fprintf(w, "output:        %s\n", s.Output.Target)
	if len(s.Rules) == 0 {
		fmt.Fprintln(w, "rules:         none")
		return
	}
	fmt.Fprintln(w, "rules:")
	for i, r := range s.Rules {
		p := logger.Pattern{File: r.File, Func: r.Func, Line: r.Line}
		fmt.Fprintf(w, "  %d. %s -> %s\n", i+1, p, r.Level)
	}
}
