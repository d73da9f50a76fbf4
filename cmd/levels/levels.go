package levels

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/scopelog/internal/logger"
)

// Command creates a new cobra.Command listing the levels.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "List the log levels",
		Long:  "Lists the levels from least to most verbose with their long and short names.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, l := range logger.Levels() {
				fmt.Fprintf(w, "%d\t%s\t%s\n", int(l), l.String(), l.Short())
			}
			return w.Flush()
		},
	}

	return cmd
}
