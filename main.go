package main

import (
	"fmt"
	"os"

	"github.com/tphakala/scopelog/cmd"
	"github.com/tphakala/scopelog/internal/buildinfo"
	"github.com/tphakala/scopelog/internal/conf"
	"github.com/tphakala/scopelog/internal/errors"
)

// Set with -ldflags "-X main.version=... -X main.buildDate=... -X main.commit=..."
var (
	version   string
	buildDate string
	commit    string
)

func main() {
	info := buildinfo.NewContext(version, buildDate, commit).FromBuild()
	rootCmd := cmd.RootCommand(conf.NewContext(), info)
	if err := rootCmd.Execute(); err != nil {
		if errors.IsConfiguration(err) {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
