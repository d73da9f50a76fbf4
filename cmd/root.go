package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/tphakala/scopelog/cmd/check"
	"github.com/tphakala/scopelog/cmd/demo"
	"github.com/tphakala/scopelog/cmd/levels"
	"github.com/tphakala/scopelog/cmd/serve"
	"github.com/tphakala/scopelog/internal/buildinfo"
	"github.com/tphakala/scopelog/internal/conf"
	"github.com/tphakala/scopelog/internal/errors"
	"github.com/tphakala/scopelog/internal/privacy"
)

const sentryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command
func RootCommand(ctx *conf.Context, info *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "scopelog",
		Short:         "Location filtered, depth indented logging",
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	conf.RegisterFlags(rootCmd.PersistentFlags())

	levelsCmd := levels.Command()
	subcommands := []*cobra.Command{
		check.Command(ctx),
		demo.Command(ctx),
		serve.Command(ctx),
		levelsCmd,
	}
	rootCmd.AddCommand(subcommands...)

	telemetry := false
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// levels needs no configuration
		if cmd.Name() == levelsCmd.Name() {
			return nil
		}
		if err := initialize(ctx, cmd); err != nil {
			return err
		}
		var err error
		telemetry, err = initTelemetry(ctx.Settings.Telemetry, info, nil)
		return err
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if telemetry {
			sentry.Flush(sentryFlushTimeout)
		}
	}

	return rootCmd
}

// initialize loads the settings named by the command line into ctx. A
// Loader already present in ctx is used as is.
func initialize(ctx *conf.Context, cmd *cobra.Command) error {
	file, err := cmd.Flags().GetString(conf.FlagConfig)
	if err != nil {
		return err
	}
	opts := []conf.LoaderOption{conf.WithFlags(cmd.Flags())}
	if file != "" {
		opts = append(opts, conf.WithConfigFile(file))
	}
	if ctx.Loader == nil {
		ctx.Loader = conf.NewLoader(opts...)
	}

	settings, err := ctx.Loader.Load()
	if err != nil {
		return err
	}
	ctx.Settings = settings
	return nil
}

// initTelemetry starts error reporting when a DSN is configured. A nil
// client uses the SDK's default transport.
func initTelemetry(t conf.Telemetry, info *buildinfo.Context, client *http.Client) (bool, error) {
	if t.SentryDSN == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              t.SentryDSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		ServerName:       "",
		Release:          fmt.Sprintf("scopelog@%s", info.Version()),
		BeforeSend:       scrubEvent,
		HTTPClient:       client,
	})
	if err != nil {
		return false, errors.New(privacy.WrapError(err)).
			Component("cli").
			Category(errors.CategoryConfiguration).
			Setting("telemetry.sentry_dsn", "<redacted>").
			Build()
	}
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	return true, nil
}

// scrubEvent removes paths, URLs and addresses from reported messages.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}
	for _, c := range event.Contexts {
		for k, v := range c {
			if s, ok := v.(string); ok {
				c[k] = privacy.ScrubMessage(s)
			}
		}
	}
	event.ServerName = ""
	return event
}
