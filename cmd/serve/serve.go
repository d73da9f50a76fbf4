package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/scopelog/internal/api"
	"github.com/tphakala/scopelog/internal/conf"
	workload "github.com/tphakala/scopelog/internal/demo"
	"github.com/tphakala/scopelog/internal/errors"
	"github.com/tphakala/scopelog/internal/logger"
	"github.com/tphakala/scopelog/internal/observability"
)

// DefaultInterval is the default pause between workload runs.
const DefaultInterval = 5 * time.Second

const workloadWidth = 60

// Options configures a serve run.
type Options struct {
	Listen   string
	Interval time.Duration
	Watch    bool
}

// Command creates a new cobra.Command serving the admin API.
func Command(ctx *conf.Context) *cobra.Command {
	opts := Options{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workload continuously and serve the admin API",
		Long: "Runs the instrumented workload at a fixed interval while the admin API allows rules " +
			"and the default level to be changed at runtime. The configuration file is reloaded " +
			"when it changes.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(sigCtx, ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", api.DefaultListenAddress, "Listen address of the admin API")
	cmd.Flags().DurationVar(&opts.Interval, "interval", DefaultInterval, "Pause between workload runs")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Reload the configuration file when it changes")

	return cmd
}

// Run serves until ctx is done or a component fails.
func Run(ctx context.Context, c *conf.Context, opts Options) error {
	if opts.Interval <= 0 {
		return errors.ConfigError("cli", "interval", opts.Interval, errors.NewStd("must be positive"))
	}

	m, err := observability.NewMetrics(true)
	if err != nil {
		return err
	}
	d, err := logger.New(c.Settings.Config, logger.WithMetrics(m.Logger))
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	logger.SetGlobal(d)
	defer logger.SetGlobal(nil)

	srv := api.NewServer(d.Registry(), m, d)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, opts.Listen)
	})
	g.Go(func() error {
		return runWorkload(gctx, d, opts.Interval)
	})
	if opts.Watch && c.Loader != nil && c.Loader.ConfigFileUsed() != "" {
		g.Go(func() error {
			return c.Loader.Watch(gctx, func(s *conf.Settings, err error) {
				reload(gctx, d, s, err)
			})
		})
	}

	logger.Note(ctx, "serving", logger.String("listen", opts.Listen), logger.Duration("interval", opts.Interval))
	err = g.Wait()
	logger.Note(ctx, "stopped")
	return err
}

func runWorkload(ctx context.Context, d *logger.Dispatcher, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		workload.Run(logger.WithDepth(ctx), d, workload.SampleText, workloadWidth)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// reload applies the rules of a changed configuration file. Format and
// output changes need a restart.
func reload(ctx context.Context, d *logger.Dispatcher, s *conf.Settings, err error) {
	if err == nil {
		err = s.Config.ApplyRules(d.Registry())
	}
	if err != nil {
		logger.Error(ctx, "configuration not reloaded", logger.Err(err))
		return
	}
	logger.Note(ctx, "configuration reloaded",
		logger.String("default_level", s.DefaultLevel), logger.Int("rules", len(s.Rules)))
}
