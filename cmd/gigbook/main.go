package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"gigbook/internal/config"
	"gigbook/internal/logging"
	"gigbook/internal/metrics"
	"gigbook/internal/persistence"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli holds flag values and the lazily opened environment shared by commands.
type cli struct {
	envFile    string
	backend    string
	metricsOut string

	cfg      *config.Config
	logger   *logging.Logger
	registry *prometheus.Registry
	recorder metrics.Recorder
	env      *environment
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "gigbook",
		Short:         "Song catalog and setlist planner",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.finish()
		},
	}

	root.PersistentFlags().StringVar(&c.envFile, "env-file", envOrDefault("GIGBOOK_ENV_FILE", defaultEnvFile), "Path to an optional .env file")
	root.PersistentFlags().StringVar(&c.backend, "backend", "", "Storage backend override (sqlite, postgres, memory)")
	root.PersistentFlags().StringVar(&c.metricsOut, "metrics-out", "", "Write operation metrics to this file in Prometheus text format")

	root.AddCommand(
		newSeedCmd(c),
		newSongsCmd(c),
		newSetlistsCmd(c),
		newShowCmd(c),
		newValidateCmd(c),
		newMigrateCmd(c),
	)
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(c.envFile, c.backend)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	logging.SetGlobalLogger(c.logger)

	c.registry = prometheus.NewRegistry()
	recorder, err := metrics.NewPrometheus(c.registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	c.recorder = recorder
	return nil
}

// environment opens the store on first use.
func (c *cli) environment(ctx context.Context) (*environment, error) {
	if c.env != nil {
		return c.env, nil
	}
	env, err := openEnvironment(ctx, c.cfg, c.logger, c.recorder)
	if err != nil {
		return nil, err
	}
	c.env = env
	return env, nil
}

func (c *cli) finish() error {
	var errs []error
	if err := c.env.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close backend: %w", err))
	}
	c.env = nil
	if c.metricsOut != "" && c.registry != nil {
		if err := metrics.WriteTextfile(c.metricsOut, c.registry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// settle turns a save failure into a warning: the change is applied but may
// not survive this process.
func (c *cli) settle(err error) error {
	if err != nil && persistence.IsWarning(err) {
		c.logger.Warn(err, "change applied but not saved")
		return nil
	}
	return err
}
