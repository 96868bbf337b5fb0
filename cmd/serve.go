package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/config"
	"github.com/JakeFAU/jobspy-server/internal/server"
)

// service is the running scrape server.
type service interface {
	Run(ctx context.Context) error
}

// newService builds the server. It's a variable so tests can swap in a fake.
var newService = func(cfg config.Config, logger *zap.Logger) (service, error) {
	return server.Build(cfg, logger)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the scrape API and worker pool",
		Long: `Starts the HTTP API, the worker pool that drains the task queue, and any
configured schedules. Runs until SIGINT or SIGTERM.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	svc, err := newService(rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	if err := svc.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run server: %w", err)
	}
	rt.logger.Info("serve command finished")
	return nil
}
