// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dval/internal/host"
	"dval/internal/issue"
)

// shutdownTimeout bounds module Stop calls after a signal.
const shutdownTimeout = 10 * time.Second

func newRunCommand(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run [module paths...]",
		Short: "Load modules and run until interrupted",
		Long: `Acquire the single-instance lock, load every module package found in
modules.paths and the given arguments, start their entry points and run
until SIGINT or SIGTERM.

Arguments are package files, directories (their *.zip and *.jar files) or
doublestar globs. If another instance with the same app.name is running,
dval prints a notice and exits successfully.

Examples:
  dval run ./modules
  dval run 'plugins/**/*.zip' --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, args)
		},
	}
}

func (f *rootFlags) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()

	cfg, err := f.loadConfig(ctx)
	if err != nil {
		return f.reportIssue(stderr, issue.ConfigLoadFailedId, err)
	}
	logger, closer, err := newLogger(cfg.Config, stderr)
	if err != nil {
		return f.reportIssue(stderr, issue.ConfigLoadFailedId, err)
	}
	defer closer.Close()
	if cfg.Path != "" {
		logger.Debug("configuration loaded", "path", cfg.Path)
	}

	h, err := host.New(cfg.Config, host.WithLogger(logger))
	if err != nil {
		return f.reportIssue(stderr, issue.LockUnavailableId, err)
	}

	if _, err := h.Start(ctx, args...); err != nil {
		switch {
		case errors.Is(err, host.ErrAnotherInstance):
			fmt.Fprintln(cmd.OutOrStdout(), WarningStyle.Render(cfg.App.Name+" is already running."))
			return nil
		case errors.Is(err, host.ErrNoModules):
			return f.reportIssue(stderr, issue.NoModulesConfiguredId, err)
		default:
			return err
		}
	}

	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := h.Shutdown(sctx); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}()

	logger.Info("running", "modules", h.Registry().Len())
	return h.Run(ctx)
}
