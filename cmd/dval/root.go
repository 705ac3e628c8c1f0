// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"dval/internal/config"
	"dval/internal/issue"
	"dval/internal/logging"
)

var (
	// Version is the release version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	cfgFile      string
	verbose      bool
	debug        bool
	trace        bool
	experimental bool
}

// NewRootCommand builds the complete command tree.
func NewRootCommand() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "dval",
		Short: "A host for dynamically loaded modules",
		Long: TitleStyle.Render("dval") + SubtitleStyle.Render(" - a host for dynamically loaded modules") + `

dval loads module packages (ZIP archives with a META-INF/MANIFEST.MF) at
startup, lets their code see each other, and starts the entry point each
module declares. Only one instance per application name runs at a time.

` + SubtitleStyle.Render("Examples:") + `
  dval run ./modules              Load every package in ./modules and run
  dval module list ./modules      Show what would be loaded
  dval module pack ./greeter      Build greeter.zip from a directory
  dval lock status                Check whether an instance is running`,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.cfgFile, "config", "", "config file (default is <user config dir>/dval/config.cue)")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "show full error chains")
	pf.BoolVarP(&f.debug, "debug", "d", false, "enable debug mode")
	pf.BoolVar(&f.trace, "trace", false, "enable trace mode (debug with caller locations)")
	pf.BoolVarP(&f.experimental, "experimental", "e", false, "enable experimental features")

	root.AddCommand(
		newRunCommand(f),
		newModuleCommand(f),
		newLockCommand(f),
		newConfigCommand(f),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the resulting status.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
		fang.WithErrorHandler(errorHandler),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// errorHandler skips failures the command already reported.
func errorHandler(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

// loadConfig loads the configuration and applies the mode flags over it.
func (f *rootFlags) loadConfig(ctx context.Context) (*config.Loaded, error) {
	cfg, err := config.Load(ctx, config.LoadOptions{ConfigFilePath: f.cfgFile})
	if err != nil {
		return nil, err
	}
	if f.debug {
		cfg.Mode.Debug = true
	}
	if f.trace {
		cfg.Mode.Trace = true
	}
	if f.experimental {
		cfg.Mode.Experimental = true
	}
	return cfg, nil
}

// newLogger builds the process logger and makes it the default.
func newLogger(cfg *config.Config, w io.Writer) (*log.Logger, io.Closer, error) {
	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel(),
		File:   cfg.App.LogFile,
		Writer: w,
	})
	if err != nil {
		return nil, nil, err
	}
	logging.SetDefault(logger)
	return logger, closer, nil
}

// formatErrorForDisplay uses the ActionableError layout when available.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// reportIssue prints err and the catalog guidance for id, then returns an
// already-reported ExitError with code 1.
func (f *rootFlags) reportIssue(w io.Writer, id issue.Id, err error) error {
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, f.verbose))
	if i := issue.Get(id); i != nil {
		if rendered, renderErr := i.Render("auto"); renderErr == nil {
			fmt.Fprint(w, rendered)
		}
	}
	return &ExitError{Code: 1}
}
