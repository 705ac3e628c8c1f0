// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"dval/internal/applock"
	"dval/internal/host"
)

type lockView struct {
	Token string `json:"token" toml:"token"`
	applock.Status
}

func newLockCommand(f *rootFlags) *cobra.Command {
	lockCmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect the single-instance lock",
	}

	var output string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether an instance is running",
		Long: `Read the lock marker for app.name and ask the recorded port whether it
belongs to a running instance. The lock is never taken.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			lock, err := host.NewLock(cfg.Config, nil)
			if err != nil {
				return err
			}
			// A failed handshake only means nobody answered.
			st, _ := lock.Probe(cmd.Context())
			view := lockView{Token: cfg.App.Name, Status: st}
			return writeOutput(cmd.OutOrStdout(), output, view, func(w io.Writer) {
				renderLockStatus(w, view)
			})
		},
	}
	addOutputFlag(statusCmd, &output)

	lockCmd.AddCommand(statusCmd)
	return lockCmd
}

func renderLockStatus(w io.Writer, v lockView) {
	state := SubtitleStyle.Render("not running")
	if v.Running {
		state = SuccessStyle.Render("running")
	}
	port := "none recorded"
	if v.Known {
		port = strconv.Itoa(v.Port)
	}
	fmt.Fprintln(w, NameStyle.Render(v.Token)+" "+state)
	fmt.Fprintln(w, "  "+labelStyle.Render("Marker")+v.Marker)
	fmt.Fprintln(w, "  "+labelStyle.Render("Port")+port)
}
