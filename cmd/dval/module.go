// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"dval/internal/loader"
	"dval/pkg/dvalmod"
)

type (
	moduleView struct {
		Name        string             `json:"name" toml:"name"`
		Version     string             `json:"version" toml:"version"`
		VersionName string             `json:"version_name,omitempty" toml:"version_name,omitempty"`
		Author      string             `json:"author,omitempty" toml:"author,omitempty"`
		EntryPoint  string             `json:"entry_point,omitempty" toml:"entry_point,omitempty"`
		Library     bool               `json:"library" toml:"library"`
		Source      string             `json:"source" toml:"source"`
		Index       dvalmod.IndexStats `json:"index" toml:"index"`
		CodeUnits   []string           `json:"code_units,omitempty" toml:"code_units,omitempty"`
		Resources   []string           `json:"resources,omitempty" toml:"resources,omitempty"`
		Error       string             `json:"error,omitempty" toml:"error,omitempty"`
	}

	moduleReport struct {
		Modules []moduleView `json:"modules" toml:"modules"`
	}
)

func newModuleCommand(f *rootFlags) *cobra.Command {
	moduleCmd := &cobra.Command{
		Use:   "module",
		Short: "Inspect and build module packages",
	}

	var listOutput string
	listCmd := &cobra.Command{
		Use:   "list [module paths...]",
		Short: "List the modules that run would load",
		Long: `Expand modules.paths and the given arguments and read the manifest of
every package found. Nothing is registered or started.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.listModules(cmd, args, listOutput, false)
		},
	}
	addOutputFlag(listCmd, &listOutput)

	var inspectOutput string
	inspectCmd := &cobra.Command{
		Use:   "inspect <package>...",
		Short: "Show a package's manifest and index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.listModules(cmd, args, inspectOutput, true)
		},
	}
	addOutputFlag(inspectCmd, &inspectOutput)

	moduleCmd.AddCommand(listCmd, inspectCmd, newPackCommand())
	return moduleCmd
}

// listModules reads every package without opening it. Unreadable packages
// are reported inline and make the command exit 1.
func (f *rootFlags) listModules(cmd *cobra.Command, args []string, format string, detail bool) error {
	specs := args
	if !detail {
		cfg, err := f.loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		specs = append(append([]string{}, cfg.Modules.Paths...), args...)
	}
	paths, err := loader.Discover(specs)
	if err != nil {
		return err
	}

	ld := loader.New(dvalmod.NewRegistry(), nil)
	rep := moduleReport{Modules: make([]moduleView, 0, len(paths))}
	failed := 0
	for _, p := range paths {
		v := inspectPackage(ld, p, detail)
		if v.Error != "" {
			failed++
		}
		rep.Modules = append(rep.Modules, v)
	}

	err = writeOutput(cmd.OutOrStdout(), format, rep, func(w io.Writer) {
		if detail {
			renderModuleDetails(w, rep)
		} else {
			renderModuleList(w, rep)
		}
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		return &ExitError{Code: 1}
	}
	return nil
}

func inspectPackage(ld *loader.Loader, path string, detail bool) moduleView {
	m, err := ld.Inspect(path)
	if err != nil {
		return moduleView{Source: path, Error: err.Error()}
	}
	defer m.Close(context.Background())

	info := m.Info()
	v := moduleView{
		Name:        info.Name,
		Version:     info.Version.String(),
		VersionName: info.Version.Label,
		Author:      info.Author,
		EntryPoint:  info.EntryPoint,
		Library:     info.IsLibrary(),
		Source:      path,
		Index:       m.Index().Stats(),
	}
	if detail {
		v.CodeUnits = m.Index().CodeNames()
		v.Resources = m.Index().ResourceNames()
	}
	return v
}

func renderModuleList(w io.Writer, rep moduleReport) {
	if len(rep.Modules) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("No module packages found."))
		return
	}
	fmt.Fprintln(w, TitleStyle.Render("Modules"))
	for _, v := range rep.Modules {
		if v.Error != "" {
			fmt.Fprintf(w, "  %s %s\n    %s\n", ErrorStyle.Render("✗"), v.Source, SubtitleStyle.Render(v.Error))
			continue
		}
		kind := "entry " + v.EntryPoint
		if v.Library {
			kind = "library"
		}
		fmt.Fprintf(w, "  %s %s %s %s\n",
			SuccessStyle.Render("✓"),
			NameStyle.Render(v.Name),
			v.Version,
			SubtitleStyle.Render("("+kind+", "+v.Source+")"),
		)
	}
}

func renderModuleDetails(w io.Writer, rep moduleReport) {
	for i, v := range rep.Modules {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if v.Error != "" {
			fmt.Fprintln(w, ErrorStyle.Render("✗ ")+v.Source)
			fmt.Fprintln(w, "  "+v.Error)
			continue
		}
		fmt.Fprintln(w, NameStyle.Render(v.Name))
		row := func(label, value string) {
			if value != "" {
				fmt.Fprintln(w, "  "+labelStyle.Render(label)+value)
			}
		}
		row("Version", v.Version)
		row("Label", v.VersionName)
		row("Author", v.Author)
		row("Entry point", v.EntryPoint)
		row("Source", v.Source)
		row("Code", strings.Join(v.CodeUnits, ", "))
		row("Resources", strings.Join(v.Resources, ", "))
	}
}

func newPackCommand() *cobra.Command {
	var (
		out  string
		opts dvalmod.PackOptions
	)
	cmd := &cobra.Command{
		Use:   "pack <dir>",
		Short: "Build a module package from a directory",
		Long: `Zip a directory into a module package. The manifest is taken from the
directory's META-INF/MANIFEST.MF when present; flags override its
attributes. Code units are the *.star files, every other file is a
resource.

Examples:
  dval module pack ./greeter --name Greeter --version 1.2 --main greeter.Main
  dval module pack ./lib -O dist/lib.jar`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := dvalmod.Pack(args[0], out, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Packed ")+path)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&out, "out", "O", "", "output file (default <dir>.zip)")
	fl.StringVar(&opts.Name, "name", "", "module name")
	fl.StringVar(&opts.Version, "version", "", "module version")
	fl.StringVar(&opts.VersionName, "version-name", "", "version label")
	fl.StringVar(&opts.Author, "author", "", "module author")
	fl.StringVar(&opts.MainClass, "main", "", "entry point code unit")
	return cmd
}
