// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Id identifies a catalog entry.
type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	NoModulesConfiguredId
	LockUnavailableId
	UnknownFormatId
	ManifestMissingId
	ActivationFailedId
)

type (
	MarkdownMsg string

	HttpLink string

	// Issue is a catalog entry explaining one fatal failure.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

func (i *Issue) Id() Id { return i.id }

func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

func (i *Issue) DocLinks() []HttpLink { return slices.Clone(i.docLinks) }

// Render returns the issue as terminal output styled by stylePath, which is
// a glamour style name or path.
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 {
		var b strings.Builder
		b.WriteString(md)
		b.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			b.WriteString("- <" + string(link) + ">\n")
		}
		md = b.String()
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

dval could not read or validate its configuration file.

## Things you can try:
- Print the schema the file must satisfy:
~~~
$ dval config schema
~~~

- Point dval at another file:
~~~
$ dval --config ./dval.cue run
~~~

- Remove the file to fall back to the defaults`,
	}

	noModulesConfiguredIssue = &Issue{
		id: NoModulesConfiguredId,
		mdMsg: `
# No module paths configured!

dval starts modules from archive files, but none were given.

## Things you can try:
- Pass module files, directories or globs as arguments:
~~~
$ dval run ./modules/*.zip
~~~

- Or list them in your config file:
~~~cue
modules: paths: ["./modules"]
~~~`,
	}

	lockUnavailableIssue = &Issue{
		id: LockUnavailableId,
		mdMsg: `
# Single-instance lock unavailable!

dval could not secure its instance lock, so it cannot tell whether another
instance is already running.

## Things you can try:
- Check that the lock directory is writable (` + "`lock.dir`" + `)
- Check that loopback networking (127.0.0.1) is available
- Inspect the current lock state:
~~~
$ dval lock status
~~~

- Disable the lock if several instances are intended:
~~~cue
lock: enabled: false
~~~`,
	}

	unknownFormatIssue = &Issue{
		id: UnknownFormatId,
		mdMsg: `
# Unknown module format!

The file is not a module archive. Modules are ZIP files (` + "`.zip`" + ` or
` + "`.jar`" + `) starting with the bytes ` + "`PK\\x03\\x04`" + `.

## Things you can try:
- Build the archive with dval:
~~~
$ dval module pack ./my-module
~~~`,
	}

	manifestMissingIssue = &Issue{
		id: ManifestMissingId,
		mdMsg: `
# Module manifest missing!

Every module archive needs a ` + "`META-INF/MANIFEST.MF`" + ` entry.

## Example manifest:
~~~
Manifest-Version: 1.0
Name: Greeter
Version: 1.2
Author: Alice
Main-Class: greeter.Main
~~~

## Things you can try:
- Let dval write the manifest for you:
~~~
$ dval module pack ./greeter --name Greeter --main greeter.Main
~~~`,
	}

	activationFailedIssue = &Issue{
		id: ActivationFailedId,
		mdMsg: `
# Module failed to start!

The module was loaded, but its entry point could not be started. It stays
registered as a library, so other modules can still use its code.

## Things you can try:
- Check that ` + "`Main-Class`" + ` names a code unit inside the archive
- Make sure the unit defines both ` + "`start()`" + ` and ` + "`stop()`" + `
- Rerun with ` + "`--debug`" + ` to see the script backtrace`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		noModulesConfiguredIssue.Id(): noModulesConfiguredIssue,
		lockUnavailableIssue.Id():     lockUnavailableIssue,
		unknownFormatIssue.Id():       unknownFormatIssue,
		manifestMissingIssue.Id():     manifestMissingIssue,
		activationFailedIssue.Id():    activationFailedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int { return int(a.id - b.id) })
}

// Get returns the entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
