// Package output renders bugboard results for the terminal.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// UI writes colored terminal output and honors verbose and dry-run modes.
// Info, success and verbose lines go to Out; warnings and errors to ErrOut.
type UI struct {
	Verbose bool
	DryRun  bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI on stdout and stderr.
func New() *UI {
	return &UI{Out: os.Stdout, ErrOut: os.Stderr}
}

// SetNoColor turns ANSI colors off for every UI.
func SetNoColor(off bool) { color.NoColor = off }

var (
	bold    = color.New(color.Bold).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
	cyan    = color.New(color.FgHiCyan).SprintFunc()
	green   = color.New(color.FgHiGreen).SprintFunc()
	yellow  = color.New(color.FgHiYellow).SprintFunc()
	red     = color.New(color.FgHiRed).SprintFunc()
	magenta = color.New(color.FgHiMagenta).SprintFunc()
	blue    = color.New(color.FgHiBlue).SprintFunc()
)

func Cyan(s string) string   { return cyan(s) }
func Green(s string) string  { return green(s) }
func Yellow(s string) string { return yellow(s) }
func Red(s string) string    { return red(s) }
func Bold(s string) string   { return bold(s) }

// line writes one prefixed message. Prefixes are colored at call time so
// SetNoColor applies to them too.
func line(w io.Writer, prefix string, format string, a []any) {
	fmt.Fprintf(w, "%s %s\n", prefix, fmt.Sprintf(format, a...))
}

func (u *UI) Info(format string, a ...any)    { line(u.Out, blue("i"), format, a) }
func (u *UI) Success(format string, a ...any) { line(u.Out, green("✓"), format, a) }
func (u *UI) Warning(format string, a ...any) { line(u.ErrOut, yellow("⚠"), format, a) }
func (u *UI) Error(format string, a ...any)   { line(u.ErrOut, red("✗"), format, a) }

// VerboseLog prints only with --verbose.
func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		line(u.Out, blue("  →"), format, a)
	}
}

// DryRunMsg prints a warning tagged [DRY-RUN], only in dry-run mode.
func (u *UI) DryRunMsg(format string, a ...any) {
	if u.DryRun {
		u.Warning("[DRY-RUN] "+format, a...)
	}
}

// Table creates a borderless, left-aligned table on Out.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}
