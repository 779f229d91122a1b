package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/scbrown/clicat/internal/model"
)

const defaultTermWidth = 80

// getTermWidth returns the current terminal width, defaulting to 80.
func getTermWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return defaultTermWidth
}

// isTTY reports whether w is connected to a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max < 4 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// Table writes column-aligned output. Headers are bold and status values
// are colored when output is a TTY.
type Table struct {
	tw    *tabwriter.Writer
	color bool
	width int
}

// NewTable creates a Table that writes to w with an optional header row.
func NewTable(w io.Writer, headers ...string) *Table {
	tty := isTTY(w)
	width := defaultTermWidth
	if tty {
		width = getTermWidth()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	t := &Table{tw: tw, color: tty && !color.NoColor, width: width}

	if len(headers) > 0 {
		row := make([]string, len(headers))
		for i, h := range headers {
			row[i] = t.Bold(h)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return t
}

// Row writes a data row with tab-separated values.
func (t *Table) Row(vals ...string) {
	fmt.Fprintln(t.tw, strings.Join(vals, "\t"))
}

// Flush flushes the underlying tabwriter.
func (t *Table) Flush() error {
	return t.tw.Flush()
}

// Bold wraps text in bold if color is enabled for this table.
func (t *Table) Bold(s string) string {
	if !t.color {
		return s
	}
	return color.New(color.Bold).Sprint(s)
}

// Width returns the detected terminal width, or 80 when not a TTY.
func (t *Table) Width() int {
	return t.width
}

// Verification renders a verification status badge.
func (t *Table) Verification(s model.VerificationStatus) string {
	return t.paint(string(s), map[string]color.Attribute{
		string(model.Verified):         color.FgGreen,
		string(model.CommunityCurated): color.FgCyan,
		string(model.Unverified):       color.FgYellow,
	})
}

// Compat renders a compatibility status badge.
func (t *Table) Compat(s model.CompatStatus) string {
	return t.paint(string(s), map[string]color.Attribute{
		string(model.CompatVerified): color.FgGreen,
		string(model.CompatPartial):  color.FgYellow,
		string(model.CompatBroken):   color.FgRed,
		string(model.CompatUnknown):  color.FgHiBlack,
	})
}

func (t *Table) paint(s string, attrs map[string]color.Attribute) string {
	a, ok := attrs[s]
	if !t.color || !ok {
		return s
	}
	return color.New(a).Sprint(s)
}

// ago renders t relative to now, or "never" for the zero time.
func ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func count(n int64) string {
	return humanize.Comma(n)
}

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
