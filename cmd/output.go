package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// maxCellWidth bounds any single table cell so one long issue name
// cannot push the rest of the row off screen.
const maxCellWidth = 60

// output renders command results, styling them when the destination is
// a terminal.
type output struct {
	w       io.Writer
	profile termenv.Profile
}

func newOutput(w io.Writer) *output {
	profile := termenv.Ascii
	if f, ok := w.(termenv.File); ok {
		profile = termenv.NewOutput(f).EnvColorProfile()
	}
	return &output{w: w, profile: profile}
}

func (o *output) printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}

func (o *output) println(args ...any) {
	fmt.Fprintln(o.w, args...)
}

// header renders a bold section heading.
func (o *output) header(text string) {
	s := o.profile.String(text).Foreground(o.profile.Color("6")).Bold()
	fmt.Fprintln(o.w, s.String())
}

// emphasize marks a value, used for unread issues.
func (o *output) emphasize(text string) string {
	return o.profile.String(text).Bold().String()
}

// diffText renders change segments wdiff style, deletions as [-x-] and
// insertions as {+x+}, colored when the destination supports it.
func (o *output) diffText(diffs []diffmatchpatch.Diff) string {
	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString(o.profile.String("[-" + d.Text + "-]").Foreground(o.profile.Color("1")).String())
		case diffmatchpatch.DiffInsert:
			b.WriteString(o.profile.String("{+" + d.Text + "+}").Foreground(o.profile.Color("2")).String())
		default:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}

// table renders rows under a header with columns padded to the widest
// cell. Widths are computed with runewidth so East Asian characters in
// issue names line up.
func (o *output) table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	clipped := make([][]string, len(rows))
	for r, row := range rows {
		clipped[r] = make([]string, len(row))
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			cell = truncate.StringWithTail(cell, maxCellWidth, "…")
			clipped[r][i] = cell
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(runewidth.FillRight(h, widths[i]))
	}
	fmt.Fprintln(o.w, o.profile.String(strings.TrimRight(b.String(), " ")).Underline().String())

	for _, row := range clipped {
		b.Reset()
		for i, cell := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]))
		}
		fmt.Fprintln(o.w, strings.TrimRight(b.String(), " "))
	}
}
