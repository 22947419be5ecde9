package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	noteStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("246"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func isWriterTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isTerminal(f)
	}
	return false
}

// renderer writes command output as a styled table, plain text or JSON.
type renderer struct {
	w      io.Writer
	json   bool
	styled bool
}

func newRenderer(cmd *cobra.Command, opts *rootOptions) *renderer {
	w := cmd.OutOrStdout()
	return &renderer{
		w:      w,
		json:   opts.jsonOutput,
		styled: !opts.jsonOutput && isWriterTerminal(w),
	}
}

// JSON writes v indented.
func (r *renderer) JSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table writes a titled table. Plain output is tab-aligned.
func (r *renderer) Table(title string, headers []string, rows [][]string) error {
	if r.styled {
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(borderStyle).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			}).
			Headers(headers...).
			Rows(rows...)
		_, err := fmt.Fprintf(r.w, "%s\n%s\n", titleStyle.Render(title), t.Render())
		return err
	}

	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, title)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// Note writes a secondary line below a table.
func (r *renderer) Note(format string, args ...any) error {
	s := printer.Sprintf(format, args...)
	if r.styled {
		s = noteStyle.Render(s)
	}
	_, err := fmt.Fprintln(r.w, s)
	return err
}

// Line writes s unstyled.
func (r *renderer) Line(s string) error {
	_, err := fmt.Fprintln(r.w, s)
	return err
}

func kg(v float64) string {
	return printer.Sprintf("%.3f kg", v)
}

func money(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

func km(meters float64) string {
	return printer.Sprintf("%.2f km", meters/1000)
}

func minutes(seconds float64) string {
	return printer.Sprintf("%.0f min", seconds/60)
}

func optionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return printer.Sprintf("%d", *v)
}
