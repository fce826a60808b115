package ui

import (
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"
)

// CoverageReport mirrors the structure from internal/completeness to avoid
// circular imports.
type CoverageReport struct {
	Model   string
	Score   float64
	Passed  int
	Total   int
	Missing []string
	Tests   []TestCoverage
}

// TestCoverage mirrors one per-test coverage entry.
type TestCoverage struct {
	Test    string
	Score   float64
	Passed  int
	Total   int
	Missing []string
}

// CoverageUI renders IPM coverage.
type CoverageUI struct {
	writer io.Writer
	quiet  bool
}

// NewCoverageUI creates a coverage renderer.
func NewCoverageUI(w io.Writer, quiet bool) *CoverageUI {
	return &CoverageUI{writer: w, quiet: quiet}
}

// PrintReport renders the model score and one bar per test.
func (c *CoverageUI) PrintReport(r CoverageReport) {
	if c.quiet {
		return
	}
	var out strings.Builder
	out.WriteString(Pass.Bold().Render("IPM Coverage"))
	out.WriteString("\n\n")
	if r.Model != "" {
		out.WriteString(KeyValue("Model", Emphasis.Render(r.Model)))
		out.WriteString("\n")
	}
	out.WriteString(KeyValue("Score", progressBar(r.Score, 40)+" "+percentage(r.Score)))
	out.WriteString("\n")
	out.WriteString(Dim.Render(fmt.Sprintf("(%d/%d catalogued terms present)", r.Passed, r.Total)))
	out.WriteString("\n\n")

	out.WriteString(Section.Render("Tests"))
	out.WriteString("\n")
	for _, t := range r.Tests {
		out.WriteString(fmt.Sprintf("%-5s %s %s\n", t.Test, progressBar(t.Score, 20), percentage(t.Score)))
		if len(t.Missing) > 0 {
			out.WriteString("      " + WarnMark + " " + Dim.Render(strings.Join(t.Missing, ", ")) + "\n")
		}
	}

	box := Panel(true)
	if len(r.Missing) > 0 {
		box = NoticePanel
	}
	fmt.Fprintln(c.writer, box.Render(strings.TrimRight(out.String(), "\n")))
}

// PrintSimpleReport prints an unstyled summary.
func (c *CoverageUI) PrintSimpleReport(r CoverageReport) {
	fmt.Fprintf(c.writer, "Model score: %.1f%% (%d/%d)\n", r.Score*100, r.Passed, r.Total)
	for _, t := range r.Tests {
		fmt.Fprintf(c.writer, "  %s: %.1f%% (%d/%d)", t.Test, t.Score*100, t.Passed, t.Total)
		if len(t.Missing) > 0 {
			fmt.Fprintf(c.writer, " missing %s", strings.Join(t.Missing, ", "))
		}
		fmt.Fprintln(c.writer)
	}
}

func progressBar(score float64, width int) string {
	filled := int(score * float64(width))
	filled = max(0, min(filled, width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(ScoreColor(score)).Render(bar)
}

func percentage(score float64) string {
	return lipgloss.NewStyle().Foreground(ScoreColor(score)).Render(fmt.Sprintf("%.1f%%", score*100))
}
