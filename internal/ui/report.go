package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

// ResultView mirrors the structure of a QC result to avoid circular imports.
type ResultView struct {
	RunID        string
	Test         string
	Station      string
	Valid        bool
	Checks       []CheckView
	Parameters   []ParameterView
	Warnings     []string
	MissingTerms []string
	Failure      string
	Geometry     string
	Converged    *bool
	Iterations   int
	Residuals    int
	OutOfTol     int
	Stations     []ResultView
}

// CheckView is one measured-versus-theoretical comparison.
type CheckView struct {
	Name        string
	Measured    *float64
	Theoretical float64
	Error       float64
	Tolerance   float64
}

// ParameterView is one estimated error term.
type ParameterView struct {
	Name      string
	Unit      string
	Value     float64
	StdDev    float64
	Tolerance float64
	Within    bool
	PValue    *float64
}

// ReportUI renders QC results.
type ReportUI struct {
	writer io.Writer
	quiet  bool
}

// NewReportUI creates a renderer. A quiet renderer prints nothing.
func NewReportUI(w io.Writer, quiet bool) *ReportUI {
	return &ReportUI{writer: w, quiet: quiet}
}

// PrintResult renders a boxed result.
func (r *ReportUI) PrintResult(v ResultView) {
	if r.quiet {
		return
	}
	var out strings.Builder
	out.WriteString(r.header(v))
	if v.Failure != "" {
		out.WriteString("\n\n")
		out.WriteString(Fail.Render(CrossMark + " " + v.Failure))
	}
	if len(v.Checks) > 0 {
		out.WriteString("\n\n")
		out.WriteString(r.checks(v.Checks))
	}
	if len(v.Parameters) > 0 {
		out.WriteString("\n\n")
		out.WriteString(r.parameters(v.Parameters))
	}
	if v.Residuals > 0 {
		out.WriteString("\n")
		out.WriteString(KeyValue("Residuals", fmt.Sprintf("%d/%d within tolerance", v.Residuals-v.OutOfTol, v.Residuals)))
	}
	if len(v.Stations) > 0 {
		out.WriteString("\n\n")
		out.WriteString(r.stations(v.Stations))
	}
	if len(v.Warnings) > 0 || len(v.MissingTerms) > 0 {
		out.WriteString("\n\n")
		out.WriteString(r.notes(v))
	}

	fmt.Fprintln(r.writer, Panel(v.Valid).Render(out.String()))
}

func (r *ReportUI) header(v ResultView) string {
	var sb strings.Builder
	sb.WriteString(Heading.Render(v.Test + " Result"))
	sb.WriteString("  ")
	sb.WriteString(Verdict(v.Valid))
	if v.Station != "" {
		sb.WriteString("\n")
		sb.WriteString(KeyValue("Station", Emphasis.Render(v.Station)))
	}
	if v.RunID != "" {
		sb.WriteString("\n")
		sb.WriteString(KeyValue("Run", Dim.Render(v.RunID)))
	}
	if v.Geometry != "" {
		sb.WriteString("\n")
		sb.WriteString(KeyValue("Geometry", v.Geometry))
	}
	if v.Converged != nil {
		sb.WriteString("\n")
		state := Pass.Render("converged")
		if !*v.Converged {
			state = Fail.Render("not converged")
		}
		sb.WriteString(KeyValue("Iterations", fmt.Sprintf("%d (%s)", v.Iterations, state)))
	}
	return sb.String()
}


func (r *ReportUI) checks(checks []CheckView) string {
	t := newTable("Check", "Measured", "Theoretical", "Error", "Tolerance", "")
	for _, c := range checks {
		measured := "-"
		if c.Measured != nil {
			measured = num(*c.Measured)
		}
		t.Row(c.Name, measured, num(c.Theoretical), num(c.Error), num(c.Tolerance), mark(abs(c.Error) <= c.Tolerance))
	}
	return Section.Render("Checks") + "\n" + t.String()
}

func (r *ReportUI) parameters(params []ParameterView) string {
	t := newTable("Term", "Unit", "Value", "Std dev", "p", "Tolerance", "")
	for _, p := range params {
		pv := "-"
		if p.PValue != nil {
			pv = strconv.FormatFloat(*p.PValue, 'f', 3, 64)
		}
		t.Row(p.Name, p.Unit, num(p.Value), num(p.StdDev), pv, num(p.Tolerance), mark(p.Within))
	}
	return Section.Render("Estimated terms") + "\n" + t.String()
}

func (r *ReportUI) stations(stations []ResultView) string {
	t := newTable("Station", "Result", "Detail")
	for _, s := range stations {
		detail := s.Failure
		if detail == "" && len(s.Warnings) > 0 {
			detail = strings.Join(s.Warnings, "; ")
		}
		t.Row(s.Station, Verdict(s.Valid), detail)
	}
	return Section.Render("Stations") + "\n" + t.String()
}

func (r *ReportUI) notes(v ResultView) string {
	var sb strings.Builder
	for _, w := range v.Warnings {
		sb.WriteString(WarnMark + " " + Warn.Render(w) + "\n")
	}
	if len(v.MissingTerms) > 0 {
		sb.WriteString(InfoMark + " " + Dim.Render("terms not in IPM: "+strings.Join(v.MissingTerms, ", ")) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// PrintPlain prints a one-line-per-check text summary without styling.
func (r *ReportUI) PrintPlain(v ResultView) {
	state := "PASS"
	if !v.Valid {
		state = "FAIL"
	}
	if v.Station != "" {
		fmt.Fprintf(r.writer, "%s %s station=%s\n", v.Test, state, v.Station)
	} else {
		fmt.Fprintf(r.writer, "%s %s\n", v.Test, state)
	}
	if v.Failure != "" {
		fmt.Fprintf(r.writer, "  failure: %s\n", v.Failure)
	}
	for _, c := range v.Checks {
		fmt.Fprintf(r.writer, "  %s: error %s tolerance %s\n", c.Name, num(c.Error), num(c.Tolerance))
	}
	for _, p := range v.Parameters {
		fmt.Fprintf(r.writer, "  %s: %s %s (tolerance %s)\n", p.Name, num(p.Value), p.Unit, num(p.Tolerance))
	}
	for _, s := range v.Stations {
		state := "PASS"
		if !s.Valid {
			state = "FAIL"
		}
		fmt.Fprintf(r.writer, "  station %s: %s\n", s.Station, state)
	}
	for _, w := range v.Warnings {
		fmt.Fprintf(r.writer, "  warning: %s\n", w)
	}
}

// PrintTable renders a titled table.
func (r *ReportUI) PrintTable(title string, headers []string, rows [][]string) {
	if r.quiet {
		return
	}
	t := newTable(headers...)
	for _, row := range rows {
		t.Row(row...)
	}
	if title != "" {
		fmt.Fprintln(r.writer, Section.Render(title))
	}
	fmt.Fprintln(r.writer, t.String())
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func mark(ok bool) string {
	if ok {
		return CheckMark
	}
	return CrossMark
}

func num(v float64) string { return strconv.FormatFloat(v, 'g', 5, 64) }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
