package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestColorAppliesANSICodes(t *testing.T) {
	got := Color("hello", FgGreen)
	want := FgGreen + "hello" + Reset
	if got != want {
		t.Fatalf("Color() = %q, want %q", got, want)
	}
}

func fp(v float64) *float64 { return &v }

func TestReportUI_PrintResult(t *testing.T) {
	converged := false
	tests := []struct {
		name  string
		view  ResultView
		quiet bool
		want  []string
	}{
		{
			name: "single station pass",
			view: ResultView{
				Test: "GET", Station: "S1", Valid: true, RunID: "run-1",
				Checks: []CheckView{{Name: "gravity", Measured: fp(1.0001), Theoretical: 1, Error: 0.0001, Tolerance: 0.0005}},
			},
			want: []string{"GET Result", "PASS", "S1", "run-1", "gravity", "0.0005"},
		},
		{
			name: "estimator failure with warnings",
			view: ResultView{
				Test: "MSE", Valid: false, Failure: "convergence_failure: 20 iterations",
				Converged: &converged, Iterations: 20, Geometry: "good",
				Parameters:   []ParameterView{{Name: "MBX", Unit: "nT", Value: 120, StdDev: 3, Tolerance: 140, Within: true, PValue: fp(0.01)}},
				Warnings:     []string{"confounded_parameters: MBX and MSX"},
				MissingTerms: []string{"MSZ"},
				Residuals:    24, OutOfTol: 2,
			},
			want: []string{"MSE Result", "FAIL", "convergence_failure", "not converged", "MBX", "0.010", "confounded_parameters", "MSZ", "22/24"},
		},
		{
			name: "aggregate",
			view: ResultView{Test: "TFDT", Stations: []ResultView{{Station: "A", Valid: true}, {Station: "B", Valid: false, Failure: "missing magnetometer"}}},
			want: []string{"Stations", "A", "B", "missing magnetometer"},
		},
		{
			name:  "quiet",
			view:  ResultView{Test: "GET"},
			quiet: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewReportUI(&buf, tt.quiet).PrintResult(tt.view)
			out := buf.String()
			if tt.quiet {
				if out != "" {
					t.Fatalf("quiet renderer wrote %q", out)
				}
				return
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestReportUI_PrintPlain(t *testing.T) {
	var buf bytes.Buffer
	NewReportUI(&buf, true).PrintPlain(ResultView{
		Test: "DDDT", Station: "D7", Valid: false,
		Checks:   []CheckView{{Name: "depth_difference", Error: 3.1, Tolerance: 2.449}},
		Warnings: []string{"estimated_tvd"},
	})
	out := buf.String()
	for _, w := range []string{"DDDT FAIL station=D7", "depth_difference: error 3.1 tolerance 2.449", "warning: estimated_tvd"} {
		if !strings.Contains(out, w) {
			t.Errorf("missing %q:\n%s", w, out)
		}
	}
}

func TestReportUI_PrintTable(t *testing.T) {
	var buf bytes.Buffer
	NewReportUI(&buf, false).PrintTable("Tests", []string{"ID", "Kind"}, [][]string{{"GET", "single-station"}, {"MSE", "multi-station"}})
	for _, w := range []string{"Tests", "ID", "GET", "multi-station"} {
		if !strings.Contains(buf.String(), w) {
			t.Errorf("missing %q", w)
		}
	}
}

func TestWorkflow_FinalState(t *testing.T) {
	var buf bytes.Buffer
	wf := NewWorkflow(&buf)
	a := wf.AddTask("a.json")
	b := wf.AddTask("b.json")
	c := wf.AddTask("c.json")
	wf.StartTask(a, "12 station(s)")
	wf.CompleteTask(a, "pass")
	wf.FailTask(b, "validation: surveys")
	wf.SkipTask(c, "cancelled")
	wf.Stop()

	snap := wf.Snapshot()
	if snap[0].Status != TaskDone || snap[1].Status != TaskFailed || snap[2].Status != TaskSkipped {
		t.Fatalf("statuses %+v", snap)
	}
	out := buf.String()
	for _, w := range []string{"a.json", "→ pass", "→ validation: surveys", "→ cancelled"} {
		if !strings.Contains(out, w) {
			t.Errorf("missing %q:\n%s", w, out)
		}
	}
	wf.StartTask(99, "ignored")
}

func TestBatchUI(t *testing.T) {
	var buf bytes.Buffer
	b := NewBatchUI(&buf, false)
	b.StartWorkflow("GET", []string{"/data/one.json", "/data/two.yaml"})
	b.StartInput(0, 3)
	b.CompleteInput(0, true, "out/one.json")
	b.FailInput(1, errors.New("boom"))
	b.FinishWorkflow()
	b.PrintSummary(1, 0, 1)
	out := buf.String()
	for _, w := range []string{"Running GET on 2 file(s)", "one.json", "pass, out/one.json", "boom", "Batch Complete", "Errors"} {
		if !strings.Contains(out, w) {
			t.Errorf("missing %q:\n%s", w, out)
		}
	}

	var quiet bytes.Buffer
	q := NewBatchUI(&quiet, true)
	q.StartWorkflow("GET", []string{"x"})
	q.FinishWorkflow()
	q.PrintSummary(0, 0, 0)
	if quiet.Len() != 0 {
		t.Fatalf("quiet batch wrote %q", quiet.String())
	}
}

func TestSimpleSpinner(t *testing.T) {
	var buf bytes.Buffer
	s := NewSimpleSpinner(&buf, "estimating")
	s.Start()
	s.UpdateMessage("iterating")
	s.Stop(true, "done")
	if !strings.Contains(buf.String(), "done") {
		t.Fatalf("got %q", buf.String())
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	if buf.Len() == 0 {
		t.Fatal("empty banner")
	}
}

func TestCoverageUI(t *testing.T) {
	r := CoverageReport{
		Model: "MWD", Score: 0.5, Passed: 6, Total: 12, Missing: []string{"MBX"},
		Tests: []TestCoverage{
			{Test: "GET", Score: 1, Passed: 6, Total: 6},
			{Test: "TFDT", Score: 0, Passed: 0, Total: 1, Missing: []string{"MBX"}},
		},
	}

	var styled bytes.Buffer
	NewCoverageUI(&styled, false).PrintReport(r)
	for _, want := range []string{"IPM Coverage", "MWD", "50.0%", "GET", "TFDT", "MBX"} {
		if !strings.Contains(styled.String(), want) {
			t.Errorf("report missing %q:\n%s", want, styled.String())
		}
	}

	var plain bytes.Buffer
	NewCoverageUI(&plain, false).PrintSimpleReport(r)
	if !strings.Contains(plain.String(), "TFDT: 0.0% (0/1) missing MBX") {
		t.Errorf("plain = %q", plain.String())
	}

	var quiet bytes.Buffer
	NewCoverageUI(&quiet, true).PrintReport(r)
	if quiet.Len() != 0 {
		t.Errorf("quiet wrote %q", quiet.String())
	}
}

func TestProgressBarClamps(t *testing.T) {
	if got := strings.Count(progressBar(1.5, 10), "█"); got != 10 {
		t.Fatalf("filled %d", got)
	}
	if got := strings.Count(progressBar(-1, 10), "░"); got != 10 {
		t.Fatalf("empty %d", got)
	}
}

func TestVerdictAndScoreColor(t *testing.T) {
	if !strings.Contains(Verdict(true), "PASS") || !strings.Contains(Verdict(false), "FAIL") {
		t.Fatalf("verdicts %q %q", Verdict(true), Verdict(false))
	}
	cases := []struct {
		score float64
		want  any
	}{
		{1, ColorPass},
		{0.8, ColorPass},
		{0.6, ColorWarn},
		{0.1, ColorFail},
	}
	for _, tc := range cases {
		if got := ScoreColor(tc.score); got != tc.want {
			t.Errorf("ScoreColor(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
	if out := Panel(false).Render("x"); !strings.Contains(out, "x") || !strings.Contains(out, "╭") {
		t.Errorf("panel = %q", out)
	}
}
