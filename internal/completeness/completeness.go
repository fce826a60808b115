// Package completeness scores how well an IPM covers the error terms each QC
// test draws on.
package completeness

import (
	"github.com/idlab-discover/surveyqc-cli/internal/catalog"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/qc"
)

// Report is the coverage of one model.
type Report struct {
	Model   string   `json:"model" yaml:"model"`
	Score   float64  `json:"score" yaml:"score"` // 0..1
	Passed  int      `json:"passed" yaml:"passed"`
	Total   int      `json:"total" yaml:"total"`
	Missing []string `json:"missing" yaml:"missing"`

	Tests []TestReport `json:"tests" yaml:"tests"`
}

// TestReport is the coverage of the terms one test uses. A test with missing
// terms still runs; the missing terms contribute no tolerance.
type TestReport struct {
	Test    string   `json:"test" yaml:"test"`
	Score   float64  `json:"score" yaml:"score"`
	Passed  int      `json:"passed" yaml:"passed"`
	Total   int      `json:"total" yaml:"total"`
	Missing []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	Ready   bool     `json:"ready" yaml:"ready"`
}

// Check scores model against every test in reg.
func Check(model *ipm.Model, reg *qc.Registry) Report {
	r := Report{Model: model.ShortName}
	seen := map[string]bool{}
	missing := map[string]bool{}

	for _, info := range reg.Supported() {
		test, err := reg.Lookup(info.ID)
		if err != nil {
			continue
		}
		terms := dedupe(test.Terms())
		lacks := catalog.Missing(model, terms)
		tr := TestReport{Test: info.ID, Total: len(terms), Passed: len(terms) - len(lacks), Missing: lacks, Ready: len(lacks) == 0}
		tr.Score = ratio(tr.Passed, tr.Total)
		r.Tests = append(r.Tests, tr)

		for _, t := range terms {
			seen[t.Name] = true
		}
		for _, n := range lacks {
			if !missing[n] {
				missing[n] = true
				r.Missing = append(r.Missing, n)
			}
		}
	}

	r.Total = len(seen)
	r.Passed = r.Total - len(missing)
	r.Score = ratio(r.Passed, r.Total)
	logf("model %q covers %d/%d catalogued terms", r.Model, r.Passed, r.Total)
	return r
}

func dedupe(terms []catalog.Term) []catalog.Term {
	seen := map[string]bool{}
	out := terms[:0:0]
	for _, t := range terms {
		if !seen[t.Name] {
			seen[t.Name] = true
			out = append(out, t)
		}
	}
	return out
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 1
	}
	return float64(a) / float64(b)
}
