// Package qc implements the survey QC tests and the registry that dispatches
// them by identifier.
package qc

import (
	"fmt"
	"math"
	"sort"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/mse"
	"github.com/idlab-discover/surveyqc-cli/internal/propagation"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
)

// Warning is a coded, human-readable note attached to a result.
type Warning struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// Details carries everything a reviewer needs to audit a result.
type Details struct {
	Warnings           []Warning                      `json:"warnings" yaml:"warnings"`
	WeightingFunctions map[string]any                 `json:"weighting_functions,omitempty" yaml:"weighting_functions,omitempty"`
	DebugIPMTerms      map[string][]propagation.Trace `json:"debug_ipm_terms,omitempty" yaml:"debug_ipm_terms,omitempty"`
	MissingTerms       []string                       `json:"missing_terms,omitempty" yaml:"missing_terms,omitempty"`
	Extra              map[string]any                 `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Result is the outcome of one test.
//
// Measurements may hold nil for values that are undefined at the station's
// geometry (toolface of a vertical tool).
type Result struct {
	TestName string `json:"test_name" yaml:"test_name"`
	Station  string `json:"station,omitempty" yaml:"station,omitempty"`
	IsValid  bool   `json:"is_valid" yaml:"is_valid"`

	Measurements      map[string]*float64 `json:"measurements" yaml:"measurements"`
	TheoreticalValues map[string]float64  `json:"theoretical_values" yaml:"theoretical_values"`
	Errors            map[string]float64  `json:"errors" yaml:"errors"`
	Tolerances        map[string]float64  `json:"tolerances" yaml:"tolerances"`

	Details Details          `json:"details" yaml:"details"`
	Failure *apperr.Failure  `json:"failure,omitempty" yaml:"failure,omitempty"`

	MultiStation *MultiStation `json:"multi_station,omitempty" yaml:"multi_station,omitempty"`
	Estimation   *mse.Result   `json:"estimation,omitempty" yaml:"estimation,omitempty"`

	// Stations holds per-station results when a single-station test runs
	// over several stations.
	Stations []*Result `json:"stations,omitempty" yaml:"stations,omitempty"`
}

func newResult(test string) *Result {
	return &Result{
		TestName:          test,
		Measurements:      map[string]*float64{},
		TheoreticalValues: map[string]float64{},
		Errors:            map[string]float64{},
		Tolerances:        map[string]float64{},
		Details: Details{
			Warnings:           []Warning{},
			WeightingFunctions: map[string]any{},
			DebugIPMTerms:      map[string][]propagation.Trace{},
		},
	}
}

func (r *Result) warn(code, format string, args ...any) {
	r.Details.Warnings = append(r.Details.Warnings, Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

// HasWarning reports whether a warning with the given code was raised.
func (r *Result) HasWarning(code string) bool {
	for _, w := range r.Details.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func (r *Result) measure(key string, v float64) { r.Measurements[key] = survey.Float(v) }

func (r *Result) extra(key string, v any) {
	if r.Details.Extra == nil {
		r.Details.Extra = map[string]any{}
	}
	r.Details.Extra[key] = v
}

// check records one measured-vs-theoretical comparison and its tolerance,
// keeping the propagation trace under the same key.
func (r *Result) check(key string, measured, theoretical float64, prop propagation.Result) {
	r.measure(key, measured)
	r.TheoreticalValues[key] = theoretical
	r.Errors[key] = measured - theoretical
	r.Tolerances[key] = prop.Tolerance
	r.trace(key, prop)
}

func (r *Result) trace(key string, prop propagation.Result) {
	r.Details.DebugIPMTerms[key] = prop.Terms
	for _, m := range prop.Missing {
		r.addMissing(m.Name)
	}
	if prop.Resolved() == 0 {
		r.warn("no_tolerance_terms", "%s: no IPM term resolved, tolerance falls back to %.0e", key, prop.Tolerance)
	}
}

func (r *Result) addMissing(name string) {
	for _, n := range r.Details.MissingTerms {
		if n == name {
			return
		}
	}
	r.Details.MissingTerms = append(r.Details.MissingTerms, name)
}

// fail captures a geometry, singularity or convergence error.
func (r *Result) fail(err error) {
	r.Failure = apperr.AsFailure(err)
	if r.Failure == nil {
		r.Failure = &apperr.Failure{Kind: "error", Message: err.Error()}
	}
	r.IsValid = false
}

// finalize sets IsValid from the recorded errors and tolerances.
func (r *Result) finalize() *Result {
	if r.Failure != nil {
		r.IsValid = false
		return r
	}
	valid := len(r.Errors) > 0
	for k, e := range r.Errors {
		if math.Abs(e) > r.Tolerances[k] {
			valid = false
		}
	}
	if r.MultiStation != nil {
		for _, res := range r.MultiStation.Residuals {
			if !res.WithinTolerance {
				valid = false
			}
		}
	}
	r.IsValid = valid
	sort.Strings(r.Details.MissingTerms)
	return r
}

// aggregate wraps per-station results of a single-station test.
func aggregate(test string, results []*Result) *Result {
	if len(results) == 1 {
		return results[0]
	}
	agg := newResult(test)
	agg.Stations = results
	agg.IsValid = len(results) > 0
	failed := 0
	for _, r := range results {
		if !r.IsValid {
			agg.IsValid = false
			failed++
		}
		for _, m := range r.Details.MissingTerms {
			agg.addMissing(m)
		}
	}
	agg.extra("stations_evaluated", len(results))
	agg.extra("stations_failed", failed)
	sort.Strings(agg.Details.MissingTerms)
	return agg
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
