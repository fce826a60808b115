package qc

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/catalog"
	"github.com/idlab-discover/surveyqc-cli/internal/config"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
)

// Test kinds.
const (
	KindSingle     = "single-station"
	KindMulti      = "multi-station"
	KindComparison = "comparison"
)

// Info describes a registered test.
type Info struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Kind        string `json:"kind" yaml:"kind"`
	Description string `json:"description" yaml:"description"`
	MinStations int    `json:"min_stations" yaml:"min_stations"`
}

// Test is one QC test. Evaluate returns an error only for invalid input
// (parse or validation errors); geometric and numerical failures are captured
// in the result.
type Test interface {
	Info() Info
	Terms() []catalog.Term
	Evaluate(stations []survey.Station, model *ipm.Model) (*Result, error)
}

type contextTest interface {
	EvaluateContext(ctx context.Context, stations []survey.Station, model *ipm.Model) (*Result, error)
}

// Registry maps test identifiers to implementations.
type Registry struct {
	tests map[string]Test
}

// NewRegistry registers every test with the given settings.
func NewRegistry(s config.Settings) *Registry {
	s = s.Normalize()
	r := &Registry{tests: map[string]Test{}}
	for _, t := range []Test{
		GET{Settings: s},
		TFDT{Settings: s},
		HERT{Settings: s},
		RSMT{Settings: s},
		DDDT{Settings: s},
		MSAT{Settings: s},
		MSGT{Settings: s},
		MSMT{Settings: s},
		MSE{Settings: s},
		IDT{Settings: s},
		ADT{Settings: s},
		IOMT{Settings: s},
	} {
		r.tests[t.Info().ID] = t
	}
	return r
}

// Lookup returns the test registered under id (case-insensitive).
func (r *Registry) Lookup(id string) (Test, error) {
	t, ok := r.tests[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return nil, apperr.Userf("unknown test %q (supported: %s)", id, strings.Join(r.IDs(), ", "))
	}
	return t, nil
}

// IDs lists registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.tests))
	for id := range r.tests {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var kindOrder = map[string]int{KindSingle: 0, KindMulti: 1, KindComparison: 2}

// Supported lists the registered tests: single-station, then multi-station,
// then comparison tests.
func (r *Registry) Supported() []Info {
	out := make([]Info, 0, len(r.tests))
	for _, id := range r.IDs() {
		out = append(out, r.tests[id].Info())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return kindOrder[out[i].Kind] < kindOrder[out[j].Kind]
	})
	return out
}

// IsComparison reports whether test id compares two surveys.
func (r *Registry) IsComparison(id string) bool {
	t, err := r.Lookup(id)
	if err != nil {
		return false
	}
	_, ok := t.(Comparison)
	return ok
}

// Compare runs comparison test id between reference and candidate.
func (r *Registry) Compare(id string, reference, candidate []survey.Station, model *ipm.Model) (*Result, error) {
	t, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	c, ok := t.(Comparison)
	if !ok {
		return nil, apperr.Userf("%s is not a comparison test", t.Info().ID)
	}
	if len(candidate) == 0 {
		return nil, apperr.Missing("comparison")
	}
	logf("", "comparing %d against %d station(s) with %s", len(reference), len(candidate), t.Info().ID)
	return c.Compare(reference, candidate, model)
}

// Evaluate runs test id.
func (r *Registry) Evaluate(id string, stations []survey.Station, model *ipm.Model) (*Result, error) {
	return r.EvaluateContext(context.Background(), id, stations, model)
}

// EvaluateContext runs test id, passing ctx to tests that iterate.
func (r *Registry) EvaluateContext(ctx context.Context, id string, stations []survey.Station, model *ipm.Model) (*Result, error) {
	t, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, apperr.Missing("ipm")
	}
	logf("", "evaluating %s on %d station(s) with model %q", t.Info().ID, len(stations), model.ShortName)
	if c, ok := t.(contextTest); ok {
		return c.EvaluateContext(ctx, stations, model)
	}
	return t.Evaluate(stations, model)
}

// Compatibility reports which catalogued terms of test id the model lacks.
func (r *Registry) Compatibility(id string, model *ipm.Model) ([]string, error) {
	t, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	return catalog.Missing(model, t.Terms()), nil
}

// eachStation runs fn for every station and aggregates the results.
func eachStation(test string, stations []survey.Station, fn func(survey.Station) (*Result, error)) (*Result, error) {
	if len(stations) == 0 {
		return nil, apperr.Missing("surveys")
	}
	results := make([]*Result, 0, len(stations))
	for i, st := range stations {
		res, err := fn(st)
		if err != nil {
			if len(stations) == 1 {
				return nil, err
			}
			return nil, fmt.Errorf("station %d (%s): %w", i, st.Label(), err)
		}
		res.Station = st.Label()
		results = append(results, res)
	}
	return aggregate(test, results), nil
}
