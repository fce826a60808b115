// Package propagation combines weighted IPM error terms into a tolerance by
// root-sum-of-squares, keeping a trace of every term it was asked for.
package propagation

import (
	"errors"
	"math"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
)

// DefaultConfidence is the multiplier applied to the RSS (2σ).
const DefaultConfidence = 2.0

// MinTolerance keeps tolerances strictly positive.
const MinTolerance = 1e-12

// TermSource resolves IPM terms. *ipm.Model satisfies it.
type TermSource interface {
	Lookup(name, vector, tieOn string) (ipm.ErrorTerm, error)
}

// Source binds one error source to its weighting-function value.
//
// Names are lookup candidates tried in order. Unit is the working unit the
// term magnitude is expressed in before weighting (for example "g" or "deg");
// empty keeps the internal unit. Sources with the same Group act on one
// physical error and combine linearly before the RSS.
type Source struct {
	Group  string
	Names  []string
	Vector string
	TieOn  string
	Unit   string
	Weight float64
}

// Trace records how one source contributed.
type Trace struct {
	Group        string  `json:"group" yaml:"group"`
	Requested    string  `json:"requested" yaml:"requested"`
	Name         string  `json:"name,omitempty" yaml:"name,omitempty"`
	Vector       string  `json:"vector_code,omitempty" yaml:"vector_code,omitempty"`
	TieOn        string  `json:"tie_on_code,omitempty" yaml:"tie_on_code,omitempty"`
	UnitRaw      string  `json:"unit_raw,omitempty" yaml:"unit_raw,omitempty"`
	ValueRaw     float64 `json:"value_raw" yaml:"value_raw"`
	ValueSI      float64 `json:"value_si" yaml:"value_si"`
	Magnitude    float64 `json:"magnitude" yaml:"magnitude"`
	Weight       float64 `json:"weight" yaml:"weight"`
	Contribution float64 `json:"contribution" yaml:"contribution"`
	Found        bool    `json:"found" yaml:"found"`
	Note         string  `json:"note,omitempty" yaml:"note,omitempty"`
}

// Result is a combined tolerance with provenance.
type Result struct {
	RSS        float64
	Multiplier float64
	Tolerance  float64
	Terms      []Trace
	Missing    []*apperr.TermNotFound
}

// Resolved counts the sources that found a term.
func (r Result) Resolved() int {
	n := 0
	for _, t := range r.Terms {
		if t.Found {
			n++
		}
	}
	return n
}

// Propagate resolves every source against model and combines them into
// k·sqrt(Σ group²), where each group contribution is Σ wᵢ·eᵢ. Unresolved
// sources contribute zero and are reported in Missing. Non-positive k falls
// back to DefaultConfidence.
func Propagate(model TermSource, sources []Source, k float64) Result {
	if k <= 0 {
		k = DefaultConfidence
	}
	res := Result{Multiplier: k, Terms: make([]Trace, 0, len(sources))}

	groups := make(map[string]float64, len(sources))
	var order []string
	for _, s := range sources {
		tr := resolve(model, s)
		if !tr.Found {
			res.Missing = append(res.Missing, &apperr.TermNotFound{Name: tr.Requested, Vector: s.Vector, TieOn: s.TieOn})
		}
		res.Terms = append(res.Terms, tr)

		g := s.Group
		if g == "" {
			g = tr.Requested
		}
		if _, seen := groups[g]; !seen {
			order = append(order, g)
		}
		groups[g] += tr.Contribution
	}

	var sum float64
	for _, g := range order {
		sum += groups[g] * groups[g]
	}
	res.RSS = math.Sqrt(sum)
	res.Tolerance = math.Max(k*res.RSS, MinTolerance)
	return res
}

func resolve(model TermSource, s Source) Trace {
	tr := Trace{Group: s.Group, Weight: s.Weight}
	if len(s.Names) > 0 {
		tr.Requested = s.Names[0]
	}
	if model == nil {
		tr.Note = "no model"
		return tr
	}
	for _, name := range s.Names {
		term, err := model.Lookup(name, s.Vector, s.TieOn)
		var nf *apperr.TermNotFound
		if errors.As(err, &nf) {
			continue
		}
		if err != nil {
			tr.Note = err.Error()
			return tr
		}
		mag := term.ValueSI
		if s.Unit != "" {
			v, err := term.In(s.Unit)
			if err != nil {
				tr.Note = err.Error()
				return tr
			}
			mag = v
		}
		tr.Name, tr.Vector, tr.TieOn = term.Name, term.Vector, term.TieOn
		tr.UnitRaw, tr.ValueRaw, tr.ValueSI = term.Unit, term.Value, term.ValueSI
		tr.Magnitude = mag
		tr.Contribution = s.Weight * mag
		tr.Found = true
		return tr
	}
	tr.Note = "term not found"
	return tr
}
