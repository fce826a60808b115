// Package ipm parses Instrument Performance Model text into error terms.
//
// An IPM is line oriented:
//
//	#ShortName: MWD+IFR1
//	#Description: MWD with in-field referencing
//	ABZ    e  s  m/s2  0.0004  tfo
//	ASZ    e  s  -     0.0005
//
// Terms are identified by (name, vector, tie-on). Values are converted to the
// engine's internal units once, at parse time.
package ipm

import (
	"fmt"
	"strings"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
)

// ErrorTerm is one named systematic error source.
type ErrorTerm struct {
	Name    string  `json:"name" yaml:"name"`
	Vector  string  `json:"vector_code" yaml:"vector_code"`
	TieOn   string  `json:"tie_on_code" yaml:"tie_on_code"`
	Unit    string  `json:"unit_raw" yaml:"unit_raw"`
	Value   float64 `json:"value_raw" yaml:"value_raw"`
	ValueSI float64 `json:"value_si" yaml:"value_si"`
	Formula string  `json:"formula_ref,omitempty" yaml:"formula_ref,omitempty"`
	Line    int     `json:"line,omitempty" yaml:"line,omitempty"`
}

// Key returns the identity of the term.
func (t ErrorTerm) Key() Key { return NewKey(t.Name, t.Vector, t.TieOn) }

// SIUnit is the internal unit ValueSI is expressed in.
func (t ErrorTerm) SIUnit() string {
	c, _ := LookupUnit(t.Unit)
	return c.Internal
}

// In expresses the term magnitude in the given unit.
func (t ErrorTerm) In(target string) (float64, error) {
	return FromSI(t.ValueSI, t.SIUnit(), target)
}

// Key identifies a term within a model. Names are normalised so that
// "ABXY_TI1S" and "abxy-ti1s" address the same term.
type Key struct {
	Name   string
	Vector string
	TieOn  string
}

// NewKey builds a normalised key.
func NewKey(name, vector, tieOn string) Key {
	return Key{Name: NormalizeName(name), Vector: strings.ToLower(strings.TrimSpace(vector)), TieOn: strings.ToLower(strings.TrimSpace(tieOn))}
}

func (k Key) String() string { return fmt.Sprintf("%s/%s/%s", k.Name, orStar(k.Vector), orStar(k.TieOn)) }

func orStar(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

// NormalizeName upper-cases a term name and folds '_' into '-'.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(name)), "_", "-")
}

// Model is a parsed IPM. It is read-only once returned by Parse.
type Model struct {
	ShortName   string      `json:"short_name" yaml:"short_name"`
	Description string      `json:"description" yaml:"description"`
	Terms       []ErrorTerm `json:"terms" yaml:"terms"`

	index map[Key]int
}

// Len reports the number of terms.
func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Terms)
}

// Lookup returns the term matching (name, vector, tieOn). Empty vector or tieOn
// act as wildcards; the first term in file order wins. A miss returns an
// *apperr.TermNotFound.
func (m *Model) Lookup(name, vector, tieOn string) (ErrorTerm, error) {
	notFound := &apperr.TermNotFound{Name: name, Vector: vector, TieOn: tieOn}
	if m == nil {
		return ErrorTerm{}, notFound
	}
	want := NewKey(name, vector, tieOn)
	if want.Vector != "" && want.TieOn != "" {
		if i, ok := m.index[want]; ok {
			return m.Terms[i], nil
		}
		return ErrorTerm{}, notFound
	}
	for _, t := range m.Terms {
		k := t.Key()
		if k.Name != want.Name {
			continue
		}
		if want.Vector != "" && k.Vector != want.Vector {
			continue
		}
		if want.TieOn != "" && k.TieOn != want.TieOn {
			continue
		}
		return t, nil
	}
	return ErrorTerm{}, notFound
}

// Has reports whether any term carries the given name.
func (m *Model) Has(name string) bool {
	_, err := m.Lookup(name, "", "")
	return err == nil
}

// Names lists the distinct normalised term names in file order.
func (m *Model) Names() []string {
	if m == nil {
		return nil
	}
	seen := make(map[string]bool, len(m.Terms))
	var out []string
	for _, t := range m.Terms {
		n := NormalizeName(t.Name)
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func (m *Model) add(t ErrorTerm) error {
	if m.index == nil {
		m.index = make(map[Key]int)
	}
	k := t.Key()
	if prev, dup := m.index[k]; dup {
		return fmt.Errorf("duplicate term %s (first defined on line %d)", k, m.Terms[prev].Line)
	}
	m.index[k] = len(m.Terms)
	m.Terms = append(m.Terms, t)
	return nil
}
