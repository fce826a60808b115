package ipm

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
)

const sampleIPM = `#ShortName: MWD-TEST
#Description: Standard MWD with axial interference correction
# free text comment that is ignored

ABXY-TI1S e s m/s2 0.0004 tfo
ABZ       e s m/s2 0.0004
ASXY-TI1S e s -    0.0005
ASZ       e s -    0.0005
MBZ       e s nT   70     tfo * sin(inc)
MFI       e g nT   130
MDI       e g deg  0.2
GBX       e s deg/hr 0.1
DSF-PIPE  e s ppm  350
`

func TestParse_HeaderAndTerms(t *testing.T) {
	m, err := ParseString(sampleIPM)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if m.ShortName != "MWD-TEST" {
		t.Errorf("ShortName = %q", m.ShortName)
	}
	if !strings.Contains(m.Description, "axial interference") {
		t.Errorf("Description = %q", m.Description)
	}
	if m.Len() != 9 {
		t.Fatalf("Len = %d, want 9", m.Len())
	}
	mbz, err := m.Lookup("MBZ", "e", "s")
	if err != nil {
		t.Fatalf("Lookup MBZ: %v", err)
	}
	if mbz.Formula != "tfo * sin(inc)" {
		t.Errorf("Formula = %q", mbz.Formula)
	}
	if mbz.Line != 9 {
		t.Errorf("Line = %d, want 9", mbz.Line)
	}
}

func TestParse_UnitConversion(t *testing.T) {
	m, err := ParseString(sampleIPM)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	tests := []struct {
		name string
		want float64
	}{
		{"ABZ", 0.0004},
		{"ASZ", 0.0005},
		{"MFI", 130},
		{"MDI", 0.2 * math.Pi / 180},
		{"GBX", 0.1 * math.Pi / 180 / 3600},
		{"DSF-PIPE", 350e-6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term, err := m.Lookup(tt.name, "", "")
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if math.Abs(term.ValueSI-tt.want) > 1e-15 {
				t.Fatalf("ValueSI = %g, want %g", term.ValueSI, tt.want)
			}
		})
	}
}

func TestErrorTerm_In(t *testing.T) {
	m, err := ParseString("ABZ e s m/s2 0.0004\nMDI e g deg 0.2\nGBX e s deg/hr 0.1\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	abz, _ := m.Lookup("ABZ", "", "")
	g, err := abz.In("g")
	if err != nil || math.Abs(g-0.0004/StandardGravity) > 1e-15 {
		t.Fatalf("ABZ in g = %g, %v", g, err)
	}
	mdi, _ := m.Lookup("MDI", "", "")
	deg, err := mdi.In("deg")
	if err != nil || math.Abs(deg-0.2) > 1e-12 {
		t.Fatalf("MDI in deg = %g, %v", deg, err)
	}
	gbx, _ := m.Lookup("GBX", "", "")
	rate, err := gbx.In("deg/hr")
	if err != nil || math.Abs(rate-0.1) > 1e-12 {
		t.Fatalf("GBX in deg/hr = %g, %v", rate, err)
	}
	if _, err := abz.In("nT"); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantLine int
		reason   string
	}{
		{"too few fields", "#ShortName: x\nABZ e s m/s2\n", 2, "at least 5 fields"},
		{"non numeric value", "ABZ e s m/s2 abc\n", 1, "not a number"},
		{"unknown unit", "\nABZ e s furlong 1\n", 2, "unrecognised unit"},
		{"duplicate key", "ABZ e s m/s2 1\nABZ e s m/s2 2\n", 2, "duplicate term"},
		{"duplicate after name folding", "ABXY-TI1S e s m/s2 1\nabxy_ti1s e s m/s2 2\n", 2, "duplicate term"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.text)
			var pe *apperr.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if pe.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", pe.Line, tt.wantLine)
			}
			if !strings.Contains(pe.Reason, tt.reason) {
				t.Errorf("Reason = %q, want %q", pe.Reason, tt.reason)
			}
			if pe.Text == "" {
				t.Errorf("expected raw text in error")
			}
		})
	}
}

func TestParse_SameNameDifferentTieOnIsAllowed(t *testing.T) {
	m, err := ParseString("ABZ e s m/s2 1\nABZ e g m/s2 2\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	g, err := m.Lookup("ABZ", "e", "g")
	if err != nil || g.Value != 2 {
		t.Fatalf("Lookup tie-on g = %+v, %v", g, err)
	}
	first, err := m.Lookup("ABZ", "", "")
	if err != nil || first.Value != 1 {
		t.Fatalf("wildcard lookup should return the first term, got %+v, %v", first, err)
	}
}

func TestLookup_NameVariantsAndMiss(t *testing.T) {
	m, err := ParseString(sampleIPM)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if _, err := m.Lookup("abxy_ti1s", "", ""); err != nil {
		t.Fatalf("expected underscore variant to resolve: %v", err)
	}
	_, err = m.Lookup("XYZ", "e", "s")
	var nf *apperr.TermNotFound
	if !errors.As(err, &nf) || nf.Name != "XYZ" {
		t.Fatalf("expected TermNotFound, got %v", err)
	}
	var nilModel *Model
	if _, err := nilModel.Lookup("ABZ", "", ""); err == nil {
		t.Fatalf("nil model lookup must fail")
	}
}

func TestRoundTrip_PreservesTermIdentity(t *testing.T) {
	m, err := ParseString(sampleIPM)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	again, err := ParseString(m.String())
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if again.ShortName != m.ShortName || again.Description != m.Description {
		t.Fatalf("header lost: %q/%q", again.ShortName, again.Description)
	}
	if again.Len() != m.Len() {
		t.Fatalf("Len = %d, want %d", again.Len(), m.Len())
	}
	for i, want := range m.Terms {
		got := again.Terms[i]
		if got.Key() != want.Key() || got.Unit != want.Unit || got.Value != want.Value || got.Formula != want.Formula {
			t.Errorf("term %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestUnits_Listing(t *testing.T) {
	units := Units()
	if len(units) == 0 {
		t.Fatalf("expected units")
	}
	for _, u := range []string{"deg", "deg/hr", "m/s2", "nt", "-"} {
		if _, ok := LookupUnit(u); !ok {
			t.Errorf("unit %q missing", u)
		}
	}
}
