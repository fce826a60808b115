package propagation

import (
	"math"
	"testing"

	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
)

func model(t *testing.T, text string) *ipm.Model {
	t.Helper()
	m, err := ipm.ParseString(text)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return m
}

func TestPropagate_RSSWithMultiplier(t *testing.T) {
	m := model(t, "A e s - 3\nB e s - 4\n")
	res := Propagate(m, []Source{
		{Names: []string{"A"}, Weight: 1},
		{Names: []string{"B"}, Weight: 1},
	}, 2)
	if res.RSS != 5 {
		t.Fatalf("RSS = %v, want 5", res.RSS)
	}
	if res.Tolerance != 10 {
		t.Fatalf("Tolerance = %v, want 10", res.Tolerance)
	}
}

func TestPropagate_DefaultMultiplier(t *testing.T) {
	m := model(t, "A e s - 1\n")
	res := Propagate(m, []Source{{Names: []string{"A"}, Weight: 1}}, 0)
	if res.Multiplier != DefaultConfidence || res.Tolerance != DefaultConfidence {
		t.Fatalf("got multiplier %v tolerance %v", res.Multiplier, res.Tolerance)
	}
}

func TestPropagate_ZeroWeightKeptForProvenance(t *testing.T) {
	m := model(t, "A e s - 3\nB e s - 4\n")
	res := Propagate(m, []Source{
		{Names: []string{"A"}, Weight: 0},
		{Names: []string{"B"}, Weight: 1},
	}, 1)
	if len(res.Terms) != 2 {
		t.Fatalf("expected both terms traced, got %d", len(res.Terms))
	}
	if !res.Terms[0].Found || res.Terms[0].Contribution != 0 {
		t.Fatalf("zero-weight term trace = %+v", res.Terms[0])
	}
	if res.Tolerance != 4 {
		t.Fatalf("Tolerance = %v, want 4", res.Tolerance)
	}
}

func TestPropagate_MissingTermDegrades(t *testing.T) {
	m := model(t, "A e s - 3\n")
	res := Propagate(m, []Source{
		{Names: []string{"A"}, Weight: 1},
		{Names: []string{"MISSING", "ALSO-MISSING"}, Weight: 1},
	}, 1)
	if len(res.Missing) != 1 || res.Missing[0].Name != "MISSING" {
		t.Fatalf("Missing = %+v", res.Missing)
	}
	if res.Terms[1].Found {
		t.Fatalf("missing term reported as found")
	}
	if res.Tolerance != 3 {
		t.Fatalf("Tolerance = %v, want 3", res.Tolerance)
	}
	if res.Resolved() != 1 {
		t.Fatalf("Resolved = %d, want 1", res.Resolved())
	}
}

func TestPropagate_FallbackName(t *testing.T) {
	m := model(t, "ABXY-TI1S e s m/s2 0.0004\n")
	res := Propagate(m, []Source{{Names: []string{"ABX", "ABXY-TI1S"}, Unit: "g", Weight: 1}}, 1)
	if !res.Terms[0].Found || res.Terms[0].Name != "ABXY-TI1S" {
		t.Fatalf("trace = %+v", res.Terms[0])
	}
	if want := 0.0004 / ipm.StandardGravity; math.Abs(res.Tolerance-want) > 1e-18 {
		t.Fatalf("Tolerance = %v, want %v", res.Tolerance, want)
	}
}

func TestPropagate_GroupCombinesLinearly(t *testing.T) {
	m := model(t, "M e s - 1\n")
	grouped := Propagate(m, []Source{
		{Group: "M", Names: []string{"M"}, Weight: 3},
		{Group: "M", Names: []string{"M"}, Weight: 4},
	}, 1)
	if grouped.Tolerance != 7 {
		t.Fatalf("grouped tolerance = %v, want 7", grouped.Tolerance)
	}
	independent := Propagate(m, []Source{
		{Group: "Mx", Names: []string{"M"}, Weight: 3},
		{Group: "My", Names: []string{"M"}, Weight: 4},
	}, 1)
	if independent.Tolerance != 5 {
		t.Fatalf("independent tolerance = %v, want 5", independent.Tolerance)
	}
}

func TestPropagate_OrderInvariant(t *testing.T) {
	m := model(t, "A e s - 0.3\nB e s - 1.7\nC e s - 0.011\nD e s - 42\n")
	src := []Source{
		{Names: []string{"A"}, Weight: 0.7},
		{Names: []string{"B"}, Weight: -1.2},
		{Names: []string{"C"}, Weight: 19},
		{Names: []string{"D"}, Weight: 1e-3},
	}
	want := Propagate(m, src, 2).Tolerance
	perms := [][]int{{3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}}
	for _, p := range perms {
		reordered := make([]Source, len(p))
		for i, j := range p {
			reordered[i] = src[j]
		}
		if got := Propagate(m, reordered, 2).Tolerance; math.Abs(got-want) > 1e-14*want {
			t.Fatalf("order %v: tolerance %v, want %v", p, got, want)
		}
	}
}

func TestPropagate_StrictlyPositive(t *testing.T) {
	res := Propagate(nil, []Source{{Names: []string{"A"}, Weight: 1}}, 2)
	if res.Tolerance <= 0 {
		t.Fatalf("Tolerance = %v, want > 0", res.Tolerance)
	}
	if res.Terms[0].Note == "" {
		t.Fatalf("expected a note on the unresolved trace")
	}
}

func TestPropagate_UnitMismatchIsNoted(t *testing.T) {
	m := model(t, "MBZ e s nT 70\n")
	res := Propagate(m, []Source{{Names: []string{"MBZ"}, Unit: "g", Weight: 1}}, 1)
	if res.Terms[0].Found || res.Terms[0].Note == "" {
		t.Fatalf("trace = %+v", res.Terms[0])
	}
}
