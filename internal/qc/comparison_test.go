package qc

import (
	"errors"
	"math"
	"testing"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
)

// statedSurvey builds n stations carrying only angles and a stated error model.
func statedSurvey(n int, inc, az func(i int) float64, incStd, azStd float64) []survey.Station {
	out := make([]survey.Station, n)
	for i := range out {
		out[i] = survey.Station{
			Depth:       1000 + 30*float64(i),
			Inclination: survey.Float(inc(i)),
			Azimuth:     survey.Float(az(i)),
			ErrorModel:  &survey.ErrorModel{InclinationStd: survey.Float(incStd), AzimuthStd: survey.Float(azStd)},
		}
	}
	return out
}

func incAt(i int) float64 { return 10 + 2*float64(i) }
func azAt(i int) float64  { return 120 + float64(i) }

func TestChiSquareLimit(t *testing.T) {
	for dof, want := range map[int]float64{1: 8.8, 3: 13.9, 5: 18.0, 10: 27.9, 15: 34.4} {
		if got := ChiSquareLimit(dof); !near(got, want, 0.15) {
			t.Errorf("dof %d: %.3f, want %.1f", dof, got, want)
		}
	}
}

func TestIDT(t *testing.T) {
	ref := statedSurvey(5, incAt, azAt, 0.1, 0.3)
	tests := []struct {
		name  string
		shift float64
		valid bool
	}{
		{"within model", 0.05, true},
		{"beyond model", 0.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := statedSurvey(5, func(i int) float64 { return incAt(i) + tt.shift }, azAt, 0.1, 0.3)
			res, err := IDT{Settings: defaults()}.Compare(ref, cand, nil)
			if err != nil {
				t.Fatalf("Compare: %v", err)
			}
			if res.Failure != nil {
				t.Fatalf("failure: %+v", res.Failure)
			}
			if res.IsValid != tt.valid {
				t.Fatalf("valid = %v, χ² = %v", res.IsValid, *res.Measurements["chi_square_statistic"])
			}
			want := 5 * tt.shift * tt.shift / 0.02
			if got := *res.Measurements["chi_square_statistic"]; !near(got, want, 1e-9) {
				t.Errorf("χ² = %v, want %v", got, want)
			}
			if res.Details.Extra["degrees_of_freedom"] != 5 {
				t.Errorf("dof = %v", res.Details.Extra["degrees_of_freedom"])
			}
			if _, ok := res.Details.Extra["failure_reason"]; ok == tt.valid {
				t.Errorf("failure_reason present = %v", ok)
			}
		})
	}
}

func TestIDT_MatchesDepthsToTheMillimetre(t *testing.T) {
	ref := statedSurvey(4, incAt, azAt, 0.1, 0.3)
	cand := statedSurvey(4, incAt, azAt, 0.1, 0.3)
	for i := range cand {
		cand[i].Depth += 0.0004
	}
	cand[3].Depth += 1

	res, err := IDT{Settings: defaults()}.Compare(ref, cand, nil)
	if err != nil || res.Failure != nil {
		t.Fatalf("Compare: %v %+v", err, res.Failure)
	}
	if res.Details.Extra["degrees_of_freedom"] != 3 {
		t.Fatalf("dof = %v", res.Details.Extra["degrees_of_freedom"])
	}
}

func TestIDT_KeepsAtMostFifteenStations(t *testing.T) {
	ref := statedSurvey(40, incAt, azAt, 0.1, 0.3)
	res, err := IDT{Settings: defaults()}.Compare(ref, statedSurvey(40, incAt, azAt, 0.1, 0.3), nil)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	depths := res.Details.Extra["depths"].([]float64)
	if len(depths) != 15 || depths[0] != 1000 || depths[14] != 1000+30*39 {
		t.Fatalf("depths = %v", depths)
	}
	if !res.IsValid {
		t.Fatal("identical surveys must pass")
	}
}

func TestIDT_GeometryFailures(t *testing.T) {
	shifted := statedSurvey(5, incAt, azAt, 0.1, 0.3)
	for i := range shifted {
		shifted[i].Depth += 1
	}
	tests := []struct {
		name      string
		ref, cand []survey.Station
	}{
		{"too few stations", statedSurvey(2, incAt, azAt, 0.1, 0.3), statedSurvey(5, incAt, azAt, 0.1, 0.3)},
		{"no matching depths", statedSurvey(5, incAt, azAt, 0.1, 0.3), shifted},
		{"uncertainty below floor", statedSurvey(5, incAt, azAt, 0.05, 0.3), statedSurvey(5, incAt, azAt, 0.05, 0.3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := IDT{Settings: defaults()}.Compare(tt.ref, tt.cand, nil)
			if err != nil {
				t.Fatalf("Compare: %v", err)
			}
			if res.IsValid || res.Failure == nil || res.Failure.Kind != apperr.KindGeometry {
				t.Fatalf("expected geometry failure, got %+v", res.Failure)
			}
		})
	}
}

const loosePackageIPM = `#ShortName: LOOSE
ABX e s m/s2 0.05
ABY e s m/s2 0.05
ABZ e s m/s2 0.05
ASX e s -    0.0005
ASY e s -    0.0005
ASZ e s -    0.0005
`

func TestIDT_DerivesUncertaintyFromModel(t *testing.T) {
	stations := sectionStations(6, survey.SensorErrors{})
	res, err := IDT{Settings: defaults()}.Compare(stations, stations, mustModel(t, loosePackageIPM))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.Failure != nil {
		t.Fatalf("failure: %+v", res.Failure)
	}
	if !res.IsValid || res.Details.Extra["degrees_of_freedom"] != 6 {
		t.Fatalf("valid %v, extra %v", res.IsValid, res.Details.Extra)
	}

	// The tight fixture model puts every station under the 0.1° floor.
	res, err = IDT{Settings: defaults()}.Compare(stations, stations, mustModel(t, fullIPM))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.Failure == nil || res.Failure.Kind != apperr.KindGeometry {
		t.Fatalf("expected geometry failure, got %+v", res.Failure)
	}
}

func TestADT_WrapsAcrossNorth(t *testing.T) {
	near360 := func(i int) float64 { return 359.95 }
	pastNorth := func(i int) float64 { return 0.05 }
	ref := statedSurvey(3, incAt, near360, 0.1, 0.3)

	res, err := ADT{Settings: defaults()}.Compare(ref, statedSurvey(3, incAt, pastNorth, 0.1, 0.3), nil)
	if err != nil || res.Failure != nil {
		t.Fatalf("Compare: %v %+v", err, res.Failure)
	}
	if !res.IsValid {
		t.Fatalf("0.1° across north rejected: χ² = %v", *res.Measurements["chi_square_statistic"])
	}
	diffs := res.Details.Extra["azimuth_differences"].([]float64)
	if !near(diffs[0], 0.1, 1e-9) {
		t.Fatalf("difference = %v", diffs[0])
	}

	res, err = ADT{Settings: defaults()}.Compare(ref, statedSurvey(3, incAt, func(int) float64 { return 2 }, 0.1, 0.3), nil)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.IsValid {
		t.Fatal("2° azimuth offset accepted")
	}
}

// inOutRuns synthesises matched in-run and out-run inclinations carrying
// the given axial misalignments.
func inOutRuns(n int, mx, my float64, inTF func(i int) float64) (in, out []survey.Station) {
	reading := func(depth, inc, tf float64) survey.Station {
		r := survey.Rad(tf)
		return survey.Station{
			Depth:       depth,
			Inclination: survey.Float(inc + mx*math.Cos(r) + my*math.Sin(r)),
			Toolface:    survey.Float(survey.Wrap360(tf)),
		}
	}
	for i := 0; i < n; i++ {
		depth := 100 + 10*float64(i)
		inc := 5 + 0.5*float64(i)
		in = append(in, reading(depth, inc, inTF(i)))
		out = append(out, reading(depth, inc, inTF(i)+105))
	}
	return in, out
}

func spreadTF(i int) float64 { return 30 * float64(i) }

func TestIOMT_RecoversMisalignment(t *testing.T) {
	tests := []struct {
		name   string
		mx, my float64
		valid  bool
	}{
		{"within model", 0.1, -0.05, true},
		{"beyond model", 0.5, -0.05, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out := inOutRuns(12, tt.mx, tt.my, spreadTF)
			res, err := IOMT{Settings: defaults()}.Compare(in, out, mustModel(t, fullIPM))
			if err != nil {
				t.Fatalf("Compare: %v", err)
			}
			if res.Failure != nil {
				t.Fatalf("failure: %+v", res.Failure)
			}
			if mx := *res.Measurements["misalignment_mx"]; !near(mx, tt.mx, 1e-6) {
				t.Errorf("MX = %v", mx)
			}
			if my := *res.Measurements["misalignment_my"]; !near(my, tt.my, 1e-6) {
				t.Errorf("MY = %v", my)
			}
			if !near(res.Tolerances["misalignment_mx"], 0.3, 1e-9) {
				t.Errorf("MX tolerance = %v", res.Tolerances["misalignment_mx"])
			}
			if res.IsValid != tt.valid {
				t.Errorf("valid = %v", res.IsValid)
			}
			if !res.HasWarning("default_random_misalignment") {
				t.Errorf("warnings %+v", res.Details.Warnings)
			}
			if !near(res.Tolerances["max_residual"], 3*math.Sqrt2*defaultMR, 1e-12) {
				t.Errorf("residual tolerance = %v", res.Tolerances["max_residual"])
			}
		})
	}
}

func TestIOMT_UsesModelRandomMisalignment(t *testing.T) {
	in, out := inOutRuns(12, 0.1, 0.1, spreadTF)
	res, err := IOMT{Settings: defaults()}.Compare(in, out, mustModel(t, fullIPM+"MR   e r deg      0.1\n"))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.HasWarning("default_random_misalignment") {
		t.Fatal("MR present but default used")
	}
	if !near(res.Tolerances["max_residual"], 3*math.Sqrt2*0.1, 1e-9) {
		t.Fatalf("residual tolerance = %v", res.Tolerances["max_residual"])
	}
}

func TestIOMT_GeometryFailures(t *testing.T) {
	narrowTF := func(i int) float64 { return 5 * float64(i) }
	tests := []struct {
		name    string
		n       int
		tf      func(int) float64
		quality string
	}{
		{"too few stations", 8, spreadTF, "insufficient"},
		{"toolface in one quadrant", 12, narrowTF, "poor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out := inOutRuns(tt.n, 0.1, 0.1, tt.tf)
			res, err := IOMT{Settings: defaults()}.Compare(in, out, mustModel(t, fullIPM))
			if err != nil {
				t.Fatalf("Compare: %v", err)
			}
			if res.IsValid || res.Failure == nil || res.Failure.Quality != tt.quality {
				t.Fatalf("expected %s geometry failure, got %+v", tt.quality, res.Failure)
			}
		})
	}

	if _, err := (IOMT{Settings: defaults()}).Compare(nil, nil, nil); err == nil {
		t.Fatal("expected missing model error")
	}
}

func TestRegistry_Compare(t *testing.T) {
	r := NewRegistry(defaults())
	ref := statedSurvey(5, incAt, azAt, 0.1, 0.3)

	res, err := r.Compare("idt", ref, ref, nil)
	if err != nil || !res.IsValid {
		t.Fatalf("Compare: %v", err)
	}
	if !r.IsComparison("IOMT") || r.IsComparison("GET") {
		t.Fatal("IsComparison misclassifies")
	}

	var ue *apperr.UserError
	if _, err := r.Compare("GET", ref, ref, nil); !errors.As(err, &ue) {
		t.Fatalf("GET: expected user error, got %v", err)
	}
	var ve *apperr.ValidationError
	if _, err := r.Compare("ADT", ref, nil, nil); !errors.As(err, &ve) || ve.Field != "comparison" {
		t.Fatalf("missing comparison: got %v", err)
	}
	if _, err := r.Evaluate("IDT", ref, mustModel(t, fullIPM)); !errors.As(err, &ve) {
		t.Fatalf("Evaluate IDT: expected validation error, got %v", err)
	}
}
