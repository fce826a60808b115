package qc

import (
	"errors"
	"testing"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
)

func TestGET_ReferenceExample(t *testing.T) {
	m := mustModel(t, "ABZ e s m/s2 0.0004\nASZ e s - 0.0005\n")
	st := survey.Station{
		Accelerometer:   &survey.Vector3{X: 0.707, Y: 0, Z: 0.707},
		ExpectedGravity: survey.Float(1.0),
	}
	res, err := GET{Settings: defaults()}.EvaluateStation(st, m)
	if err != nil {
		t.Fatalf("EvaluateStation: %v", err)
	}
	if g := *res.Measurements["gravity"]; !near(g, 0.99985, 1e-5) {
		t.Errorf("gravity = %v", g)
	}
	if e := res.Errors["gravity"]; !near(e, -0.00015, 1e-5) {
		t.Errorf("error = %v", e)
	}
	if wz := res.Details.WeightingFunctions["wz"].(float64); !near(wz, 0.7071, 1e-4) {
		t.Errorf("wz = %v", wz)
	}
	if !res.IsValid {
		t.Fatalf("expected valid result, tolerance %v", res.Tolerances["gravity"])
	}
	if len(res.Details.DebugIPMTerms["gravity"]) != 6 {
		t.Errorf("every gravity source should be traced, got %d", len(res.Details.DebugIPMTerms["gravity"]))
	}
	if len(res.Details.MissingTerms) == 0 {
		t.Errorf("ABX/ABY/ASX/ASY should be reported missing")
	}
}

func TestGET_VerticalTool(t *testing.T) {
	st := survey.Station{Accelerometer: &survey.Vector3{Z: 1}, ExpectedGravity: survey.Float(1)}
	res, err := GET{Settings: defaults()}.EvaluateStation(st, mustModel(t, fullIPM))
	if err != nil {
		t.Fatalf("EvaluateStation: %v", err)
	}
	if *res.Measurements["gravity"] != 1 || *res.Measurements["inclination"] != 0 {
		t.Fatalf("measurements = gravity %v inc %v", *res.Measurements["gravity"], *res.Measurements["inclination"])
	}
	if tf, ok := res.Measurements["toolface"]; !ok || tf != nil {
		t.Fatalf("toolface must be present and null")
	}
	if !res.HasWarning("undefined_toolface") || !res.HasWarning("weak_geometry") {
		t.Fatalf("warnings = %+v", res.Details.Warnings)
	}
}

func TestGET_Warnings(t *testing.T) {
	tests := []struct {
		name   string
		st     survey.Station
		want   []string
		absent []string
	}{
		{
			name:   "diagonal toolface",
			st:     survey.Synthesize(survey.Synthetic{Inclination: 45, Azimuth: 33, Toolface: 135}),
			absent: []string{"suboptimal_toolface", "weak_geometry", "cardinal_direction"},
		},
		{
			name: "cardinal toolface and azimuth",
			st:   survey.Synthesize(survey.Synthetic{Inclination: 45, Azimuth: 92, Toolface: 90}),
			want: []string{"suboptimal_toolface", "cardinal_direction"},
		},
		{
			name: "weak and suboptimal",
			st:   survey.Synthesize(survey.Synthetic{Inclination: 85, Azimuth: 33, Toolface: 10}),
			want: []string{"weak_geometry", "suboptimal_toolface", "suboptimal_geometry"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := GET{Settings: defaults()}.EvaluateStation(tt.st, mustModel(t, fullIPM))
			if err != nil {
				t.Fatalf("EvaluateStation: %v", err)
			}
			for _, w := range tt.want {
				if !res.HasWarning(w) {
					t.Errorf("missing warning %s in %+v", w, res.Details.Warnings)
				}
			}
			for _, w := range tt.absent {
				if res.HasWarning(w) {
					t.Errorf("unexpected warning %s", w)
				}
			}
		})
	}
}

func TestGET_Discrepancies(t *testing.T) {
	st := survey.Synthesize(survey.Synthetic{Inclination: 45, Azimuth: 33, Toolface: 135})
	st.Inclination = survey.Float(47)
	st.Toolface = survey.Float(140)
	res, err := GET{Settings: defaults()}.EvaluateStation(st, mustModel(t, fullIPM))
	if err != nil {
		t.Fatalf("EvaluateStation: %v", err)
	}
	if !res.HasWarning("inclination_discrepancy") || !res.HasWarning("toolface_discrepancy") {
		t.Fatalf("warnings = %+v", res.Details.Warnings)
	}
}

func TestGET_MissingAccelerometer(t *testing.T) {
	_, err := GET{Settings: defaults()}.EvaluateStation(survey.Station{}, mustModel(t, fullIPM))
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "accelerometer" {
		t.Fatalf("expected accelerometer validation error, got %v", err)
	}
}

func TestGET_InjectedBiasFails(t *testing.T) {
	st := survey.Synthesize(survey.Synthetic{
		Inclination: 60, Azimuth: 10, Toolface: 45,
		Errors: survey.SensorErrors{AccelBias: survey.Vector3{Z: 0.01}},
	})
	res, err := GET{Settings: defaults()}.EvaluateStation(st, mustModel(t, fullIPM))
	if err != nil {
		t.Fatalf("EvaluateStation: %v", err)
	}
	if res.IsValid {
		t.Fatalf("10 mg bias should fail, error %v tolerance %v", res.Errors["gravity"], res.Tolerances["gravity"])
	}
}

func TestTFDT_ExactFieldPasses(t *testing.T) {
	for _, o := range [][3]float64{{30, 40, 50}, {75, 200, 300}, {15, 310, 170}} {
		st := survey.Synthesize(survey.Synthetic{Inclination: o[0], Azimuth: o[1], Toolface: o[2], Field: testField})
		res, err := TFDT{Settings: defaults()}.EvaluateStation(st, mustModel(t, fullIPM))
		if err != nil {
			t.Fatalf("EvaluateStation: %v", err)
		}
		if !near(res.Errors["total_field"], 0, 1e-6) || !near(res.Errors["dip"], 0, 1e-9) {
			t.Errorf("%v: errors = %v", o, res.Errors)
		}
		if !res.IsValid {
			t.Errorf("%v: expected valid", o)
		}
		for _, k := range []string{"wbx_b", "wby_b", "wbz_b", "wbx_d", "wby_d", "wbz_d"} {
			if _, ok := res.Details.WeightingFunctions[k]; !ok {
				t.Errorf("missing weighting function %s", k)
			}
		}
	}
}

func TestTFDT_FieldErrorDetected(t *testing.T) {
	st := survey.Synthesize(survey.Synthetic{
		Inclination: 45, Azimuth: 40, Toolface: 50, Field: testField,
		Errors: survey.SensorErrors{MagBias: survey.Vector3{Z: 2000}},
	})
	res, err := TFDT{Settings: defaults()}.EvaluateStation(st, mustModel(t, fullIPM))
	if err != nil {
		t.Fatalf("EvaluateStation: %v", err)
	}
	if res.IsValid {
		t.Fatalf("2000 nT axial bias should fail: %v vs %v", res.Errors, res.Tolerances)
	}
}

func TestTFDT_Warnings(t *testing.T) {
	st := survey.Synthesize(survey.Synthetic{Inclination: 5, Azimuth: 2, Toolface: 50, Field: testField})
	st.Latitude = survey.Float(70)
	res, err := TFDT{Settings: defaults()}.EvaluateStation(st, mustModel(t, fullIPM))
	if err != nil {
		t.Fatalf("EvaluateStation: %v", err)
	}
	for _, w := range []string{"near_vertical", "cardinal_azimuth", "high_mag_lat"} {
		if !res.HasWarning(w) {
			t.Errorf("missing %s", w)
		}
	}
}

func TestTFDT_RequiresReferenceField(t *testing.T) {
	st := survey.Synthesize(survey.Synthetic{Inclination: 45, Azimuth: 40, Toolface: 50, Field: testField})
	st.ExpectedField = nil
	_, err := TFDT{Settings: defaults()}.EvaluateStation(st, mustModel(t, fullIPM))
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "expected_geomagnetic_field" {
		t.Fatalf("got %v", err)
	}
}

func TestHERT(t *testing.T) {
	lat := 52.0
	m := mustModel(t, fullIPM)
	tests := []struct {
		name  string
		errs  survey.SensorErrors
		valid bool
	}{
		{"exact", survey.SensorErrors{}, true},
		{"large bias", survey.SensorErrors{GyroBias: survey.Gyro{X: 3}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := survey.Synthesize(survey.Synthetic{Inclination: 40, Azimuth: 70, Toolface: 30, Latitude: &lat, Errors: tt.errs})
			res, err := HERT{Settings: defaults()}.EvaluateStation(st, m)
			if err != nil {
				t.Fatalf("EvaluateStation: %v", err)
			}
			if res.IsValid != tt.valid {
				t.Fatalf("IsValid = %v, error %v tolerance %v", res.IsValid, res.Errors, res.Tolerances)
			}
			w, ok := res.Details.WeightingFunctions["horizontal_rate"].([]float64)
			if !ok || len(w) != 2 {
				t.Fatalf("weighting functions = %v", res.Details.WeightingFunctions)
			}
			if tt.valid && !near(res.Errors["horizontal_rate"], 0, 1e-9) {
				t.Fatalf("error = %v", res.Errors["horizontal_rate"])
			}
		})
	}
}

func TestHERT_Unobservable(t *testing.T) {
	lat := 52.0
	st := survey.Synthesize(survey.Synthetic{Inclination: 90, Azimuth: 0, Toolface: 30, Latitude: &lat})
	_, err := HERT{Settings: defaults()}.EvaluateStation(st, mustModel(t, fullIPM))
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestHERT_RequiresLatitude(t *testing.T) {
	st := survey.Station{Gyro: &survey.Gyro{X: 1}, Inclination: survey.Float(30), Azimuth: survey.Float(20)}
	_, err := HERT{Settings: defaults()}.EvaluateStation(st, mustModel(t, fullIPM))
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "latitude" {
		t.Fatalf("got %v", err)
	}
}

func TestDDDT_ReferenceExample(t *testing.T) {
	m := mustModel(t, "DREF e r m 0.35\nDSF e s ppm 560\n")
	st := survey.Station{PipeDepth: survey.Float(2000.5), WirelineDepth: survey.Float(2000.2), TVD: survey.Float(1414.2)}
	res, err := DDDT{Settings: defaults()}.EvaluateStation(st, m)
	if err != nil {
		t.Fatalf("EvaluateStation: %v", err)
	}
	if !near(res.Errors["depth_difference"], 0.3, 1e-9) {
		t.Fatalf("depth_difference = %v", res.Errors["depth_difference"])
	}
	tol := res.Tolerances["depth_difference"]
	if res.IsValid != (0.3 <= tol) {
		t.Fatalf("IsValid %v inconsistent with tolerance %v", res.IsValid, tol)
	}
	if !near(tol, 2.449, 0.01) {
		t.Errorf("tolerance = %v", tol)
	}
}

func TestDDDT_MissingWireline(t *testing.T) {
	_, err := DDDT{Settings: defaults()}.EvaluateStation(survey.Station{PipeDepth: survey.Float(10)}, mustModel(t, fullIPM))
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "wireline_depth" {
		t.Fatalf("got %v", err)
	}
}

func rotationSet(incs map[int]float64, mx, my float64) []survey.Station {
	var out []survey.Station
	for i := 0; i < 16; i++ {
		tf := 22.5 * float64(i)
		inc := 30 + mx*cosd(tf) + my*sind(tf) + incs[i]
		out = append(out, survey.Station{
			ID:          "R" + string(rune('a'+i)),
			Depth:       1200,
			Inclination: survey.Float(inc),
			Toolface:    survey.Float(tf),
		})
	}
	return out
}

func TestRSMT_RecoversMisalignment(t *testing.T) {
	stations := rotationSet(nil, 0.15, -0.1)
	res, err := RSMT{Settings: defaults()}.Evaluate(stations, mustModel(t, fullIPM))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !near(*res.Measurements["mx"], 0.15, 1e-9) || !near(*res.Measurements["my"], -0.1, 1e-9) {
		t.Fatalf("mx %v my %v", *res.Measurements["mx"], *res.Measurements["my"])
	}
	if !near(*res.Measurements["fitted_inclination"], 30, 1e-9) {
		t.Errorf("fitted inclination %v", *res.Measurements["fitted_inclination"])
	}
	q := res.Details.Extra["quadrant_distribution"].([4]int)
	if q[0]+q[1]+q[2]+q[3] != len(stations) {
		t.Errorf("quadrants %v do not sum to %d", q, len(stations))
	}
	if !res.IsValid {
		t.Errorf("0.15° misalignment within 2×0.1° tolerance should pass: %v", res.Tolerances)
	}
}

func TestRSMT_RejectsOutlier(t *testing.T) {
	stations := rotationSet(map[int]float64{3: 0.4}, 0.05, 0.05)
	res, err := RSMT{Settings: defaults()}.Evaluate(stations, mustModel(t, fullIPM))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	rej := res.Details.Extra["rejected_stations"].([]string)
	if len(rej) != 1 || rej[0] != "Rd" {
		t.Fatalf("rejected = %v", rej)
	}
	if !res.HasWarning("outliers_rejected") {
		t.Errorf("missing outliers_rejected")
	}
	if !near(*res.Measurements["mx"], 0.05, 1e-9) {
		t.Errorf("refit mx = %v", *res.Measurements["mx"])
	}
}

func TestRSMT_ReducedReliabilityAndTooFew(t *testing.T) {
	var few []survey.Station
	for _, tf := range []float64{10, 20, 100, 110} {
		few = append(few, survey.Station{Inclination: survey.Float(30 + 0.1*cosd(tf)), Toolface: survey.Float(tf)})
	}
	res, err := RSMT{Settings: defaults()}.Evaluate(few, mustModel(t, fullIPM))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !res.HasWarning("reduced_reliability") {
		t.Errorf("two quadrants must carry reduced_reliability")
	}

	res, err = RSMT{Settings: defaults()}.Evaluate(few[:3], mustModel(t, fullIPM))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Failure == nil || res.Failure.Kind != apperr.KindGeometry || res.IsValid {
		t.Fatalf("expected geometry failure, got %+v", res.Failure)
	}
}

func TestSingleStationAggregate(t *testing.T) {
	stations := []survey.Station{
		survey.Synthesize(survey.Synthetic{Inclination: 45, Azimuth: 33, Toolface: 135}),
		survey.Synthesize(survey.Synthetic{Inclination: 45, Azimuth: 33, Toolface: 135, Errors: survey.SensorErrors{AccelBias: survey.Vector3{Z: 0.02}}}),
	}
	res, err := GET{Settings: defaults()}.Evaluate(stations, mustModel(t, fullIPM))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(res.Stations) != 2 || res.IsValid || !res.Stations[0].IsValid {
		t.Fatalf("aggregate = valid %v, %d stations", res.IsValid, len(res.Stations))
	}
}
