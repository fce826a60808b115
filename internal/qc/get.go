package qc

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/idlab-discover/surveyqc-cli/internal/catalog"
	"github.com/idlab-discover/surveyqc-cli/internal/config"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/propagation"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
	"github.com/idlab-discover/surveyqc-cli/internal/weighting"
)

// Toolface is only reported by GET inside this inclination window.
const (
	minToolfaceInclination = 10.0
	maxToolfaceInclination = 170.0
)

// Inclination window considered well conditioned for gravity checks.
const (
	weakInclinationLow  = 10.0
	weakInclinationHigh = 80.0
)

// GET is the gravity error test: measured accelerometer magnitude against the
// reference gravity.
type GET struct {
	Settings config.Settings
}

func (GET) Info() Info {
	return Info{
		ID:          "GET",
		Name:        "Gravity Error Test",
		Kind:        KindSingle,
		Description: "accelerometer magnitude against reference gravity",
		MinStations: 1,
	}
}

func (GET) Terms() []catalog.Term { return catalog.Gravity }

func (t GET) Evaluate(stations []survey.Station, model *ipm.Model) (*Result, error) {
	return eachStation("GET", stations, func(st survey.Station) (*Result, error) {
		return t.EvaluateStation(st, model)
	})
}

// EvaluateStation runs GET on one station.
func (t GET) EvaluateStation(st survey.Station, model *ipm.Model) (*Result, error) {
	g, err := st.Gravity()
	if err != nil {
		return nil, err
	}
	s := t.Settings.Normalize()
	res := newResult("GET")

	gmag := r3.Norm(g)
	inc := survey.Inclination(g)
	ref, src := st.ReferenceGravity()

	geo := weighting.At(st)
	prop := propagation.Propagate(model, catalog.Sources(weighting.GravityMagnitude, geo, catalog.Gravity, 1), s.ConfidenceMultiplier)
	res.check("gravity", gmag, ref, prop)
	res.extra("reference_gravity_source", src)
	if src == survey.SourceNominal {
		res.warn("nominal_reference", "no expected gravity or latitude given, using 1 g")
	}

	res.measure("inclination", inc)
	var tf *float64
	if inc >= minToolfaceInclination && inc <= maxToolfaceInclination {
		if v, ok := survey.Toolface(g); ok {
			tf = survey.Float(v)
		}
	}
	res.Measurements["toolface"] = tf
	if tf == nil {
		res.warn("undefined_toolface", "toolface undefined at inclination %.2f°", inc)
	}

	res.Details.WeightingFunctions["wx"] = g.X / gmag
	res.Details.WeightingFunctions["wy"] = g.Y / gmag
	res.Details.WeightingFunctions["wz"] = g.Z / gmag

	weak := inc < weakInclinationLow || inc > weakInclinationHigh
	if weak {
		res.warn("weak_geometry", "inclination %.2f° outside [%.0f°, %.0f°]", inc, weakInclinationLow, weakInclinationHigh)
	}
	badTF := tf != nil && !nearDiagonal(*tf, s.ToolfaceBand)
	if badTF {
		res.warn("suboptimal_toolface", "toolface %.2f° more than %.1f° from 45°/135°/225°/315°", *tf, s.ToolfaceBand)
	}
	if weak && badTF {
		res.warn("suboptimal_geometry", "inclination and toolface both weaken the gravity check")
	}
	if st.Azimuth != nil && nearCardinal(*st.Azimuth, s.CardinalBand) {
		res.warn("cardinal_direction", "azimuth %.2f° within %.1f° of a cardinal direction", *st.Azimuth, s.CardinalBand)
	}
	if st.Inclination != nil {
		if d := math.Abs(*st.Inclination - inc); d > s.InclinationDiscrepancy {
			res.warn("inclination_discrepancy", "provided inclination differs from sensor-derived by %.3f°", d)
		}
	}
	if st.Toolface != nil && tf != nil {
		if d := math.Abs(survey.AngleDiff(*st.Toolface, *tf)); d > s.ToolfaceDiscrepancy {
			res.warn("toolface_discrepancy", "provided toolface differs from sensor-derived by %.3f°", d)
		}
	}

	logf(st.Label(), "GET gravity %.6f ref %.6f tol %.3g", gmag, ref, prop.Tolerance)
	return res.finalize(), nil
}

// nearDiagonal reports whether angle lies within band of 45°+k·90°.
func nearDiagonal(angle, band float64) bool {
	off := math.Mod(survey.Wrap360(angle), 90)
	return math.Abs(off-45) <= band
}

// nearCardinal reports whether angle lies within band of k·90°.
func nearCardinal(angle, band float64) bool {
	off := math.Mod(survey.Wrap360(angle), 90)
	return off <= band || 90-off <= band
}
