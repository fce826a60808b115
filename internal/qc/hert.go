package qc

import (
	"fmt"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/catalog"
	"github.com/idlab-discover/surveyqc-cli/internal/config"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/propagation"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
	"github.com/idlab-discover/surveyqc-cli/internal/weighting"
)

// Observability limits for the horizontal earth-rate projection.
const (
	minObservability  = 0.05
	weakObservability = 0.5
)

// HERT is the horizontal earth-rate test for gyro tools.
type HERT struct {
	Settings config.Settings
}

func (HERT) Info() Info {
	return Info{
		ID:          "HERT",
		Name:        "Horizontal Earth Rate Test",
		Kind:        KindSingle,
		Description: "gyro-measured horizontal earth rate against the rate at the station latitude",
		MinStations: 1,
	}
}

func (HERT) Terms() []catalog.Term { return catalog.HorizontalRate }

func (t HERT) Evaluate(stations []survey.Station, model *ipm.Model) (*Result, error) {
	return eachStation("HERT", stations, func(st survey.Station) (*Result, error) {
		return t.EvaluateStation(st, model)
	})
}

// gyroGeometry resolves the orientation a gyro reading is projected with.
// tfDefined is false when the toolface had to be assumed.
func gyroGeometry(st survey.Station) (geo weighting.Geometry, o survey.Orientation, lat float64, tfDefined bool, err error) {
	if st.Gyro == nil {
		return geo, o, 0, false, apperr.Missing("gyro")
	}
	lat, err = survey.RequireFloat("latitude", st.Latitude)
	if err != nil {
		return geo, o, 0, false, err
	}
	if err = survey.CheckLatitude(lat); err != nil {
		return geo, o, 0, false, err
	}
	o, err = st.Orient()
	if err != nil {
		return geo, o, 0, false, err
	}
	az, ok := st.TrueAzimuth()
	if !ok {
		return geo, o, 0, false, apperr.Missing("azimuth")
	}
	o.Azimuth = survey.Float(az)
	tf := 0.0
	if o.Toolface != nil {
		tf, tfDefined = *o.Toolface, true
	}
	geo = weighting.At(st).WithAxes(o.Inclination, az, tf)
	return geo, o, lat, tfDefined, nil
}

// EvaluateStation runs HERT on one station.
func (t HERT) EvaluateStation(st survey.Station, model *ipm.Model) (*Result, error) {
	geo, o, lat, tfDefined, err := gyroGeometry(st)
	if err != nil {
		return nil, err
	}
	d := geo.Observability()
	if d < minObservability {
		return nil, &apperr.ValidationError{Field: "gyro", Reason: fmt.Sprintf("horizontal earth rate unobservable at this orientation (d=%.3f)", d)}
	}
	s := t.Settings.Normalize()
	res := newResult("HERT")

	measured := geo.ProjectedHorizontalRate(survey.EarthRateNED(lat).Z)
	expected := survey.HorizontalEarthRate(lat)
	if st.ExpectedHorizontalRate != nil {
		expected = *st.ExpectedHorizontalRate
	}
	prop := propagation.Propagate(model, catalog.Sources(weighting.HorizontalRate, geo, catalog.HorizontalRate, 1), s.ConfidenceMultiplier)
	res.check("horizontal_rate", measured, expected, prop)
	res.measure("inclination", o.Inclination)
	res.measure("azimuth", *o.Azimuth)
	res.Details.WeightingFunctions["horizontal_rate"] = []float64{geo.XN / d, geo.YN / d}
	res.extra("observability", d)

	if !tfDefined {
		res.warn("undefined_toolface", "toolface unavailable, projection assumes 0°")
	}
	if d < weakObservability {
		res.warn("weak_geometry", "gyro axes see %.0f%% of the horizontal rate", 100*d)
	}
	if nearCardinal(*o.Azimuth, magneticCardinalBand) {
		res.warn("cardinal_azimuth", "azimuth %.2f° within %.0f° of a cardinal direction", *o.Azimuth, magneticCardinalBand)
	}

	logf(st.Label(), "HERT rate %.4f deg/hr expected %.4f", measured, expected)
	return res.finalize(), nil
}
