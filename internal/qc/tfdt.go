package qc

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/catalog"
	"github.com/idlab-discover/surveyqc-cli/internal/config"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/propagation"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
	"github.com/idlab-discover/surveyqc-cli/internal/weighting"
)

const (
	// magneticCardinalBand applies to the magnetic and gyro tests.
	magneticCardinalBand = 15.0
	highMagneticLatitude = 60.0
)

// TFDT is the total field and dip test.
type TFDT struct {
	Settings config.Settings
}

func (TFDT) Info() Info {
	return Info{
		ID:          "TFDT",
		Name:        "Total Field and Dip Test",
		Kind:        KindSingle,
		Description: "magnetometer field strength and dip against the reference geomagnetic field",
		MinStations: 1,
	}
}

func (TFDT) Terms() []catalog.Term { return append(append([]catalog.Term{}, catalog.Field...), catalog.Dip...) }

func (t TFDT) Evaluate(stations []survey.Station, model *ipm.Model) (*Result, error) {
	return eachStation("TFDT", stations, func(st survey.Station) (*Result, error) {
		return t.EvaluateStation(st, model)
	})
}

// EvaluateStation runs TFDT on one station.
func (t TFDT) EvaluateStation(st survey.Station, model *ipm.Model) (*Result, error) {
	g, err := st.Gravity()
	if err != nil {
		return nil, err
	}
	b, err := st.Field()
	if err != nil {
		return nil, err
	}
	if st.ExpectedField == nil {
		return nil, apperr.Missing("expected_geomagnetic_field")
	}
	if st.ExpectedField.TotalField <= 0 {
		return nil, &apperr.ValidationError{Field: "expected_geomagnetic_field.total_field", Reason: "must be positive"}
	}
	s := t.Settings.Normalize()
	res := newResult("TFDT")

	bmag := r3.Norm(b)
	dip := survey.Dip(g, b)
	geo := weighting.At(st)
	toDeg := survey.Deg(1)

	fieldProp := propagation.Propagate(model, catalog.Sources(weighting.TotalField, geo, catalog.Field, 1), s.ConfidenceMultiplier)
	dipProp := propagation.Propagate(model, catalog.Sources(weighting.Dip, geo, catalog.Dip, toDeg), s.ConfidenceMultiplier)
	res.check("total_field", bmag, st.ExpectedField.TotalField, fieldProp)
	res.check("dip", dip, st.ExpectedField.Dip, dipProp)

	inc := survey.Inclination(g)
	res.measure("inclination", inc)
	res.Measurements["toolface"] = nil
	if tf, ok := survey.Toolface(g); ok {
		res.measure("toolface", tf)
	}
	res.Measurements["azimuth"] = nil
	az, azOK := survey.Azimuth(g, b)
	if azOK {
		res.measure("azimuth", az)
	}

	for i, k := range []string{"x", "y", "z"} {
		src := weighting.Source{Sensor: weighting.Magnetometer, Kind: weighting.Bias, Axis: weighting.Axis(i)}
		res.Details.WeightingFunctions["wb"+k+"_b"] = weighting.Coefficient(weighting.TotalField, geo, src)
		res.Details.WeightingFunctions["wb"+k+"_d"] = toDeg * weighting.Coefficient(weighting.Dip, geo, src)
	}

	switch {
	case inc < weakInclinationLow:
		res.warn("near_vertical", "inclination %.2f° below %.0f°, azimuth poorly defined", inc, weakInclinationLow)
	case inc > weakInclinationHigh:
		res.warn("near_horizontal", "inclination %.2f° above %.0f°", inc, weakInclinationHigh)
	}
	if azOK && nearCardinal(az, magneticCardinalBand) {
		res.warn("cardinal_azimuth", "azimuth %.2f° within %.0f° of a cardinal direction", az, magneticCardinalBand)
	}
	if st.Latitude != nil && math.Abs(*st.Latitude) > highMagneticLatitude {
		res.warn("high_mag_lat", "latitude %.2f° beyond ±%.0f°", *st.Latitude, highMagneticLatitude)
	}

	logf(st.Label(), "TFDT field %.1f nT dip %.3f°", bmag, dip)
	return res.finalize(), nil
}
