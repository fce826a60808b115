package qc

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/idlab-discover/surveyqc-cli/internal/catalog"
	"github.com/idlab-discover/surveyqc-cli/internal/config"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/propagation"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
	"github.com/idlab-discover/surveyqc-cli/internal/weighting"
)

// Geometry below which the accelerometer scale factors are not estimated.
const (
	msatFullInclinationSpread = 45.0
	fullModelQuadrants        = 3
)

// MSAT estimates accelerometer biases and scale factors from the gravity
// residuals of a station set.
type MSAT struct {
	Settings config.Settings
}

func (t MSAT) Info() Info {
	return Info{
		ID:          "MSAT",
		Name:        "Multi-Station Accelerometer Test",
		Kind:        KindMulti,
		Description: "accelerometer bias and scale-factor estimation from gravity residuals",
		MinStations: t.Settings.Normalize().MinStations,
	}
}

func (MSAT) Terms() []catalog.Term { return catalog.Gravity }

var (
	msatFull    = []catalog.Term{catalog.ABX, catalog.ABY, catalog.ABZ, catalog.ASX, catalog.ASY}
	msatReduced = []catalog.Term{catalog.ABX, catalog.ABY, catalog.ABZ}
)

func (t MSAT) Evaluate(stations []survey.Station, model *ipm.Model) (*Result, error) {
	s := t.Settings.Normalize()
	for i, st := range stations {
		if _, err := st.Gravity(); err != nil {
			return nil, fmt.Errorf("station %d (%s): %w", i, st.Label(), err)
		}
	}
	res, _, ok, err := newMulti("MSAT", stations, s)
	if err != nil || !ok {
		return finalizeOr(res, err)
	}
	geom := res.MultiStation.Geometry

	params := msatFull
	if geom.InclinationSpread < msatFullInclinationSpread || geom.QuadrantsCovered < fullModelQuadrants {
		params = msatReduced
		res.MultiStation.Model = ModelReduced
		res.warn("reduced_model", "inclination spread %.1f° and %d quadrants support biases only", geom.InclinationSpread, geom.QuadrantsCovered)
	}

	rows := make([]row, len(stations))
	for i, st := range stations {
		geo := weighting.At(st)
		ref, _ := st.ReferenceGravity()
		prop := propagation.Propagate(model, catalog.Sources(weighting.GravityMagnitude, geo, catalog.Gravity, 1), s.ConfidenceMultiplier)
		rows[i] = row{
			station: i,
			kind:    "gravity",
			obs:     r3.Norm(geo.G) - ref,
			coeffs:  rowFor(params, weighting.GravityMagnitude, geo, 1),
			tol:     prop.Tolerance,
		}
	}
	fit(res, s, model, stations, params, rows)
	logf("", "MSAT %s model over %d stations (%s geometry)", res.MultiStation.Model, len(stations), geom.Quality)
	return res.finalize(), nil
}

func finalizeOr(res *Result, err error) (*Result, error) {
	if err != nil {
		return nil, err
	}
	return res.finalize(), nil
}
