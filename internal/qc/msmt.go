package qc

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/catalog"
	"github.com/idlab-discover/surveyqc-cli/internal/config"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/propagation"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
	"github.com/idlab-discover/surveyqc-cli/internal/weighting"
)

// MSMT estimates magnetometer biases and scale factors from the total field
// and dip residuals of a station set.
type MSMT struct {
	Settings config.Settings
}

func (t MSMT) Info() Info {
	return Info{
		ID:          "MSMT",
		Name:        "Multi-Station Magnetometer Test",
		Kind:        KindMulti,
		Description: "magnetometer bias and scale-factor estimation from total field and dip residuals",
		MinStations: t.Settings.Normalize().MinStations,
	}
}

func (MSMT) Terms() []catalog.Term { return append(append([]catalog.Term{}, catalog.Field...), catalog.Dip...) }

var (
	msmtFull    = []catalog.Term{catalog.MBX, catalog.MBY, catalog.MBZ, catalog.MSX, catalog.MSY, catalog.MSZ}
	msmtReduced = []catalog.Term{catalog.MBX, catalog.MBY, catalog.MBZ}
)

func (t MSMT) Evaluate(stations []survey.Station, model *ipm.Model) (*Result, error) {
	s := t.Settings.Normalize()
	for i, st := range stations {
		if err := requireMagnetic(st); err != nil {
			return nil, fmt.Errorf("station %d (%s): %w", i, st.Label(), err)
		}
	}
	res, _, ok, err := newMulti("MSMT", stations, s)
	if err != nil || !ok {
		return finalizeOr(res, err)
	}
	geom := res.MultiStation.Geometry

	params := msmtFull
	if geom.QuadrantsCovered < fullModelQuadrants {
		params = msmtReduced
		res.MultiStation.Model = ModelReduced
		res.warn("reduced_model", "%d toolface quadrants support biases only", geom.QuadrantsCovered)
	}

	toDeg := survey.Deg(1)
	rows := make([]row, 0, 2*len(stations))
	for i, st := range stations {
		geo := weighting.At(st)
		ref := st.ExpectedField
		fieldProp := propagation.Propagate(model, catalog.Sources(weighting.TotalField, geo, catalog.Field, 1), s.ConfidenceMultiplier)
		dipProp := propagation.Propagate(model, catalog.Sources(weighting.Dip, geo, catalog.Dip, toDeg), s.ConfidenceMultiplier)
		rows = append(rows,
			row{
				station: i,
				kind:    "total_field",
				obs:     r3.Norm(geo.B) - ref.TotalField,
				coeffs:  rowFor(params, weighting.TotalField, geo, 1),
				tol:     fieldProp.Tolerance,
			},
			row{
				station: i,
				kind:    "dip",
				obs:     survey.Dip(geo.G, geo.B) - ref.Dip,
				coeffs:  rowFor(params, weighting.Dip, geo, toDeg),
				tol:     dipProp.Tolerance,
			},
		)
	}
	fit(res, s, model, stations, params, rows)
	logf("", "MSMT %s model over %d stations", res.MultiStation.Model, len(stations))
	return res.finalize(), nil
}

func requireMagnetic(st survey.Station) error {
	if _, err := st.Gravity(); err != nil {
		return err
	}
	if _, err := st.Field(); err != nil {
		return err
	}
	if st.ExpectedField == nil {
		return apperr.Missing("expected_geomagnetic_field")
	}
	return nil
}
