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

const (
	msgtMinInclinationSpread = 30.0
	eastWestShare            = 0.5
)

// MSGT estimates gyro biases, mass unbalance and quadrature from the
// horizontal earth-rate residuals of a station set.
type MSGT struct {
	Settings config.Settings
}

func (t MSGT) Info() Info {
	return Info{
		ID:          "MSGT",
		Name:        "Multi-Station Gyro Test",
		Kind:        KindMulti,
		Description: "gyro bias, mass-unbalance and quadrature estimation from horizontal earth-rate residuals",
		MinStations: t.Settings.Normalize().MinStations,
	}
}

func (MSGT) Terms() []catalog.Term { return catalog.HorizontalRate }

var msgtParams = []catalog.Term{catalog.GBX, catalog.GBY, catalog.M, catalog.Q}

func (t MSGT) Evaluate(stations []survey.Station, model *ipm.Model) (*Result, error) {
	s := t.Settings.Normalize()
	res, orients, ok, err := newMulti("MSGT", stations, s)
	if err != nil || !ok {
		return finalizeOr(res, err)
	}
	geom := res.MultiStation.Geometry
	if geom.InclinationSpread < msgtMinInclinationSpread || geom.QuadrantsCovered < fullModelQuadrants {
		res.fail(&apperr.GeometryError{
			Quality: geom.Quality,
			Reason:  fmt.Sprintf("inclination spread %.1f° (min %.0f°) over %d quadrants (min %d)", geom.InclinationSpread, msgtMinInclinationSpread, geom.QuadrantsCovered, fullModelQuadrants),
		})
		return res.finalize(), nil
	}

	eastWest := 0
	for _, o := range orients {
		if o.Azimuth != nil && eastWestAzimuth(*o.Azimuth) {
			eastWest++
		}
	}
	if float64(eastWest) > eastWestShare*float64(len(orients)) {
		res.warn("east_west_dominant", "%d of %d stations point east or west", eastWest, len(orients))
	}

	var rows []row
	var skipped []string
	for i, st := range stations {
		geo, _, lat, _, err := gyroGeometry(st)
		if err != nil {
			return nil, fmt.Errorf("station %d (%s): %w", i, st.Label(), err)
		}
		if geo.Observability() < minObservability {
			skipped = append(skipped, st.Label())
			continue
		}
		expected := survey.HorizontalEarthRate(lat)
		if st.ExpectedHorizontalRate != nil {
			expected = *st.ExpectedHorizontalRate
		}
		prop := propagation.Propagate(model, catalog.Sources(weighting.HorizontalRate, geo, catalog.HorizontalRate, 1), s.ConfidenceMultiplier)
		rows = append(rows, row{
			station: i,
			kind:    "horizontal_rate",
			obs:     geo.ProjectedHorizontalRate(survey.EarthRateNED(lat).Z) - expected,
			coeffs:  rowFor(msgtParams, weighting.HorizontalRate, geo, 1),
			tol:     prop.Tolerance,
		})
	}
	if len(skipped) > 0 {
		res.warn("unobservable_stations", "%d station(s) skipped: horizontal rate unobservable", len(skipped))
		res.extra("skipped_stations", skipped)
	}
	if len(rows) < s.MinStations {
		res.fail(&apperr.GeometryError{Quality: geom.Quality, Reason: fmt.Sprintf("%d observable stations, at least %d required", len(rows), s.MinStations)})
		return res.finalize(), nil
	}

	fit(res, s, model, stations, msgtParams, rows)
	logf("", "MSGT fitted %d stations", len(rows))
	return res.finalize(), nil
}

func eastWestAzimuth(az float64) bool {
	az = survey.Wrap360(az)
	return (az >= 60 && az <= 120) || (az >= 240 && az <= 300)
}
