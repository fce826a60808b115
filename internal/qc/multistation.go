package qc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/catalog"
	"github.com/idlab-discover/surveyqc-cli/internal/config"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/regression"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
	"github.com/idlab-discover/surveyqc-cli/internal/weighting"
)

// Multi-station model variants.
const (
	ModelFull    = "full"
	ModelReduced = "reduced"
)

// Parameter is one estimated error term.
type Parameter struct {
	Name            string  `json:"name" yaml:"name"`
	Unit            string  `json:"unit" yaml:"unit"`
	Value           float64 `json:"value" yaml:"value"`
	StdDev          float64 `json:"std_dev" yaml:"std_dev"`
	Tolerance       float64 `json:"tolerance" yaml:"tolerance"`
	WithinTolerance bool    `json:"within_tolerance" yaml:"within_tolerance"`
}

// Residual is the post-fit residual of one observation row.
type Residual struct {
	Index           int     `json:"index" yaml:"index"`
	Station         string  `json:"station" yaml:"station"`
	Depth           float64 `json:"depth" yaml:"depth"`
	Kind            string  `json:"kind" yaml:"kind"`
	Residual        float64 `json:"residual" yaml:"residual"`
	Tolerance       float64 `json:"tolerance" yaml:"tolerance"`
	WithinTolerance bool    `json:"within_tolerance" yaml:"within_tolerance"`
}

// MultiStation is the aggregate output of MSAT, MSGT and MSMT.
type MultiStation struct {
	Model                     string          `json:"model" yaml:"model"`
	Parameters                []Parameter     `json:"parameters" yaml:"parameters"`
	ParameterNames            []string        `json:"parameter_names" yaml:"parameter_names"`
	CorrelationMatrix         [][]float64     `json:"correlation_matrix" yaml:"correlation_matrix"`
	MaxNondiagonalCorrelation float64         `json:"max_nondiagonal_correlation" yaml:"max_nondiagonal_correlation"`
	MaxCorrelationPair        [2]string       `json:"max_correlation_pair" yaml:"max_correlation_pair"`
	VarianceFactor            float64         `json:"variance_factor" yaml:"variance_factor"`
	Residuals                 []Residual      `json:"residuals" yaml:"residuals"`
	Geometry                  survey.Geometry `json:"geometry" yaml:"geometry"`
}

// row is one observation of a multi-station fit.
type row struct {
	station int
	kind    string
	obs     float64
	coeffs  []float64
	tol     float64
}

// rowFor evaluates every parameter's coefficient for quantity q at geo,
// scaled by factor.
func rowFor(params []catalog.Term, q weighting.Quantity, geo weighting.Geometry, factor float64) []float64 {
	c := make([]float64, len(params))
	for j, p := range params {
		c[j] = factor * p.Coefficient(q, geo)
	}
	return c
}

// fit solves the weighted problem described by rows and fills res. Solver
// failures are captured in res.
func fit(res *Result, s config.Settings, model *ipm.Model, stations []survey.Station, params []catalog.Term, rows []row) {
	names := termNames(params)
	design := mat.NewDense(len(rows), len(params), nil)
	obs := make([]float64, len(rows))
	w := make([]float64, len(rows))
	for i, r := range rows {
		design.SetRow(i, r.coeffs)
		obs[i] = r.obs
		w[i] = 1 / (r.tol * r.tol)
	}
	sol, err := regression.Solve(regression.Problem{Params: names, Design: design, Obs: obs, Weights: w})
	if err != nil {
		logf("", "%s: %v", res.TestName, err)
		res.fail(err)
		return
	}

	ms := res.MultiStation
	ms.ParameterNames = names
	ms.CorrelationMatrix = sol.Correlation
	ms.MaxNondiagonalCorrelation = sol.MaxNondiagonal
	ms.MaxCorrelationPair = sol.MaxPair
	ms.VarianceFactor = sol.VarianceFactor
	for j, p := range params {
		prop := p.Tolerance(model, s.ConfidenceMultiplier)
		v := sol.Estimates[j]
		ms.Parameters = append(ms.Parameters, Parameter{
			Name:            p.Name,
			Unit:            p.Unit,
			Value:           v,
			StdDev:          sol.StdDevs[j],
			Tolerance:       prop.Tolerance,
			WithinTolerance: math.Abs(v) <= prop.Tolerance,
		})
		res.check(p.Name, v, 0, prop)
	}
	for i, r := range rows {
		st := stations[r.station]
		ms.Residuals = append(ms.Residuals, Residual{
			Index:           r.station,
			Station:         st.Label(),
			Depth:           st.Depth,
			Kind:            r.kind,
			Residual:        sol.Residuals[i],
			Tolerance:       r.tol,
			WithinTolerance: math.Abs(sol.Residuals[i]) <= r.tol,
		})
	}
	if sol.MaxNondiagonal > s.CorrelationGate {
		res.warn("confounded_parameters", "%s and %s correlate at %.3f", sol.MaxPair[0], sol.MaxPair[1], sol.MaxNondiagonal)
	}
}

// diagnose resolves orientations and the geometry summary of a station set.
func diagnose(stations []survey.Station) ([]survey.Orientation, survey.Geometry, error) {
	orients := make([]survey.Orientation, len(stations))
	for i, st := range stations {
		o, err := st.Orient()
		if err != nil {
			return nil, survey.Geometry{}, fmt.Errorf("station %d (%s): %w", i, st.Label(), err)
		}
		if az, ok := st.TrueAzimuth(); ok {
			o.Azimuth = survey.Float(az)
		}
		orients[i] = o
	}
	geo := survey.Diagnose(orients)
	geo.Quality = geo.Grade()
	return orients, geo, nil
}

// newMulti prepares a multi-station result, failing it when there are too
// few stations for any fit.
func newMulti(test string, stations []survey.Station, s config.Settings) (*Result, []survey.Orientation, bool, error) {
	res := newResult(test)
	res.MultiStation = &MultiStation{Model: ModelFull, Residuals: []Residual{}}
	orients, geo, err := diagnose(stations)
	if err != nil {
		return nil, nil, false, err
	}
	res.MultiStation.Geometry = geo
	if len(stations) < s.MinStations {
		res.fail(&apperr.GeometryError{Quality: "insufficient_stations", Reason: fmt.Sprintf("%d stations, at least %d required", len(stations), s.MinStations)})
		return res, orients, false, nil
	}
	return res, orients, true, nil
}

func termNames(terms []catalog.Term) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.Name
	}
	return out
}
