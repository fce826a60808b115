// Package mse is the multi-station estimator: a joint, iterative fit of
// accelerometer and magnetometer error terms over a whole survey section,
// with significance testing and corrected surveys.
package mse

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"golang.org/x/sync/errgroup"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/catalog"
	"github.com/idlab-discover/surveyqc-cli/internal/config"
	"github.com/idlab-discover/surveyqc-cli/internal/correction"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/propagation"
	"github.com/idlab-discover/surveyqc-cli/internal/regression"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
	"github.com/idlab-discover/surveyqc-cli/internal/weighting"
)

// Options bound the estimator.
type Options struct {
	Confidence      float64
	CriticalValue   float64
	CorrelationGate float64
	Threshold       float64
	MaxIterations   int
	MinStations     int
}

// OptionsFrom maps engine settings onto estimator options.
func OptionsFrom(s config.Settings) Options {
	s = s.Normalize()
	return Options{
		Confidence:      s.ConfidenceMultiplier,
		CriticalValue:   s.CriticalValue,
		CorrelationGate: s.CorrelationGate,
		Threshold:       s.ConvergenceThreshold,
		MaxIterations:   s.MaxIterations,
		MinStations:     s.MinStations,
	}
}

// Parameter is one jointly estimated error term.
type Parameter struct {
	Name            string  `json:"name" yaml:"name"`
	Unit            string  `json:"unit" yaml:"unit"`
	Value           float64 `json:"value" yaml:"value"`
	StdDev          float64 `json:"std_dev" yaml:"std_dev"`
	TStatistic      float64 `json:"t_statistic" yaml:"t_statistic"`
	PValue          float64 `json:"p_value" yaml:"p_value"`
	Significant     bool    `json:"significant" yaml:"significant"`
	Tolerance       float64 `json:"tolerance" yaml:"tolerance"`
	WithinTolerance bool    `json:"within_tolerance" yaml:"within_tolerance"`
}

// Iteration records one pass of the loop.
type Iteration struct {
	Iteration    int       `json:"iteration" yaml:"iteration"`
	DeltaNorm    float64   `json:"delta_norm" yaml:"delta_norm"`
	ResidualNorm float64   `json:"residual_norm" yaml:"residual_norm"`
	Estimates    []float64 `json:"estimates" yaml:"estimates"`
}

// Residual is one observation at the final estimate.
type Residual struct {
	Index           int     `json:"index" yaml:"index"`
	Station         string  `json:"station" yaml:"station"`
	Depth           float64 `json:"depth" yaml:"depth"`
	Kind            string  `json:"kind" yaml:"kind"`
	Residual        float64 `json:"residual" yaml:"residual"`
	Tolerance       float64 `json:"tolerance" yaml:"tolerance"`
	WithinTolerance bool    `json:"within_tolerance" yaml:"within_tolerance"`
}

// Warning is a coded note raised during estimation.
type Warning struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// Result is the estimation output.
type Result struct {
	Parameters                []Parameter        `json:"parameters" yaml:"parameters"`
	ParameterNames            []string           `json:"parameter_names" yaml:"parameter_names"`
	CorrelationMatrix         [][]float64        `json:"correlation_matrix" yaml:"correlation_matrix"`
	MaxNondiagonalCorrelation float64            `json:"max_nondiagonal_correlation" yaml:"max_nondiagonal_correlation"`
	Residuals                 []Residual         `json:"residuals" yaml:"residuals"`
	ResidualRMS               map[string]float64 `json:"residual_rms" yaml:"residual_rms"`
	Converged                 bool               `json:"converged" yaml:"converged"`
	Iterations                int                `json:"iterations" yaml:"iterations"`
	FinalResidualNorm         float64            `json:"final_residual_norm" yaml:"final_residual_norm"`
	VarianceFactor            float64            `json:"variance_factor" yaml:"variance_factor"`
	IterationHistory          []Iteration        `json:"iteration_history" yaml:"iteration_history"`
	GeometryQuality           string             `json:"geometry_quality" yaml:"geometry_quality"`
	Geometry                  survey.Geometry    `json:"geometry" yaml:"geometry"`
	CorrectedSurveys          []survey.Station   `json:"corrected_surveys" yaml:"corrected_surveys"`
	Warnings                  []Warning          `json:"warnings" yaml:"warnings"`
	Failure                   *apperr.Failure    `json:"failure,omitempty" yaml:"failure,omitempty"`
}

func (r *Result) warn(code, format string, args ...any) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) fail(err error) {
	r.Failure = apperr.AsFailure(err)
	logf("estimation failed: %v", err)
}

// Parameter sets per geometry grade.
var parameterSets = map[string][]catalog.Term{
	survey.QualityExcellent: {catalog.MBX, catalog.MBY, catalog.MBZ, catalog.MSX, catalog.MSY, catalog.MSZ, catalog.ABX, catalog.ABY, catalog.ABZ, catalog.ASX, catalog.ASY},
	survey.QualityGood:      {catalog.MBX, catalog.MBY, catalog.MBZ, catalog.MSX, catalog.MSY, catalog.ABX, catalog.ABY},
	survey.QualityFair:      {catalog.MBX, catalog.MBY, catalog.ABX, catalog.ABY},
}

// ParameterSet returns the terms estimated at a geometry grade.
func ParameterSet(quality string) []catalog.Term {
	return append([]catalog.Term(nil), parameterSets[quality]...)
}

// Estimate runs the joint estimator. Invalid input is returned as an error;
// geometry, singularity and convergence problems are captured in the result
// together with the best estimate reached.
func Estimate(ctx context.Context, stations []survey.Station, model *ipm.Model, opt Options) (*Result, error) {
	if len(stations) == 0 {
		return nil, apperr.Missing("surveys")
	}
	magnetic := 0
	for i, st := range stations {
		if _, err := st.Gravity(); err != nil {
			return nil, fmt.Errorf("station %d (%s): %w", i, st.Label(), err)
		}
		if hasMagnetic(st) {
			magnetic++
		}
	}

	res := &Result{Warnings: []Warning{}, Residuals: []Residual{}, ResidualRMS: map[string]float64{}}
	orients := make([]survey.Orientation, len(stations))
	for i, st := range stations {
		o, err := st.Orient()
		if err != nil {
			return nil, err
		}
		if az, ok := st.TrueAzimuth(); ok {
			o.Azimuth = survey.Float(az)
		}
		orients[i] = o
	}
	res.Geometry = survey.Diagnose(orients)
	res.GeometryQuality = res.Geometry.Grade()
	res.Geometry.Quality = res.GeometryQuality

	if len(stations) < opt.MinStations {
		res.fail(&apperr.GeometryError{Quality: "insufficient_stations", Reason: fmt.Sprintf("%d stations, at least %d required", len(stations), opt.MinStations)})
		return res, nil
	}
	params := ParameterSet(res.GeometryQuality)
	if len(params) == 0 {
		res.fail(&apperr.GeometryError{Quality: res.GeometryQuality, Reason: fmt.Sprintf("inclination spread %.1f°, azimuth spread %.1f°, %d quadrants", res.Geometry.InclinationSpread, res.Geometry.AzimuthSpread, res.Geometry.QuadrantsCovered)})
		return res, nil
	}
	if magnetic == 0 {
		params = accelOnly(params)
		res.warn("magnetometer_terms_dropped", "no station carries magnetometer data with a reference field")
	} else if magnetic < len(stations) {
		res.warn("partial_magnetic_data", "%d of %d stations contribute field and dip rows", magnetic, len(stations))
	}
	res.ParameterNames = names(params)

	scales := make([]float64, len(params))
	for j, p := range params {
		scales[j] = 1
		if m, ok := p.Magnitude(model); ok && m > 0 {
			scales[j] = m
		}
	}

	beta := make([]float64, len(params))
	var last *regression.Solution
	var lastDelta float64
	for it := 1; it <= opt.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, apperr.ErrCancelled
		}
		rows, err := buildRows(ctx, stations, model, params, beta, opt.Confidence)
		if err != nil {
			return nil, err
		}
		sol, err := solve(params, rows)
		if err != nil {
			res.fail(err)
			break
		}
		last = sol
		normalized := make([]float64, len(beta))
		for j := range beta {
			beta[j] += sol.Estimates[j]
			normalized[j] = sol.Estimates[j] / scales[j]
		}
		lastDelta = floats.Norm(normalized, 2)
		res.Iterations = it
		res.IterationHistory = append(res.IterationHistory, Iteration{
			Iteration:    it,
			DeltaNorm:    lastDelta,
			ResidualNorm: math.Sqrt(sol.WeightedSSR),
			Estimates:    append([]float64(nil), beta...),
		})
		logf("iteration %d delta %.3g", it, lastDelta)
		if lastDelta < opt.Threshold {
			res.Converged = true
			break
		}
	}
	if !res.Converged && res.Failure == nil {
		res.fail(&apperr.ConvergenceFailure{Iterations: res.Iterations, DeltaNorm: lastDelta})
	}

	if err := res.finish(ctx, stations, model, params, beta, last, opt); err != nil {
		return nil, err
	}
	return res, nil
}

func (res *Result) finish(ctx context.Context, stations []survey.Station, model *ipm.Model, params []catalog.Term, beta []float64, sol *regression.Solution, opt Options) error {
	var dist interface{ CDF(float64) float64 } = distuv.UnitNormal
	if sol != nil {
		res.CorrelationMatrix = sol.Correlation
		res.MaxNondiagonalCorrelation = sol.MaxNondiagonal
		res.VarianceFactor = sol.VarianceFactor
		if sol.DOF > 0 {
			dist = distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(sol.DOF)}
		}
		if sol.MaxNondiagonal > opt.CorrelationGate {
			res.warn("confounded_parameters", "%s and %s correlate at %.3f", sol.MaxPair[0], sol.MaxPair[1], sol.MaxNondiagonal)
		}
	}
	for j, p := range params {
		tol := p.Tolerance(model, opt.Confidence).Tolerance
		par := Parameter{Name: p.Name, Unit: p.Unit, Value: beta[j], Tolerance: tol, WithinTolerance: math.Abs(beta[j]) <= tol}
		if sol != nil {
			par.StdDev = sol.StdDevs[j]
			if par.StdDev > 0 {
				par.TStatistic = beta[j] / par.StdDev
				par.PValue = 2 * (1 - dist.CDF(math.Abs(par.TStatistic)))
				par.Significant = math.Abs(par.TStatistic) > opt.CriticalValue
			} else {
				par.PValue = 1
			}
		}
		res.Parameters = append(res.Parameters, par)
	}

	rows, err := buildRows(ctx, stations, model, params, beta, opt.Confidence)
	if err != nil {
		return err
	}
	byKind := map[string][]float64{}
	var norm float64
	for _, r := range rows {
		st := stations[r.station]
		res.Residuals = append(res.Residuals, Residual{
			Index:           r.station,
			Station:         st.Label(),
			Depth:           st.Depth,
			Kind:            r.kind,
			Residual:        r.obs,
			Tolerance:       r.tol,
			WithinTolerance: math.Abs(r.obs) <= r.tol,
		})
		byKind[r.kind] = append(byKind[r.kind], r.obs*r.obs)
		norm += (r.obs / r.tol) * (r.obs / r.tol)
	}
	res.FinalResidualNorm = math.Sqrt(norm)
	for k, sq := range byKind {
		res.ResidualRMS[k] = math.Sqrt(stat.Mean(sq, nil))
	}

	corr := correction.FromEstimates(names(params), beta)
	res.CorrectedSurveys = make([]survey.Station, len(stations))
	for i, st := range stations {
		c, err := correction.Apply(st, corr)
		if err != nil {
			return fmt.Errorf("station %d (%s): %w", i, st.Label(), err)
		}
		res.CorrectedSurveys[i] = c
	}
	return nil
}

// row is one linearised observation at the current estimate.
type row struct {
	station int
	kind    string
	obs     float64
	coeffs  []float64
	tol     float64
}

// buildRows corrects every station with the current estimate and linearises
// its gravity, field and dip residuals. Stations are processed in parallel;
// row order is fixed by station index.
func buildRows(ctx context.Context, stations []survey.Station, model *ipm.Model, params []catalog.Term, beta []float64, k float64) ([]row, error) {
	cur := correction.FromEstimates(names(params), beta)
	perStation := make([][]row, len(stations))
	g, _ := errgroup.WithContext(ctx)
	for i, st := range stations {
		g.Go(func() error {
			c, err := correction.Apply(st, cur)
			if err != nil {
				return fmt.Errorf("station %d (%s): %w", i, st.Label(), err)
			}
			perStation[i] = stationRows(i, c, model, params, cur, k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var rows []row
	for _, r := range perStation {
		rows = append(rows, r...)
	}
	return rows, nil
}

func stationRows(i int, st survey.Station, model *ipm.Model, params []catalog.Term, cur correction.Parameters, k float64) []row {
	geo := weighting.At(st)
	ref, _ := st.ReferenceGravity()
	rows := []row{{
		station: i,
		kind:    "gravity",
		obs:     r3.Norm(geo.G) - ref,
		coeffs:  jacobian(params, weighting.GravityMagnitude, geo, cur, 1),
		tol:     propagation.Propagate(model, catalog.Sources(weighting.GravityMagnitude, geo, catalog.Gravity, 1), k).Tolerance,
	}}
	if !hasMagnetic(st) || !hasMagneticParams(params) {
		return rows
	}
	toDeg := survey.Deg(1)
	return append(rows,
		row{
			station: i,
			kind:    "total_field",
			obs:     r3.Norm(geo.B) - st.ExpectedField.TotalField,
			coeffs:  jacobian(params, weighting.TotalField, geo, cur, 1),
			tol:     propagation.Propagate(model, catalog.Sources(weighting.TotalField, geo, catalog.Field, 1), k).Tolerance,
		},
		row{
			station: i,
			kind:    "dip",
			obs:     survey.Dip(geo.G, geo.B) - st.ExpectedField.Dip,
			coeffs:  jacobian(params, weighting.Dip, geo, cur, toDeg),
			tol:     propagation.Propagate(model, catalog.Sources(weighting.Dip, geo, catalog.Dip, toDeg), k).Tolerance,
		},
	)
}

// jacobian returns the sensitivities of quantity q to each parameter at the
// corrected geometry. A channel corrected as (raw-b)/(1+s) responds to its
// parameters scaled by 1/(1+s).
func jacobian(params []catalog.Term, q weighting.Quantity, geo weighting.Geometry, cur correction.Parameters, factor float64) []float64 {
	c := make([]float64, len(params))
	for j, p := range params {
		for _, s := range p.Sources {
			c[j] += factor * weighting.Coefficient(q, geo, s) / (1 + scaleOf(cur, s))
		}
	}
	return c
}

func scaleOf(p correction.Parameters, s weighting.Source) float64 {
	var v survey.Vector3
	switch s.Sensor {
	case weighting.Accelerometer:
		v = p.AccelScale
	case weighting.Magnetometer:
		v = p.MagScale
	default:
		return 0
	}
	switch s.Axis {
	case weighting.X:
		return v.X
	case weighting.Y:
		return v.Y
	}
	return v.Z
}

func solve(params []catalog.Term, rows []row) (*regression.Solution, error) {
	design := mat.NewDense(len(rows), len(params), nil)
	obs := make([]float64, len(rows))
	w := make([]float64, len(rows))
	for i, r := range rows {
		design.SetRow(i, r.coeffs)
		obs[i] = r.obs
		w[i] = 1 / (r.tol * r.tol)
	}
	return regression.Solve(regression.Problem{Params: names(params), Design: design, Obs: obs, Weights: w})
}

func hasMagnetic(st survey.Station) bool {
	if st.ExpectedField == nil || st.ExpectedField.TotalField <= 0 {
		return false
	}
	_, err := st.Field()
	return err == nil
}

func hasMagneticParams(params []catalog.Term) bool {
	for _, p := range params {
		for _, s := range p.Sources {
			if s.Sensor == weighting.Magnetometer {
				return true
			}
		}
	}
	return false
}

func accelOnly(params []catalog.Term) []catalog.Term {
	var out []catalog.Term
	for _, p := range params {
		if len(p.Sources) > 0 && p.Sources[0].Sensor == weighting.Accelerometer {
			out = append(out, p)
		}
	}
	return out
}

func names(params []catalog.Term) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name
	}
	return out
}
