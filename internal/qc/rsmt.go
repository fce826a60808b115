package qc

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/catalog"
	"github.com/idlab-discover/surveyqc-cli/internal/config"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/propagation"
	"github.com/idlab-discover/surveyqc-cli/internal/regression"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
	"github.com/idlab-discover/surveyqc-cli/internal/weighting"
)

const (
	minReliableQuadrants = 3
	maxRotationSpread    = 5.0
)

// RSMT is the rotation shot misalignment test: inclination measured at
// several toolfaces at one depth is fitted to inc + mx·cos(tf) + my·sin(tf).
type RSMT struct {
	Settings config.Settings
}

func (t RSMT) Info() Info {
	return Info{
		ID:          "RSMT",
		Name:        "Rotation Shot Misalignment Test",
		Kind:        KindSingle,
		Description: "sinusoidal misalignment fit over a set of rotation shots",
		MinStations: t.Settings.Normalize().RSMTMinStations,
	}
}

func (RSMT) Terms() []catalog.Term {
	return append([]catalog.Term{catalog.MX, catalog.MY}, catalog.Inclination...)
}

type shot struct {
	label string
	inc   float64
	tf    float64
	sigma float64
}

// Evaluate fits the misalignment model over all stations as one rotation set.
func (t RSMT) Evaluate(stations []survey.Station, model *ipm.Model) (*Result, error) {
	s := t.Settings.Normalize()
	if len(stations) == 0 {
		return nil, apperr.Missing("surveys")
	}
	res := newResult("RSMT")

	shots := make([]shot, len(stations))
	tfs := make([]float64, len(stations))
	incs := make([]float64, len(stations))
	for i, st := range stations {
		o, err := st.Orient()
		if err != nil {
			return nil, err
		}
		if o.Toolface == nil {
			return nil, &apperr.ValidationError{Field: "toolface", Reason: "station " + st.Label() + " has no toolface"}
		}
		sh := shot{label: st.Label(), inc: o.Inclination, tf: *o.Toolface}
		if st.Accelerometer != nil {
			prop := propagation.Propagate(model, catalog.Sources(weighting.Inclination, weighting.At(st), catalog.Inclination, survey.Deg(1)), 1)
			sh.sigma = prop.RSS
		}
		shots[i] = sh
		tfs[i], incs[i] = sh.tf, sh.inc
	}

	quads := survey.QuadrantDistribution(tfs)
	covered := survey.Covered(quads)
	res.extra("quadrant_distribution", quads)
	if covered < minReliableQuadrants {
		res.warn("reduced_reliability", "toolfaces cover %d of 4 quadrants", covered)
	}
	if spread := survey.Range(incs); spread > maxRotationSpread {
		res.warn("inclination_spread", "inclination varies by %.2f° across the rotation set", spread)
	}

	if len(shots) < s.RSMTMinStations {
		res.fail(&apperr.GeometryError{Quality: "insufficient_stations", Reason: fmt.Sprintf("rotation set has %d stations, needs %d", len(shots), s.RSMTMinStations)})
		return res.finalize(), nil
	}

	sol, kept, err := fitRotation(shots)
	if err != nil {
		res.fail(err)
		return res.finalize(), nil
	}
	var rejected []string
	var remaining []shot
	for i, sh := range kept {
		if math.Abs(sol.Residuals[i]) > s.ResidualGate {
			rejected = append(rejected, sh.label)
			continue
		}
		remaining = append(remaining, sh)
	}
	if len(rejected) > 0 {
		if len(remaining) >= s.RSMTMinStations {
			res.warn("outliers_rejected", "%d station(s) exceed the %.3f° residual gate", len(rejected), s.ResidualGate)
			if refit, refitKept, err := fitRotation(remaining); err == nil {
				sol, kept = refit, refitKept
			} else {
				res.fail(err)
				return res.finalize(), nil
			}
		} else {
			res.warn("outliers_rejected", "%d station(s) exceed the residual gate; too few remain to refit", len(rejected))
			rejected = nil
		}
	}
	res.extra("rejected_stations", nonNil(rejected))
	res.extra("residuals", sol.Residuals)

	corr := sol.Correlation[1][2]
	res.extra("correlation_mx_my", corr)
	if math.Abs(corr) > s.CorrelationGate {
		res.warn("high_correlation", "mx/my correlation %.3f exceeds %.2f", corr, s.CorrelationGate)
	}

	res.measure("fitted_inclination", sol.Estimates[0])
	for i, term := range []catalog.Term{catalog.MX, catalog.MY} {
		key := strings.ToLower(term.Name)
		prop := term.Tolerance(model, s.ConfidenceMultiplier)
		res.check(key, sol.Estimates[i+1], 0, prop)
		res.extra(key+"_std_dev", sol.StdDevs[i+1])
	}
	res.Details.WeightingFunctions["stations"] = len(kept)

	logf("", "RSMT mx %.4f my %.4f over %d shots", sol.Estimates[1], sol.Estimates[2], len(kept))
	return res.finalize(), nil
}

func fitRotation(shots []shot) (*regression.Solution, []shot, error) {
	n := len(shots)
	design := mat.NewDense(n, 3, nil)
	obs := make([]float64, n)
	w := make([]float64, n)
	for i, sh := range shots {
		c, s := math.Cos(survey.Rad(sh.tf)), math.Sin(survey.Rad(sh.tf))
		design.SetRow(i, []float64{1, c, s})
		obs[i] = sh.inc
		w[i] = 1
		if sh.sigma > 0 {
			w[i] = 1 / (sh.sigma * sh.sigma)
		}
	}
	sol, err := regression.Solve(regression.Problem{Params: []string{"inclination", "MX", "MY"}, Design: design, Obs: obs, Weights: w})
	if err != nil {
		var ge *apperr.GeometryError
		var se *apperr.SingularMatrixError
		if errors.As(err, &ge) || errors.As(err, &se) {
			return nil, nil, err
		}
		return nil, nil, &apperr.GeometryError{Quality: "unsolvable", Reason: err.Error()}
	}
	return sol, shots, nil
}
