package qc

import (
	"context"

	"github.com/idlab-discover/surveyqc-cli/internal/catalog"
	"github.com/idlab-discover/surveyqc-cli/internal/config"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/mse"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
)

// MSE wraps the joint multi-station estimator as a registered test.
type MSE struct {
	Settings config.Settings
}

func (t MSE) Info() Info {
	return Info{
		ID:          "MSE",
		Name:        "Multi-Station Estimation",
		Kind:        KindMulti,
		Description: "joint iterative accelerometer and magnetometer estimation with significance testing and corrected surveys",
		MinStations: t.Settings.Normalize().MinStations,
	}
}

func (MSE) Terms() []catalog.Term { return mse.ParameterSet(survey.QualityExcellent) }

func (t MSE) Evaluate(stations []survey.Station, model *ipm.Model) (*Result, error) {
	return t.EvaluateContext(context.Background(), stations, model)
}

// EvaluateContext runs the estimator under ctx.
func (t MSE) EvaluateContext(ctx context.Context, stations []survey.Station, model *ipm.Model) (*Result, error) {
	est, err := mse.Estimate(ctx, stations, model, mse.OptionsFrom(t.Settings))
	if err != nil {
		return nil, err
	}
	res := newResult("MSE")
	res.Estimation = est
	for _, w := range est.Warnings {
		res.warn(w.Code, "%s", w.Message)
	}
	for _, p := range est.Parameters {
		res.measure(p.Name, p.Value)
		res.TheoreticalValues[p.Name] = 0
		res.Errors[p.Name] = p.Value
		res.Tolerances[p.Name] = p.Tolerance
		if term, ok := catalog.Lookup(p.Name); ok {
			if tr := term.Tolerance(model, t.Settings.Normalize().ConfidenceMultiplier); tr.Resolved() == 0 {
				res.addMissing(p.Name)
			} else {
				res.Details.DebugIPMTerms[p.Name] = tr.Terms
			}
		}
	}
	for _, r := range est.Residuals {
		if !r.WithinTolerance {
			res.warn("residual_out_of_tolerance", "station %s %s residual %.4g exceeds %.4g", r.Station, r.Kind, r.Residual, r.Tolerance)
		}
	}
	res.Failure = est.Failure
	res.finalize()
	if res.Failure == nil {
		for _, r := range est.Residuals {
			if !r.WithinTolerance {
				res.IsValid = false
			}
		}
	}
	return res, nil
}
