package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/completeness"
	"github.com/idlab-discover/surveyqc-cli/internal/config"
	qcio "github.com/idlab-discover/surveyqc-cli/internal/io"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/mse"
	"github.com/idlab-discover/surveyqc-cli/internal/qc"
	"github.com/idlab-discover/surveyqc-cli/internal/regression"
	"github.com/idlab-discover/surveyqc-cli/internal/ui"
)

// logLevel reads and validates "<command>.log-level".
func logLevel(command string) (string, error) {
	level := strings.ToLower(strings.TrimSpace(viper.GetString(command + ".log-level")))
	if level == "" {
		level = "standard"
	}
	switch level {
	case "quiet", "standard", "debug":
		return level, nil
	default:
		return "", apperr.Userf("invalid --log-level %q (expected quiet|standard|debug)", level)
	}
}

// wireLoggers routes the engine package loggers to w in debug mode.
func wireLoggers(level string, w io.Writer) {
	if level != "debug" {
		w = nil
	}
	ipm.SetLogger(w)
	qc.SetLogger(w)
	mse.SetLogger(w)
	regression.SetLogger(w)
	completeness.SetLogger(w)
}

func settings() config.Settings { return config.Load(viper.GetViper()) }

// coverageView converts a completeness report for rendering.
func coverageView(r completeness.Report) ui.CoverageReport {
	v := ui.CoverageReport{Model: r.Model, Score: r.Score, Passed: r.Passed, Total: r.Total, Missing: r.Missing}
	for _, t := range r.Tests {
		v.Tests = append(v.Tests, ui.TestCoverage{Test: t.Test, Score: t.Score, Passed: t.Passed, Total: t.Total, Missing: t.Missing})
	}
	return v
}

// loadRequest reads the survey request and resolves its model: the --ipm file
// when given, otherwise the request's inline IPM.
func loadRequest(inputPath, format, ipmPath string) (*qcio.Request, *ipm.Model, error) {
	model, err := loadModel(ipmPath)
	if err != nil {
		return nil, nil, err
	}
	return resolveRequest(inputPath, format, model)
}

// resolveRequest reads the request, falling back to its inline IPM when model
// is nil.
func resolveRequest(inputPath, format string, model *ipm.Model) (*qcio.Request, *ipm.Model, error) {
	if strings.TrimSpace(inputPath) == "" {
		return nil, nil, apperr.User("--input is required")
	}
	req, err := qcio.ReadRequest(inputPath, format)
	if err != nil {
		return nil, nil, err
	}
	if model == nil {
		if model, err = req.Model(); err != nil {
			return nil, nil, fmt.Errorf("%s: inline ipm: %w", inputPath, err)
		}
	}
	if model == nil {
		return nil, nil, apperr.User("no IPM: pass --ipm or include an ipm field in the request")
	}
	return req, model, nil
}

// evaluate runs test id on the request, comparing its surveys against the
// request's comparison survey for comparison tests.
func evaluate(ctx context.Context, reg *qc.Registry, id string, req *qcio.Request, model *ipm.Model) (*qc.Result, error) {
	if reg.IsComparison(id) {
		return reg.Compare(id, req.Surveys, req.Comparison, model)
	}
	return reg.EvaluateContext(ctx, id, req.Surveys, model)
}

func loadModel(path string) (*ipm.Model, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	return qcio.ReadIPM(path)
}

// emit writes the envelope to output, or to stdout when output is empty.
func emit(w io.Writer, env qcio.Envelope, output, format string) error {
	if output != "" {
		return qcio.WriteResult(env, output, format)
	}
	actual, err := qcio.ResolveFormat("", format)
	if err != nil {
		return err
	}
	return qcio.Encode(w, env, actual)
}

// resultView converts a QC result for rendering.
func resultView(runID string, r *qc.Result) ui.ResultView {
	v := ui.ResultView{
		RunID:        runID,
		Test:         r.TestName,
		Station:      r.Station,
		Valid:        r.IsValid,
		MissingTerms: r.Details.MissingTerms,
	}
	if r.Failure != nil {
		v.Failure = r.Failure.Kind + ": " + r.Failure.Message
	}
	for _, w := range r.Details.Warnings {
		v.Warnings = append(v.Warnings, w.Code+": "+w.Message)
	}

	switch {
	case r.Estimation != nil:
		est := r.Estimation
		converged := est.Converged
		v.Converged = &converged
		v.Iterations = est.Iterations
		v.Geometry = est.GeometryQuality
		for _, p := range est.Parameters {
			pv := p.PValue
			v.Parameters = append(v.Parameters, ui.ParameterView{Name: p.Name, Unit: p.Unit, Value: p.Value, StdDev: p.StdDev, Tolerance: p.Tolerance, Within: p.WithinTolerance, PValue: &pv})
		}
		for _, res := range est.Residuals {
			v.Residuals++
			if !res.WithinTolerance {
				v.OutOfTol++
			}
		}
	case r.MultiStation != nil:
		ms := r.MultiStation
		v.Geometry = fmt.Sprintf("%s model, %d quadrant(s), inclination spread %.1f°", ms.Model, ms.Geometry.QuadrantsCovered, ms.Geometry.InclinationSpread)
		for _, p := range ms.Parameters {
			v.Parameters = append(v.Parameters, ui.ParameterView{Name: p.Name, Unit: p.Unit, Value: p.Value, StdDev: p.StdDev, Tolerance: p.Tolerance, Within: p.WithinTolerance})
		}
		for _, res := range ms.Residuals {
			v.Residuals++
			if !res.WithinTolerance {
				v.OutOfTol++
			}
		}
	default:
		names := make([]string, 0, len(r.Tolerances))
		for k := range r.Tolerances {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			v.Checks = append(v.Checks, ui.CheckView{
				Name:        k,
				Measured:    r.Measurements[k],
				Theoretical: r.TheoreticalValues[k],
				Error:       r.Errors[k],
				Tolerance:   r.Tolerances[k],
			})
		}
	}

	for _, s := range r.Stations {
		v.Stations = append(v.Stations, resultView("", s))
	}
	return v
}

// render prints the styled or plain summary to stderr so stdout stays
// machine readable.
func render(v ui.ResultView, level string, plain bool) {
	r := ui.NewReportUI(os.Stderr, level == "quiet")
	if plain {
		r.PrintPlain(v)
		return
	}
	r.PrintResult(v)
}
