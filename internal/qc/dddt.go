package qc

import (
	"math"

	"github.com/idlab-discover/surveyqc-cli/internal/catalog"
	"github.com/idlab-discover/surveyqc-cli/internal/config"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/propagation"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
	"github.com/idlab-discover/surveyqc-cli/internal/weighting"
)

// Depth measurement systems compared by DDDT.
var depthSystems = []string{"PIPE", "WIRE"}

// DDDT is the dual depth difference test: pipe tally against wireline depth.
type DDDT struct {
	Settings config.Settings
}

func (DDDT) Info() Info {
	return Info{
		ID:          "DDDT",
		Name:        "Dual Depth Difference Test",
		Kind:        KindSingle,
		Description: "pipe depth against wireline depth at a common true vertical depth",
		MinStations: 1,
	}
}

func (DDDT) Terms() []catalog.Term {
	var out []catalog.Term
	for _, sys := range depthSystems {
		out = append(out, catalog.Depth(sys)...)
	}
	return out
}

func (t DDDT) Evaluate(stations []survey.Station, model *ipm.Model) (*Result, error) {
	return eachStation("DDDT", stations, func(st survey.Station) (*Result, error) {
		return t.EvaluateStation(st, model)
	})
}

// EvaluateStation runs DDDT on one station.
func (t DDDT) EvaluateStation(st survey.Station, model *ipm.Model) (*Result, error) {
	pipe, err := survey.RequireFloat("pipe_depth", st.PipeDepth)
	if err != nil {
		return nil, err
	}
	wire, err := survey.RequireFloat("wireline_depth", st.WirelineDepth)
	if err != nil {
		return nil, err
	}
	s := t.Settings.Normalize()
	res := newResult("DDDT")

	geo := weighting.At(st)
	if geo.Depth == 0 {
		geo.Depth = (pipe + wire) / 2
	}
	if st.TVD == nil {
		geo.TVD = geo.Depth
		if o, err := st.Orient(); err == nil {
			geo.TVD = geo.Depth * math.Cos(survey.Rad(o.Inclination))
			res.warn("estimated_tvd", "tvd not given, using depth·cos(inclination)")
		} else {
			res.warn("estimated_tvd", "tvd and inclination not given, using measured depth")
		}
	}

	var sources []propagation.Source
	for _, sys := range depthSystems {
		sources = append(sources, catalog.Sources(weighting.DepthDifference, geo, catalog.Depth(sys), 1)...)
	}
	prop := propagation.Propagate(model, sources, s.ConfidenceMultiplier)
	res.check("depth_difference", pipe-wire, 0, prop)
	res.measure("pipe_depth", pipe)
	res.measure("wireline_depth", wire)
	res.measure("tvd", geo.TVD)
	res.Details.WeightingFunctions["reference"] = 1.0
	res.Details.WeightingFunctions["scale"] = geo.TVD
	res.Details.WeightingFunctions["stretch"] = geo.TVD * geo.Depth

	logf(st.Label(), "DDDT pipe %.2f wire %.2f tol %.3f", pipe, wire, prop.Tolerance)
	return res.finalize(), nil
}
