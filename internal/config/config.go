// Package config maps viper settings onto the engine's tunable constants.
package config

import (
	"runtime"

	"github.com/spf13/viper"
)

// Settings are the empirical thresholds used by the QC engine. All of them are
// configurable; Defaults holds the values used when nothing is set.
type Settings struct {
	ConfidenceMultiplier   float64 `json:"confidence_multiplier" yaml:"confidence-multiplier"`
	ToolfaceBand           float64 `json:"toolface_band" yaml:"toolface-band"`
	CardinalBand           float64 `json:"cardinal_band" yaml:"cardinal-band"`
	InclinationDiscrepancy float64 `json:"inclination_discrepancy" yaml:"inclination-discrepancy"`
	ToolfaceDiscrepancy    float64 `json:"toolface_discrepancy" yaml:"toolface-discrepancy"`
	ResidualGate           float64 `json:"residual_gate" yaml:"residual-gate"`
	CorrelationGate        float64 `json:"correlation_gate" yaml:"correlation-gate"`
	CriticalValue          float64 `json:"critical_value" yaml:"critical-value"`
	MinStations            int     `json:"min_stations" yaml:"min-stations"`
	RSMTMinStations        int     `json:"rsmt_min_stations" yaml:"rsmt-min-stations"`
	MaxIterations          int     `json:"max_iterations" yaml:"max-iterations"`
	ConvergenceThreshold   float64 `json:"convergence_threshold" yaml:"convergence-threshold"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		ConfidenceMultiplier:   2.0,
		ToolfaceBand:           15,
		CardinalBand:           10,
		InclinationDiscrepancy: 0.5,
		ToolfaceDiscrepancy:    2.0,
		ResidualGate:           0.1,
		CorrelationGate:        0.4,
		CriticalValue:          2.0,
		MinStations:            10,
		RSMTMinStations:        4,
		MaxIterations:          20,
		ConvergenceThreshold:   1e-6,
	}
}

// Normalize replaces unset or invalid fields with their defaults.
func (s Settings) Normalize() Settings {
	d := Defaults()
	pos := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	pos(&s.ConfidenceMultiplier, d.ConfidenceMultiplier)
	pos(&s.ToolfaceBand, d.ToolfaceBand)
	pos(&s.CardinalBand, d.CardinalBand)
	pos(&s.InclinationDiscrepancy, d.InclinationDiscrepancy)
	pos(&s.ToolfaceDiscrepancy, d.ToolfaceDiscrepancy)
	pos(&s.ResidualGate, d.ResidualGate)
	pos(&s.CorrelationGate, d.CorrelationGate)
	pos(&s.CriticalValue, d.CriticalValue)
	pos(&s.ConvergenceThreshold, d.ConvergenceThreshold)
	if s.MinStations <= 0 {
		s.MinStations = d.MinStations
	}
	if s.RSMTMinStations <= 0 {
		s.RSMTMinStations = d.RSMTMinStations
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = d.MaxIterations
	}
	return s
}

// Keys lists the viper keys understood under the "qc" section.
var Keys = []string{
	"confidence-multiplier", "toolface-band", "cardinal-band",
	"inclination-discrepancy", "toolface-discrepancy", "residual-gate",
	"correlation-gate", "critical-value", "min-stations", "rsmt-min-stations",
	"max-iterations", "convergence-threshold",
}

// SetDefaults registers the defaults on v under "qc." and "batch.".
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("qc.confidence-multiplier", d.ConfidenceMultiplier)
	v.SetDefault("qc.toolface-band", d.ToolfaceBand)
	v.SetDefault("qc.cardinal-band", d.CardinalBand)
	v.SetDefault("qc.inclination-discrepancy", d.InclinationDiscrepancy)
	v.SetDefault("qc.toolface-discrepancy", d.ToolfaceDiscrepancy)
	v.SetDefault("qc.residual-gate", d.ResidualGate)
	v.SetDefault("qc.correlation-gate", d.CorrelationGate)
	v.SetDefault("qc.critical-value", d.CriticalValue)
	v.SetDefault("qc.min-stations", d.MinStations)
	v.SetDefault("qc.rsmt-min-stations", d.RSMTMinStations)
	v.SetDefault("qc.max-iterations", d.MaxIterations)
	v.SetDefault("qc.convergence-threshold", d.ConvergenceThreshold)
	v.SetDefault("batch.workers", runtime.NumCPU())
}

// Load reads the "qc" section of v.
func Load(v *viper.Viper) Settings {
	s := Defaults()
	for _, k := range Keys {
		if !v.IsSet("qc." + k) {
			continue
		}
		switch k {
		case "confidence-multiplier":
			s.ConfidenceMultiplier = v.GetFloat64("qc." + k)
		case "toolface-band":
			s.ToolfaceBand = v.GetFloat64("qc." + k)
		case "cardinal-band":
			s.CardinalBand = v.GetFloat64("qc." + k)
		case "inclination-discrepancy":
			s.InclinationDiscrepancy = v.GetFloat64("qc." + k)
		case "toolface-discrepancy":
			s.ToolfaceDiscrepancy = v.GetFloat64("qc." + k)
		case "residual-gate":
			s.ResidualGate = v.GetFloat64("qc." + k)
		case "correlation-gate":
			s.CorrelationGate = v.GetFloat64("qc." + k)
		case "critical-value":
			s.CriticalValue = v.GetFloat64("qc." + k)
		case "min-stations":
			s.MinStations = v.GetInt("qc." + k)
		case "rsmt-min-stations":
			s.RSMTMinStations = v.GetInt("qc." + k)
		case "max-iterations":
			s.MaxIterations = v.GetInt("qc." + k)
		case "convergence-threshold":
			s.ConvergenceThreshold = v.GetFloat64("qc." + k)
		}
	}
	return s.Normalize()
}

// Workers returns the batch worker limit.
func Workers(v *viper.Viper) int {
	n := v.GetInt("batch.workers")
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}
