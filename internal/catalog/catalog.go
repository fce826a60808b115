// Package catalog names the IPM error terms each measured quantity depends on
// and binds them to weighting-function sources.
package catalog

import (
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/propagation"
	"github.com/idlab-discover/surveyqc-cli/internal/weighting"
)

// Term is one physical error source. Name doubles as the estimated parameter
// name in multi-station fits. Names are IPM lookup candidates in preference
// order. Sources lists every channel effect; their coefficients add.
type Term struct {
	Name    string
	Names   []string
	Unit    string
	Sources []weighting.Source
}

func term(name, unit string, names []string, srcs ...weighting.Source) Term {
	return Term{Name: name, Names: names, Unit: unit, Sources: srcs}
}

func src(s weighting.Sensor, k weighting.Kind, a weighting.Axis) weighting.Source {
	return weighting.Source{Sensor: s, Kind: k, Axis: a}
}

const (
	acc  = weighting.Accelerometer
	mag  = weighting.Magnetometer
	gyro = weighting.Gyro
	dep  = weighting.Depth
)

var (
	ABX = term("ABX", "g", []string{"ABX", "ABXY-TI1S"}, src(acc, weighting.Bias, weighting.X))
	ABY = term("ABY", "g", []string{"ABY", "ABXY-TI1S"}, src(acc, weighting.Bias, weighting.Y))
	ABZ = term("ABZ", "g", []string{"ABZ"}, src(acc, weighting.Bias, weighting.Z))
	ASX = term("ASX", "-", []string{"ASX", "ASXY-TI1S"}, src(acc, weighting.Scale, weighting.X))
	ASY = term("ASY", "-", []string{"ASY", "ASXY-TI1S"}, src(acc, weighting.Scale, weighting.Y))
	ASZ = term("ASZ", "-", []string{"ASZ"}, src(acc, weighting.Scale, weighting.Z))

	MBX = term("MBX", "nT", []string{"MBX", "MBXY-TI1S"}, src(mag, weighting.Bias, weighting.X))
	MBY = term("MBY", "nT", []string{"MBY", "MBXY-TI1S"}, src(mag, weighting.Bias, weighting.Y))
	MBZ = term("MBZ", "nT", []string{"MBZ"}, src(mag, weighting.Bias, weighting.Z))
	MSX = term("MSX", "-", []string{"MSX", "MSXY-TI1S"}, src(mag, weighting.Scale, weighting.X))
	MSY = term("MSY", "-", []string{"MSY", "MSXY-TI1S"}, src(mag, weighting.Scale, weighting.Y))
	MSZ = term("MSZ", "-", []string{"MSZ"}, src(mag, weighting.Scale, weighting.Z))

	MFI = term("MFI", "nT", []string{"MFI", "DECG"}, src(mag, weighting.Reference, weighting.X))
	// MDI is weighted in radians; callers scale dip coefficients to degrees.
	MDI = term("MDI", "rad", []string{"MDI", "DBHG"}, src(mag, weighting.Reference, weighting.X))

	GBX = term("GBX", "deg/hr", []string{"GBX", "GBXY"}, src(gyro, weighting.Bias, weighting.X))
	GBY = term("GBY", "deg/hr", []string{"GBY", "GBXY"}, src(gyro, weighting.Bias, weighting.Y))
	GSX = term("GSX", "-", []string{"GSX", "GSXY"}, src(gyro, weighting.Scale, weighting.X))
	GSY = term("GSY", "-", []string{"GSY", "GSXY"}, src(gyro, weighting.Scale, weighting.Y))
	M   = term("M", "deg/hr/g", []string{"M", "MU"}, src(gyro, weighting.MassUnbalance, weighting.X), src(gyro, weighting.MassUnbalance, weighting.Y))
	Q   = term("Q", "deg/hr/g2", []string{"Q"}, src(gyro, weighting.Quadrature, weighting.X), src(gyro, weighting.Quadrature, weighting.Y))
	GRX = term("GRX", "deg/hr", []string{"GRX", "GR"}, src(gyro, weighting.Bias, weighting.X))
	GRY = term("GRY", "deg/hr", []string{"GRY", "GR"}, src(gyro, weighting.Bias, weighting.Y))

	MX = term("MX", "deg", []string{"MX", "MXY"})
	MY = term("MY", "deg", []string{"MY", "MXY"})
	MR = term("MR", "deg", []string{"MR"})
)

// Term sets per measured quantity.
var (
	AccelBias  = []Term{ABX, ABY, ABZ}
	AccelScale = []Term{ASX, ASY, ASZ}
	MagBias    = []Term{MBX, MBY, MBZ}
	MagScale   = []Term{MSX, MSY, MSZ}

	Gravity        = concat(AccelBias, AccelScale)
	Field          = concat(MagBias, MagScale, []Term{MFI})
	Dip            = concat(MagBias, MagScale, AccelBias, []Term{MDI})
	Inclination    = AccelBias
	HorizontalRate = []Term{GBX, GBY, GSX, GSY, M, Q, GRX, GRY}
	Azimuth        = concat(AccelBias, AccelScale, MagBias, MagScale)
	Misalignment   = []Term{MX, MY, MR}
)

// Depth returns the depth terms of one measurement system ("PIPE" or "WIRE").
// The system-specific name is preferred over the shared one.
func Depth(system string) []Term {
	return []Term{
		term("DREF-"+system, "m", []string{"DREF-" + system, "DREF"}, src(dep, weighting.Reference, weighting.X)),
		term("DSF-"+system, "-", []string{"DSF-" + system, "DSF"}, src(dep, weighting.Scale, weighting.X)),
		term("DST-"+system, "1/m", []string{"DST-" + system, "DST"}, src(dep, weighting.Stretch, weighting.X)),
	}
}

func concat(sets ...[]Term) []Term {
	var out []Term
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

// Coefficient sums the term's source coefficients for quantity q at geo.
func (t Term) Coefficient(q weighting.Quantity, geo weighting.Geometry) float64 {
	var c float64
	for _, s := range t.Sources {
		c += weighting.Coefficient(q, geo, s)
	}
	return c
}

// Source binds the term to propagation with a fixed weight.
func (t Term) Source(weight float64) propagation.Source {
	return propagation.Source{Group: t.Name, Names: t.Names, Unit: t.Unit, Weight: weight}
}

// Sources evaluates each term's weighting function at geo, multiplied by
// factor, and returns propagation sources.
func Sources(q weighting.Quantity, geo weighting.Geometry, terms []Term, factor float64) []propagation.Source {
	out := make([]propagation.Source, len(terms))
	for i, t := range terms {
		out[i] = t.Source(factor * t.Coefficient(q, geo))
	}
	return out
}

// Magnitude returns the term's IPM magnitude in its working unit.
func (t Term) Magnitude(m propagation.TermSource) (float64, bool) {
	res := propagation.Propagate(m, []propagation.Source{t.Source(1)}, 1)
	if res.Resolved() == 0 {
		return 0, false
	}
	return res.Terms[0].Magnitude, true
}

// Tolerance returns k times the term's magnitude, or the propagation floor
// when the term is absent.
func (t Term) Tolerance(m propagation.TermSource, k float64) propagation.Result {
	return propagation.Propagate(m, []propagation.Source{t.Source(1)}, k)
}

// Lookup finds a catalogued term by parameter name.
func Lookup(name string) (Term, bool) {
	n := ipm.NormalizeName(name)
	for _, t := range concat(Gravity, Field, Dip, HorizontalRate, Misalignment, Depth("PIPE"), Depth("WIRE")) {
		if t.Name == n {
			return t, true
		}
	}
	return Term{}, false
}

// Missing lists the terms none of whose candidate names exist in m.
func Missing(m *ipm.Model, terms []Term) []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range terms {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		found := false
		for _, n := range t.Names {
			if m.Has(n) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, t.Name)
		}
	}
	return out
}
