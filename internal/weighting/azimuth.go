package weighting

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/idlab-discover/surveyqc-cli/internal/survey"
)

// azimuthStep is the central-difference step relative to the perturbed
// vector's magnitude.
const azimuthStep = 1e-6

// azimuth returns the magnetic azimuth partial in radians. It is evaluated
// by central differences of survey.Azimuth, so it is zero wherever azimuth
// is undefined.
func azimuth(geo Geometry, s Source) float64 {
	if s.Kind != Bias && s.Kind != Scale {
		return 0
	}
	var v r3.Vec
	switch s.Sensor {
	case Accelerometer:
		v = geo.G
	case Magnetometer:
		v = geo.B
	default:
		return 0
	}
	if r3.Norm(geo.G) == 0 || r3.Norm(geo.B) == 0 {
		return 0
	}

	h := azimuthStep * r3.Norm(v)
	hi, okHi := shiftedAzimuth(geo, s, h)
	lo, okLo := shiftedAzimuth(geo, s, -h)
	if !okHi || !okLo {
		return 0
	}
	d := survey.Rad(survey.AngleDiff(hi, lo)) / (2 * h)
	if s.Kind == Scale {
		d *= comp(v, s.Axis)
	}
	return d
}

func shiftedAzimuth(geo Geometry, s Source, h float64) (float64, bool) {
	g, b := geo.G, geo.B
	if s.Sensor == Accelerometer {
		g = shift(g, s.Axis, h)
	} else {
		b = shift(b, s.Axis, h)
	}
	return survey.Azimuth(g, b)
}

func shift(v r3.Vec, a Axis, h float64) r3.Vec {
	switch a {
	case X:
		v.X += h
	case Y:
		v.Y += h
	default:
		v.Z += h
	}
	return v
}
