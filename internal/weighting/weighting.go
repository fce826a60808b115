// Package weighting evaluates weighting functions: the partial derivative of a
// measured quantity with respect to one error source, at one station's
// geometry. Every function here is pure.
package weighting

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Quantity is the measured quantity being differentiated.
type Quantity int

const (
	GravityMagnitude Quantity = iota
	TotalField
	Dip
	Inclination
	HorizontalRate
	DepthDifference
	Azimuth
)

func (q Quantity) String() string {
	switch q {
	case GravityMagnitude:
		return "gravity"
	case TotalField:
		return "total_field"
	case Dip:
		return "dip"
	case Inclination:
		return "inclination"
	case HorizontalRate:
		return "horizontal_rate"
	case DepthDifference:
		return "depth_difference"
	case Azimuth:
		return "azimuth"
	}
	return "unknown"
}

// Sensor is the instrument an error source lives in.
type Sensor int

const (
	Accelerometer Sensor = iota
	Magnetometer
	Gyro
	Depth
)

// Kind is the physical effect of an error source.
type Kind int

const (
	Bias Kind = iota
	Scale
	Reference
	MassUnbalance
	Quadrature
	Stretch
)

// Axis selects a sensor axis.
type Axis int

const (
	X Axis = iota
	Y
	Z
)

// Source identifies an error source by sensor, kind and axis.
type Source struct {
	Sensor Sensor
	Kind   Kind
	Axis   Axis
}

// Geometry is the station state weighting functions are evaluated at.
// Accelerations are in g, field in nT, gyro rates in deg/hr, depths in m.
type Geometry struct {
	G    r3.Vec
	B    r3.Vec
	Rate [2]float64

	// North and down components of the tool x and y axes.
	XN, YN float64
	XD, YD float64

	Depth float64
	TVD   float64
}

// Coefficient returns ∂quantity/∂source at geo. Angular quantities are
// differentiated in radians. Sources that do not affect the quantity yield 0.
func Coefficient(q Quantity, geo Geometry, s Source) float64 {
	switch q {
	case GravityMagnitude:
		return gravity(geo, s)
	case TotalField:
		return field(geo, s)
	case Dip:
		return dip(geo, s)
	case Inclination:
		return inclination(geo, s)
	case HorizontalRate:
		return horizontalRate(geo, s)
	case DepthDifference:
		return depth(geo, s)
	case Azimuth:
		return azimuth(geo, s)
	}
	return 0
}

func comp(v r3.Vec, a Axis) float64 {
	switch a {
	case X:
		return v.X
	case Y:
		return v.Y
	}
	return v.Z
}

func gravity(geo Geometry, s Source) float64 {
	if s.Sensor != Accelerometer {
		return 0
	}
	g := r3.Norm(geo.G)
	c := comp(geo.G, s.Axis)
	switch s.Kind {
	case Bias:
		return c / g
	case Scale:
		return c * c / g
	case Reference:
		return 1
	}
	return 0
}

func field(geo Geometry, s Source) float64 {
	if s.Sensor != Magnetometer {
		return 0
	}
	b := r3.Norm(geo.B)
	c := comp(geo.B, s.Axis)
	switch s.Kind {
	case Bias:
		return c / b
	case Scale:
		return c * c / b
	case Reference:
		return 1
	}
	return 0
}

func dip(geo Geometry, s Source) float64 {
	g, b := r3.Norm(geo.G), r3.Norm(geo.B)
	sinD := r3.Dot(geo.G, geo.B) / (g * b)
	cosD := math.Sqrt(math.Max(1-sinD*sinD, 1e-12))

	switch s.Sensor {
	case Magnetometer:
		if s.Kind == Reference {
			return 1
		}
		d := (comp(geo.G, s.Axis)/(g*b) - sinD*comp(geo.B, s.Axis)/(b*b)) / cosD
		switch s.Kind {
		case Bias:
			return d
		case Scale:
			return d * comp(geo.B, s.Axis)
		}
	case Accelerometer:
		d := (comp(geo.B, s.Axis)/(g*b) - sinD*comp(geo.G, s.Axis)/(g*g)) / cosD
		switch s.Kind {
		case Bias:
			return d
		case Scale:
			return d * comp(geo.G, s.Axis)
		}
	}
	return 0
}

func inclination(geo Geometry, s Source) float64 {
	if s.Sensor != Accelerometer {
		return 0
	}
	g2 := r3.Dot(geo.G, geo.G)
	rho := math.Hypot(geo.G.X, geo.G.Y)
	if rho == 0 {
		return 0
	}
	var d float64
	switch s.Axis {
	case X:
		d = geo.G.X * geo.G.Z / (g2 * rho)
	case Y:
		d = geo.G.Y * geo.G.Z / (g2 * rho)
	default:
		d = -rho / g2
	}
	switch s.Kind {
	case Bias:
		return d
	case Scale:
		return d * comp(geo.G, s.Axis)
	}
	return 0
}

// Observability is the denominator of the horizontal earth-rate projection.
// Small values mean the gyro axes barely see the horizontal rate.
func (geo Geometry) Observability() float64 {
	return geo.XN*geo.XN + geo.YN*geo.YN
}

// ProjectedHorizontalRate estimates the horizontal earth rate in deg/hr from
// the two gyro readings, given the vertical rate component.
func (geo Geometry) ProjectedHorizontalRate(vertical float64) float64 {
	d := geo.Observability()
	return ((geo.Rate[0]-vertical*geo.XD)*geo.XN + (geo.Rate[1]-vertical*geo.YD)*geo.YN) / d
}

func horizontalRate(geo Geometry, s Source) float64 {
	if s.Sensor != Gyro {
		return 0
	}
	d := geo.Observability()
	wx, wy := geo.XN/d, geo.YN/d
	switch s.Kind {
	case Bias:
		if s.Axis == X {
			return wx
		}
		return wy
	case Scale:
		if s.Axis == X {
			return wx * geo.Rate[0]
		}
		return wy * geo.Rate[1]
	case MassUnbalance:
		if s.Axis == X {
			return wx * geo.G.Z
		}
		return wy * geo.G.Z
	case Quadrature:
		if s.Axis == X {
			return wx * geo.G.X * geo.G.Z
		}
		return wy * geo.G.Y * geo.G.Z
	case Reference:
		return 1
	}
	return 0
}

func depth(geo Geometry, s Source) float64 {
	if s.Sensor != Depth {
		return 0
	}
	switch s.Kind {
	case Reference:
		return 1
	case Scale:
		return geo.TVD
	case Stretch:
		return geo.TVD * geo.Depth
	}
	return 0
}
