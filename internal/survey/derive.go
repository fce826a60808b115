package survey

import (
	"math"

	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
)

// EarthRate is the Earth's rotation rate in deg/hr.
const EarthRate = 15.041067

func deg(rad float64) float64 { return unit.Angle(rad).Deg() }
func rad(d float64) float64   { return unit.AngleFromDeg(d).Rad() }

// Rad converts degrees to radians.
func Rad(d float64) float64 { return rad(d) }

// Deg converts radians to degrees.
func Deg(r float64) float64 { return deg(r) }

func clamp(v float64) float64 { return math.Max(-1, math.Min(1, v)) }

// Wrap360 maps an angle in degrees onto [0, 360).
func Wrap360(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// AngleDiff returns the signed smallest difference a-b in (-180, 180].
func AngleDiff(a, b float64) float64 {
	d := Wrap360(a - b)
	if d > 180 {
		d -= 360
	}
	return d
}

// Inclination derives inclination in degrees from a gravity vector.
func Inclination(g r3.Vec) float64 {
	return deg(math.Acos(clamp(g.Z / r3.Norm(g))))
}

// Toolface derives gravity toolface in degrees. ok is false when the tool axis
// is vertical and toolface is undefined.
func Toolface(g r3.Vec) (tf float64, ok bool) {
	if math.Hypot(g.X, g.Y) <= 1e-12*r3.Norm(g) {
		return 0, false
	}
	return Wrap360(deg(math.Atan2(-g.X, g.Y))), true
}

// Azimuth derives magnetic azimuth in degrees from gravity and magnetic
// vectors. ok is false when the horizontal projection vanishes.
func Azimuth(g, b r3.Vec) (az float64, ok bool) {
	num := (g.X*b.Y - g.Y*b.X) * r3.Norm(g)
	den := b.Z*(g.X*g.X+g.Y*g.Y) - g.Z*(g.X*b.X+g.Y*b.Y)
	if math.Hypot(num, den) <= 1e-12*r3.Norm(g)*r3.Norm(b)*r3.Norm(g) {
		return 0, false
	}
	return Wrap360(deg(math.Atan2(num, den))), true
}

// Dip derives magnetic dip in degrees from gravity and magnetic vectors.
func Dip(g, b r3.Vec) float64 {
	return deg(math.Asin(clamp(r3.Dot(g, b) / (r3.Norm(g) * r3.Norm(b)))))
}

// Orientation is the resolved survey orientation of a station in degrees.
type Orientation struct {
	Inclination float64  `json:"inclination" yaml:"inclination"`
	Azimuth     *float64 `json:"azimuth,omitempty" yaml:"azimuth,omitempty"`
	Toolface    *float64 `json:"toolface,omitempty" yaml:"toolface,omitempty"`
}

// Orient resolves inclination, azimuth and toolface, preferring values derived
// from raw channels over caller-provided angles.
func (s Station) Orient() (Orientation, error) {
	var o Orientation
	g, gErr := s.Gravity()
	switch {
	case gErr == nil:
		o.Inclination = Inclination(g)
		if tf, ok := Toolface(g); ok {
			o.Toolface = Float(tf)
		}
	case s.Inclination != nil:
		o.Inclination = *s.Inclination
	default:
		return o, &apperr.ValidationError{Field: "inclination", Reason: "neither accelerometer nor inclination supplied"}
	}
	if o.Toolface == nil && s.Toolface != nil {
		o.Toolface = Float(Wrap360(*s.Toolface))
	}

	if gErr == nil {
		if b, err := s.Field(); err == nil {
			if az, ok := Azimuth(g, b); ok {
				o.Azimuth = Float(az)
			}
		}
	}
	if o.Azimuth == nil && s.Azimuth != nil {
		o.Azimuth = Float(Wrap360(*s.Azimuth))
	}
	return o, nil
}
