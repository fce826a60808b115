package survey

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ToolAxes returns the tool x, y and z axes expressed in the local
// north-east-down frame for the given inclination, azimuth and toolface in
// degrees. z points down-hole; toolface is measured from the high side.
func ToolAxes(inc, az, tf float64) (x, y, z r3.Vec) {
	si, ci := math.Sincos(rad(inc))
	sa, ca := math.Sincos(rad(az))
	st, ct := math.Sincos(rad(tf))

	z = r3.Vec{X: si * ca, Y: si * sa, Z: ci}
	high := r3.Vec{X: ci * ca, Y: ci * sa, Z: -si}
	right := r3.Vec{X: -sa, Y: ca, Z: 0}

	x = r3.Add(r3.Scale(st, high), r3.Scale(ct, right))
	y = r3.Add(r3.Scale(-ct, high), r3.Scale(st, right))
	return x, y, z
}

// EarthRateNED is the Earth's rotation vector in deg/hr at the given latitude,
// in the north-east-down frame.
func EarthRateNED(lat float64) r3.Vec {
	s, c := math.Sincos(rad(lat))
	return r3.Vec{X: EarthRate * c, Y: 0, Z: -EarthRate * s}
}

// HorizontalEarthRate is the horizontal component of Earth rate in deg/hr.
func HorizontalEarthRate(lat float64) float64 {
	return EarthRate * math.Cos(rad(lat))
}

// TrueAzimuth returns the caller-provided azimuth or, failing that, the
// sensor-derived magnetic azimuth corrected by declination.
func (s Station) TrueAzimuth() (float64, bool) {
	if s.Azimuth != nil {
		return Wrap360(*s.Azimuth), true
	}
	g, err := s.Gravity()
	if err != nil {
		return 0, false
	}
	b, err := s.Field()
	if err != nil {
		return 0, false
	}
	az, ok := Azimuth(g, b)
	if !ok {
		return 0, false
	}
	if s.ExpectedField != nil && s.ExpectedField.Declination != nil {
		az += *s.ExpectedField.Declination
	}
	return Wrap360(az), true
}

func cosSin(d float64) (c, s float64) {
	s, c = math.Sincos(rad(d))
	return c, s
}
