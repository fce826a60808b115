package survey

import "math"

// WGS84 normal gravity constants (Somigliana form).
const (
	wgs84Equatorial = 9.7803267714
	wgs84K          = 0.00193185138639
	wgs84E2         = 0.00669437999013

	// freeAirGradient is in m/s² per km.
	freeAirGradient = 0.3086
	standardGravity = 9.80665
)

// NormalGravity returns the WGS84 normal gravity in g at the given latitude in
// degrees, reduced by the free-air gradient for depth in metres.
func NormalGravity(lat, depth float64) float64 {
	s2 := math.Pow(math.Sin(rad(lat)), 2)
	g := wgs84Equatorial * (1 + wgs84K*s2) / math.Sqrt(1-wgs84E2*s2)
	return (g - freeAirGradient*depth/1000) / standardGravity
}

// Reference source labels.
const (
	SourceExpected = "expected"
	SourceNormal   = "wgs84_normal"
	SourceNominal  = "nominal"
)

// ReferenceGravity returns the gravity the station should have measured in g
// and where that value came from: the caller's expected value, WGS84 normal
// gravity at the station latitude, or nominal 1 g.
func (s Station) ReferenceGravity() (float64, string) {
	if s.ExpectedGravity != nil {
		return *s.ExpectedGravity, SourceExpected
	}
	if s.Latitude != nil {
		depth := s.Depth
		if s.TVD != nil {
			depth = *s.TVD
		}
		return NormalGravity(*s.Latitude, depth), SourceNormal
	}
	return 1, SourceNominal
}
