package weighting

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/idlab-discover/surveyqc-cli/internal/survey"
)

// At builds a Geometry from the raw channels of a station.
func At(st survey.Station) Geometry {
	var geo Geometry
	if st.Accelerometer != nil {
		geo.G = st.Accelerometer.Vec()
	}
	if st.Magnetometer != nil {
		geo.B = st.Magnetometer.Vec()
	}
	if st.Gyro != nil {
		geo.Rate = [2]float64{st.Gyro.X, st.Gyro.Y}
	}
	geo.Depth = st.Depth
	if st.TVD != nil {
		geo.TVD = *st.TVD
	}
	return geo
}

// WithAxes sets the tool axis projections for the given orientation in
// degrees (azimuth relative to true north). When no accelerometer reading is
// present the gravity vector is taken from the orientation.
func (geo Geometry) WithAxes(inc, az, tf float64) Geometry {
	x, y, z := survey.ToolAxes(inc, az, tf)
	geo.XN, geo.YN = x.X, y.X
	geo.XD, geo.YD = x.Z, y.Z
	if r3.Norm(geo.G) == 0 {
		geo.G = r3.Vec{X: x.Z, Y: y.Z, Z: z.Z}
	}
	return geo
}
