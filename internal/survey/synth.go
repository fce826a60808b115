package survey

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Sensor errors injected into synthetic readings: measured = true*(1+scale)+bias.
type SensorErrors struct {
	AccelBias  Vector3 `json:"accel_bias" yaml:"accel_bias"`
	AccelScale Vector3 `json:"accel_scale" yaml:"accel_scale"`
	MagBias    Vector3 `json:"mag_bias" yaml:"mag_bias"`
	MagScale   Vector3 `json:"mag_scale" yaml:"mag_scale"`
	GyroBias   Gyro    `json:"gyro_bias" yaml:"gyro_bias"`
	GyroScale  Gyro    `json:"gyro_scale" yaml:"gyro_scale"`
}

// Synthetic describes an ideal station to generate.
type Synthetic struct {
	Depth       float64
	Inclination float64
	// Azimuth is true azimuth in degrees.
	Azimuth  float64
	Toolface float64
	// Gravity in g; zero means 1.
	Gravity  float64
	Field    *GeomagneticField
	Latitude *float64
	Errors   SensorErrors
}

// Synthesize generates raw channels consistent with the requested orientation
// and reference fields, then applies the injected sensor errors.
func Synthesize(o Synthetic) Station {
	gMag := o.Gravity
	if gMag == 0 {
		gMag = 1
	}
	st := Station{
		Depth:           o.Depth,
		Inclination:     Float(o.Inclination),
		Azimuth:         Float(Wrap360(o.Azimuth)),
		Toolface:        Float(Wrap360(o.Toolface)),
		ExpectedGravity: Float(gMag),
		Latitude:        cloneFloat(o.Latitude),
	}

	x, y, z := ToolAxes(o.Inclination, o.Azimuth, o.Toolface)
	gNED := r3.Vec{Z: gMag}
	g := project(gNED, x, y, z)
	st.Accelerometer = distort(g, o.Errors.AccelBias, o.Errors.AccelScale)

	if o.Field != nil {
		f := *o.Field
		f.Declination = cloneFloat(o.Field.Declination)
		st.ExpectedField = &f

		magAz := o.Azimuth
		if f.Declination != nil {
			magAz -= *f.Declination
		}
		mx, my, mz := ToolAxes(o.Inclination, magAz, o.Toolface)
		cd, sd := cosSin(f.Dip)
		bNED := r3.Vec{X: f.TotalField * cd, Z: f.TotalField * sd}
		st.Magnetometer = distort(project(bNED, mx, my, mz), o.Errors.MagBias, o.Errors.MagScale)
	}

	if o.Latitude != nil {
		w := EarthRateNED(*o.Latitude)
		st.Gyro = &Gyro{
			X: r3.Dot(w, x)*(1+o.Errors.GyroScale.X) + o.Errors.GyroBias.X,
			Y: r3.Dot(w, y)*(1+o.Errors.GyroScale.Y) + o.Errors.GyroBias.Y,
		}
		st.ExpectedHorizontalRate = Float(HorizontalEarthRate(*o.Latitude))
	}
	return st
}

func project(v, x, y, z r3.Vec) r3.Vec {
	return r3.Vec{X: r3.Dot(v, x), Y: r3.Dot(v, y), Z: r3.Dot(v, z)}
}

func distort(v r3.Vec, bias, scale Vector3) *Vector3 {
	return &Vector3{
		X: v.X*(1+scale.X) + bias.X,
		Y: v.Y*(1+scale.Y) + bias.Y,
		Z: v.Z*(1+scale.Z) + bias.Z,
	}
}
