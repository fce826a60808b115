// Package correction removes estimated sensor errors from raw survey channels
// and recomputes the survey angles.
package correction

import (
	"fmt"
	"math"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
)

// Parameters are per-axis sensor errors in boundary units: accelerometer
// bias in g, magnetometer bias in nT, gyro bias in deg/hr, scale factors
// dimensionless. The zero value corrects nothing.
type Parameters struct {
	AccelBias  survey.Vector3 `json:"accel_bias" yaml:"accel_bias"`
	AccelScale survey.Vector3 `json:"accel_scale" yaml:"accel_scale"`
	MagBias    survey.Vector3 `json:"mag_bias" yaml:"mag_bias"`
	MagScale   survey.Vector3 `json:"mag_scale" yaml:"mag_scale"`
	GyroBias   survey.Gyro    `json:"gyro_bias" yaml:"gyro_bias"`
	GyroScale  survey.Gyro    `json:"gyro_scale" yaml:"gyro_scale"`
}

// Azimuth references written to corrected stations.
const (
	ReferenceTrue     = "true"
	ReferenceMagnetic = "magnetic"
)

// Set assigns the parameter named by an IPM term name (ABX, MSZ, GBY, ...).
func (p *Parameters) Set(name string, v float64) error {
	var slot *float64
	switch ipm.NormalizeName(name) {
	case "ABX":
		slot = &p.AccelBias.X
	case "ABY":
		slot = &p.AccelBias.Y
	case "ABZ":
		slot = &p.AccelBias.Z
	case "ASX":
		slot = &p.AccelScale.X
	case "ASY":
		slot = &p.AccelScale.Y
	case "ASZ":
		slot = &p.AccelScale.Z
	case "MBX":
		slot = &p.MagBias.X
	case "MBY":
		slot = &p.MagBias.Y
	case "MBZ":
		slot = &p.MagBias.Z
	case "MSX":
		slot = &p.MagScale.X
	case "MSY":
		slot = &p.MagScale.Y
	case "MSZ":
		slot = &p.MagScale.Z
	case "GBX":
		slot = &p.GyroBias.X
	case "GBY":
		slot = &p.GyroBias.Y
	case "GSX":
		slot = &p.GyroScale.X
	case "GSY":
		slot = &p.GyroScale.Y
	default:
		return fmt.Errorf("correction: no channel for parameter %q", name)
	}
	*slot = v
	return nil
}

// FromEstimates builds Parameters from parallel name/value slices. Names
// without a channel are ignored.
func FromEstimates(names []string, values []float64) Parameters {
	var p Parameters
	for i, n := range names {
		if i < len(values) {
			_ = p.Set(n, values[i])
		}
	}
	return p
}

// Apply returns a corrected copy of st: each channel becomes
// (raw - bias) / (1 + scale), and inclination, toolface and azimuth are
// recomputed from the corrected channels. st is not modified.
func Apply(st survey.Station, p Parameters) (survey.Station, error) {
	out := st.Clone()
	if out.Accelerometer != nil {
		v, err := undistort("accelerometer", *out.Accelerometer, p.AccelBias, p.AccelScale)
		if err != nil {
			return st, err
		}
		out.Accelerometer = &v
	}
	if out.Magnetometer != nil {
		v, err := undistort("magnetometer", *out.Magnetometer, p.MagBias, p.MagScale)
		if err != nil {
			return st, err
		}
		out.Magnetometer = &v
	}
	if out.Gyro != nil {
		x, err := unscale("gyro.x", out.Gyro.X, p.GyroBias.X, p.GyroScale.X)
		if err != nil {
			return st, err
		}
		y, err := unscale("gyro.y", out.Gyro.Y, p.GyroBias.Y, p.GyroScale.Y)
		if err != nil {
			return st, err
		}
		out.Gyro = &survey.Gyro{X: x, Y: y}
	}

	g, err := out.Gravity()
	if err != nil {
		return out, nil
	}
	out.Inclination = survey.Float(survey.Inclination(g))
	if tf, ok := survey.Toolface(g); ok {
		out.Toolface = survey.Float(tf)
	}
	b, err := out.Field()
	if err != nil {
		return out, nil
	}
	if az, ok := survey.Azimuth(g, b); ok {
		out.AzimuthReference = ReferenceMagnetic
		if out.ExpectedField != nil && out.ExpectedField.Declination != nil {
			az = survey.Wrap360(az + *out.ExpectedField.Declination)
			out.AzimuthReference = ReferenceTrue
		}
		out.Azimuth = survey.Float(az)
	}
	return out, nil
}

func undistort(field string, raw, bias, scale survey.Vector3) (survey.Vector3, error) {
	x, err := unscale(field+".x", raw.X, bias.X, scale.X)
	if err != nil {
		return raw, err
	}
	y, err := unscale(field+".y", raw.Y, bias.Y, scale.Y)
	if err != nil {
		return raw, err
	}
	z, err := unscale(field+".z", raw.Z, bias.Z, scale.Z)
	if err != nil {
		return raw, err
	}
	return survey.Vector3{X: x, Y: y, Z: z}, nil
}

func unscale(field string, raw, bias, scale float64) (float64, error) {
	d := 1 + scale
	if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, &apperr.ValidationError{Field: field, Reason: fmt.Sprintf("scale factor %g cannot be inverted", scale)}
	}
	return (raw - bias) / d, nil
}
