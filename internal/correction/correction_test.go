package correction

import (
	"errors"
	"math"
	"testing"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
)

func synth(errs survey.SensorErrors, decl *float64) survey.Station {
	lat := 52.0
	return survey.Synthesize(survey.Synthetic{
		Depth:       1500,
		Inclination: 37,
		Azimuth:     128,
		Toolface:    64,
		Field:       &survey.GeomagneticField{TotalField: 50000, Dip: 66, Declination: decl},
		Latitude:    &lat,
		Errors:      errs,
	})
}

func TestApply_RemovesInjectedErrors(t *testing.T) {
	errs := survey.SensorErrors{
		AccelBias:  survey.Vector3{X: 0.002, Y: -0.001, Z: 0.0015},
		AccelScale: survey.Vector3{X: 0.001, Y: -0.0005},
		MagBias:    survey.Vector3{X: 150, Y: -80, Z: 60},
		MagScale:   survey.Vector3{Z: 0.002},
		GyroBias:   survey.Gyro{X: 0.3, Y: -0.2},
		GyroScale:  survey.Gyro{X: 0.001},
	}
	clean := synth(survey.SensorErrors{}, survey.Float(3))
	dirty := synth(errs, survey.Float(3))

	p := Parameters{
		AccelBias: errs.AccelBias, AccelScale: errs.AccelScale,
		MagBias: errs.MagBias, MagScale: errs.MagScale,
		GyroBias: errs.GyroBias, GyroScale: errs.GyroScale,
	}
	got, err := Apply(dirty, p)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	pairs := []struct {
		name      string
		got, want float64
	}{
		{"gx", got.Accelerometer.X, clean.Accelerometer.X},
		{"gy", got.Accelerometer.Y, clean.Accelerometer.Y},
		{"gz", got.Accelerometer.Z, clean.Accelerometer.Z},
		{"bx", got.Magnetometer.X, clean.Magnetometer.X},
		{"by", got.Magnetometer.Y, clean.Magnetometer.Y},
		{"bz", got.Magnetometer.Z, clean.Magnetometer.Z},
		{"wx", got.Gyro.X, clean.Gyro.X},
		{"wy", got.Gyro.Y, clean.Gyro.Y},
		{"inc", *got.Inclination, 37},
		{"tf", *got.Toolface, 64},
		{"az", *got.Azimuth, 128},
	}
	for _, p := range pairs {
		if math.Abs(p.got-p.want) > 1e-9 {
			t.Errorf("%s = %.12f, want %.12f", p.name, p.got, p.want)
		}
	}
	if got.AzimuthReference != ReferenceTrue {
		t.Errorf("AzimuthReference = %q", got.AzimuthReference)
	}
	if dirty.Accelerometer.X == got.Accelerometer.X {
		t.Fatalf("input station was modified")
	}
}

func TestApply_MagneticAzimuthWithoutDeclination(t *testing.T) {
	got, err := Apply(synth(survey.SensorErrors{}, nil), Parameters{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got.AzimuthReference != ReferenceMagnetic || math.Abs(*got.Azimuth-128) > 1e-9 {
		t.Fatalf("azimuth %v (%s)", *got.Azimuth, got.AzimuthReference)
	}
}

func TestApply_SingularScale(t *testing.T) {
	p := Parameters{AccelScale: survey.Vector3{Y: -1}}
	_, err := Apply(synth(survey.SensorErrors{}, nil), p)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "accelerometer.y" {
		t.Fatalf("expected validation error on accelerometer.y, got %v", err)
	}
}

func TestFromEstimates(t *testing.T) {
	p := FromEstimates([]string{"ABX", "msz", "GBY", "MX"}, []float64{0.1, 0.2, 0.3, 0.4})
	if p.AccelBias.X != 0.1 || p.MagScale.Z != 0.2 || p.GyroBias.Y != 0.3 {
		t.Fatalf("FromEstimates = %+v", p)
	}
	var q Parameters
	if err := q.Set("MX", 1); err == nil {
		t.Fatalf("expected error for a parameter without channel")
	}
}
