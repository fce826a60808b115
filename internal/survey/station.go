// Package survey holds the survey station record and the sensor-frame math
// shared by every QC test: angle derivation from raw channels, normal gravity,
// geometry diagnostics and synthetic station generation.
//
// Boundary units: angles in degrees, accelerations in g, magnetic field in nT,
// angular rate in deg/hr, depth in metres.
package survey

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
)

// Vector3 is a three axis sensor reading.
type Vector3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Vec converts to a gonum vector.
func (v Vector3) Vec() r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// FromVec converts from a gonum vector.
func FromVec(v r3.Vec) Vector3 { return Vector3{X: v.X, Y: v.Y, Z: v.Z} }

// Gyro is a two axis gyro reading in deg/hr.
type Gyro struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// GeomagneticField is the expected field at the station.
type GeomagneticField struct {
	TotalField  float64  `json:"total_field" yaml:"total_field"`
	Dip         float64  `json:"dip" yaml:"dip"`
	Declination *float64 `json:"declination,omitempty" yaml:"declination,omitempty"`
}

// ErrorModel carries 1σ angular uncertainties, in degrees, stated by the
// survey provider. Absent values are derived from the IPM.
type ErrorModel struct {
	InclinationStd *float64 `json:"inclination_std,omitempty" yaml:"inclination_std,omitempty"`
	AzimuthStd     *float64 `json:"azimuth_std,omitempty" yaml:"azimuth_std,omitempty"`
}

// Station is one survey station. Optional quantities are pointers so that an
// absent value is distinguishable from zero.
type Station struct {
	ID    string  `json:"id,omitempty" yaml:"id,omitempty"`
	Depth float64 `json:"depth" yaml:"depth"`

	Inclination *float64 `json:"inclination,omitempty" yaml:"inclination,omitempty"`
	Azimuth     *float64 `json:"azimuth,omitempty" yaml:"azimuth,omitempty"`
	Toolface    *float64 `json:"toolface,omitempty" yaml:"toolface,omitempty"`

	Accelerometer *Vector3 `json:"accelerometer,omitempty" yaml:"accelerometer,omitempty"`
	Magnetometer  *Vector3 `json:"magnetometer,omitempty" yaml:"magnetometer,omitempty"`
	Gyro          *Gyro    `json:"gyro,omitempty" yaml:"gyro,omitempty"`

	ExpectedGravity        *float64          `json:"expected_gravity,omitempty" yaml:"expected_gravity,omitempty"`
	ExpectedField          *GeomagneticField `json:"expected_geomagnetic_field,omitempty" yaml:"expected_geomagnetic_field,omitempty"`
	ExpectedHorizontalRate *float64          `json:"expected_horizontal_rate,omitempty" yaml:"expected_horizontal_rate,omitempty"`
	Latitude               *float64          `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude              *float64          `json:"longitude,omitempty" yaml:"longitude,omitempty"`

	PipeDepth     *float64 `json:"pipe_depth,omitempty" yaml:"pipe_depth,omitempty"`
	WirelineDepth *float64 `json:"wireline_depth,omitempty" yaml:"wireline_depth,omitempty"`
	TVD           *float64 `json:"tvd,omitempty" yaml:"tvd,omitempty"`

	ErrorModel *ErrorModel `json:"error_model,omitempty" yaml:"error_model,omitempty"`

	AzimuthReference string `json:"azimuth_reference,omitempty" yaml:"azimuth_reference,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Label identifies the station in logs and reports.
func (s Station) Label() string {
	if s.ID != "" {
		return s.ID
	}
	return strconv.FormatFloat(s.Depth, 'f', -1, 64)
}

// Clone returns a deep copy.
func (s Station) Clone() Station {
	c := s
	c.Inclination = cloneFloat(s.Inclination)
	c.Azimuth = cloneFloat(s.Azimuth)
	c.Toolface = cloneFloat(s.Toolface)
	if s.Accelerometer != nil {
		v := *s.Accelerometer
		c.Accelerometer = &v
	}
	if s.Magnetometer != nil {
		v := *s.Magnetometer
		c.Magnetometer = &v
	}
	if s.Gyro != nil {
		v := *s.Gyro
		c.Gyro = &v
	}
	c.ExpectedGravity = cloneFloat(s.ExpectedGravity)
	if s.ExpectedField != nil {
		f := *s.ExpectedField
		f.Declination = cloneFloat(s.ExpectedField.Declination)
		c.ExpectedField = &f
	}
	c.ExpectedHorizontalRate = cloneFloat(s.ExpectedHorizontalRate)
	c.Latitude = cloneFloat(s.Latitude)
	c.Longitude = cloneFloat(s.Longitude)
	c.PipeDepth = cloneFloat(s.PipeDepth)
	c.WirelineDepth = cloneFloat(s.WirelineDepth)
	c.TVD = cloneFloat(s.TVD)
	if s.ErrorModel != nil {
		c.ErrorModel = &ErrorModel{
			InclinationStd: cloneFloat(s.ErrorModel.InclinationStd),
			AzimuthStd:     cloneFloat(s.ErrorModel.AzimuthStd),
		}
	}
	return c
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Gravity returns the accelerometer vector or a ValidationError.
func (s Station) Gravity() (r3.Vec, error) {
	if s.Accelerometer == nil {
		return r3.Vec{}, apperr.Missing("accelerometer")
	}
	g := s.Accelerometer.Vec()
	if err := checkVector("accelerometer", g); err != nil {
		return r3.Vec{}, err
	}
	return g, nil
}

// Field returns the magnetometer vector or a ValidationError.
func (s Station) Field() (r3.Vec, error) {
	if s.Magnetometer == nil {
		return r3.Vec{}, apperr.Missing("magnetometer")
	}
	b := s.Magnetometer.Vec()
	if err := checkVector("magnetometer", b); err != nil {
		return r3.Vec{}, err
	}
	return b, nil
}

func checkVector(field string, v r3.Vec) error {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return &apperr.ValidationError{Field: field, Reason: "non-finite component"}
		}
	}
	if r3.Norm(v) == 0 {
		return &apperr.ValidationError{Field: field, Reason: "zero magnitude"}
	}
	return nil
}

// RequireFloat returns *p or a ValidationError naming field.
func RequireFloat(field string, p *float64) (float64, error) {
	if p == nil {
		return 0, apperr.Missing(field)
	}
	if math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, &apperr.ValidationError{Field: field, Reason: "not a finite number"}
	}
	return *p, nil
}

// CheckLatitude validates a latitude in degrees.
func CheckLatitude(lat float64) error {
	if lat < -90 || lat > 90 {
		return &apperr.ValidationError{Field: "latitude", Reason: fmt.Sprintf("%.3f is outside [-90, 90]", lat)}
	}
	return nil
}
