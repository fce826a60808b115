// Package recommend picks the QC tests that suit a survey stage and sensor.
package recommend

import (
	"strings"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
)

// Survey stages.
const (
	StageStation = "station"
	StageSection = "section"
)

// Sensor packages.
const (
	SensorMagnetic = "magnetic"
	SensorGyro     = "gyro"
)

// Request describes the data available for QC.
type Request struct {
	Stage  string
	Sensor string
	// DualDepth is set when both pipe and wireline depths were recorded.
	DualDepth bool
	// Rotation is set when the data includes a rotation shot set.
	Rotation bool
	// Estimate adds the joint estimator to magnetic section QC.
	Estimate bool
	// Independent is set when a second, independent survey of the hole exists.
	Independent bool
	// InOut is set when both an in-run and an out-run were recorded.
	InOut bool
}

// Recommendation is an ordered list of test ids with a reason for each.
type Recommendation struct {
	Tests   []string          `json:"tests" yaml:"tests"`
	Reasons map[string]string `json:"reasons" yaml:"reasons"`
}

func (r *Recommendation) add(id, reason string) {
	r.Tests = append(r.Tests, id)
	r.Reasons[id] = reason
}

// For returns the tests recommended for req.
func For(req Request) (Recommendation, error) {
	stage := strings.ToLower(strings.TrimSpace(req.Stage))
	sensor := strings.ToLower(strings.TrimSpace(req.Sensor))
	rec := Recommendation{Reasons: map[string]string{}}

	switch stage {
	case StageStation:
		rec.add("GET", "gravity magnitude screens every accelerometer triad")
		switch sensor {
		case SensorMagnetic:
			rec.add("TFDT", "total field and dip screen the magnetometers")
		case SensorGyro:
			rec.add("HERT", "horizontal earth rate screens the gyro")
		default:
			return Recommendation{}, apperr.Userf("unknown sensor %q (use %s or %s)", req.Sensor, SensorMagnetic, SensorGyro)
		}
	case StageSection:
		rec.add("MSAT", "multi-station accelerometer calibration")
		switch sensor {
		case SensorMagnetic:
			rec.add("MSMT", "multi-station magnetometer calibration")
			if req.Estimate {
				rec.add("MSE", "joint estimation yields corrected surveys")
			}
		case SensorGyro:
			rec.add("MSGT", "multi-station gyro calibration")
		default:
			return Recommendation{}, apperr.Userf("unknown sensor %q (use %s or %s)", req.Sensor, SensorMagnetic, SensorGyro)
		}
	default:
		return Recommendation{}, apperr.Userf("unknown stage %q (use %s or %s)", req.Stage, StageStation, StageSection)
	}

	if req.DualDepth {
		rec.add("DDDT", "pipe and wireline depths can be compared")
	}
	if req.Rotation {
		rec.add("RSMT", "rotation shots expose magnetometer misalignment")
	}
	if req.Independent {
		rec.add("IDT", "inclinations can be checked against the independent survey")
		rec.add("ADT", "azimuths can be checked against the independent survey")
	}
	if req.InOut {
		rec.add("IOMT", "in-run and out-run inclinations expose axial misalignment")
	}
	return rec, nil
}
