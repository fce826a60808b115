package qc

import (
	"math"
	"testing"

	"github.com/idlab-discover/surveyqc-cli/internal/config"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
)

const fullIPM = `#ShortName: QC-FIXTURE
#Description: every catalogued term
ABX  e s m/s2     0.0004
ABY  e s m/s2     0.0004
ABZ  e s m/s2     0.0004
ASX  e s -        0.0005
ASY  e s -        0.0005
ASZ  e s -        0.0005
MBX  e s nT       70
MBY  e s nT       70
MBZ  e s nT       70
MSX  e s -        0.0016
MSY  e s -        0.0016
MSZ  e s -        0.0016
MFI  e g nT       130
MDI  e g deg      0.2
GBX  e s deg/hr   0.1
GBY  e s deg/hr   0.1
GSX  e s -        0.001
GSY  e s -        0.001
M    e s deg/hr/g 0.1
Q    e s deg/hr/g2 0.05
GR   e r deg/hr   0.05
MX   e s deg      0.1
MY   e s deg      0.1
DREF e r m        0.35
DSF  e s ppm      560
DST  e g 1/m      2.5e-7
`

func mustModel(t *testing.T, text string) *ipm.Model {
	t.Helper()
	m, err := ipm.ParseString(text)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return m
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func defaults() config.Settings { return config.Defaults() }

var testField = &survey.GeomagneticField{TotalField: 50000, Dip: 66, Declination: survey.Float(2)}

// sectionStations synthesises n stations with wide inclination, azimuth and
// toolface diversity at latitude 52°.
func sectionStations(n int, errs survey.SensorErrors) []survey.Station {
	lat := 52.0
	out := make([]survey.Station, n)
	for i := range out {
		out[i] = survey.Synthesize(survey.Synthetic{
			Depth:       1000 + 30*float64(i),
			Inclination: 10 + 6.5*float64(i%12),
			Azimuth:     30 * float64(i%12),
			Toolface:    math.Mod(97*float64(i), 360),
			Field:       testField,
			Latitude:    &lat,
			Errors:      errs,
		})
		out[i].ID = "S" + string(rune('A'+i))
	}
	return out
}

// clusteredStations synthesises n stations sharing one orientation.
func clusteredStations(n int) []survey.Station {
	out := make([]survey.Station, n)
	for i := range out {
		out[i] = survey.Synthesize(survey.Synthetic{
			Depth:       2000 + float64(i),
			Inclination: 30,
			Azimuth:     45,
			Toolface:    120,
			Field:       testField,
		})
	}
	return out
}

func cosd(d float64) float64 { return math.Cos(survey.Rad(d)) }
func sind(d float64) float64 { return math.Sin(survey.Rad(d)) }
