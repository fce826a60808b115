package completeness

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/idlab-discover/surveyqc-cli/internal/config"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/qc"
)

func model(t *testing.T, text string) *ipm.Model {
	t.Helper()
	m, err := ipm.ParseString(text)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return m
}

func testReport(r Report, id string) TestReport {
	for _, tr := range r.Tests {
		if tr.Test == id {
			return tr
		}
	}
	return TestReport{}
}

func TestCheck_AccelerometerOnlyModel(t *testing.T) {
	m := model(t, `#ShortName: ACC
ABX e s m/s2 0.0004
ABY e s m/s2 0.0004
ABZ e s m/s2 0.0004
ASX e s - 0.0005
ASY e s - 0.0005
ASZ e s - 0.0005
`)
	r := Check(m, qc.NewRegistry(config.Defaults()))
	if r.Model != "ACC" || len(r.Tests) != 12 {
		t.Fatalf("report %+v", r)
	}
	get := testReport(r, "GET")
	if !get.Ready || get.Score != 1 || get.Passed != 6 {
		t.Errorf("GET coverage %+v", get)
	}
	msat := testReport(r, "MSAT")
	if !msat.Ready {
		t.Errorf("MSAT coverage %+v", msat)
	}
	tfdt := testReport(r, "TFDT")
	if tfdt.Ready || !reflect.DeepEqual(tfdt.Missing, []string{"MBX", "MBY", "MBZ", "MSX", "MSY", "MSZ", "MFI", "MDI"}) {
		t.Errorf("TFDT coverage %+v", tfdt)
	}
	if r.Score <= 0 || r.Score >= 1 || r.Passed != 6 {
		t.Errorf("overall %v (%d/%d)", r.Score, r.Passed, r.Total)
	}
}

func TestCheck_SharedNames(t *testing.T) {
	m := model(t, "GBXY e s deg/hr 0.1\nGSXY e s - 0.001\nMU e s deg/hr/g 0.1\nQ e s deg/hr/g2 0.05\nGR e r deg/hr 0.05\n")
	hert := testReport(Check(m, qc.NewRegistry(config.Defaults())), "HERT")
	if !hert.Ready {
		t.Fatalf("grouped gyro names should satisfy HERT: %+v", hert)
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(&buf)
	defer SetLogger(nil)

	PrintReport(Check(model(t, "ABX e s m/s2 0.0004\n"), qc.NewRegistry(config.Defaults())))
	out := buf.String()
	if !strings.Contains(out, "Coverage:") || !strings.Contains(out, "GET missing: ABY") {
		t.Fatalf("log = %q", out)
	}
}
