package qc

import (
	"errors"
	"reflect"
	"testing"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
)

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry(defaults())
	cases := []struct {
		id   string
		want string
	}{
		{"GET", "GET"},
		{"get", "GET"},
		{" msE ", "MSE"},
		{"dddt", "DDDT"},
	}
	for _, tc := range cases {
		t.Run(tc.id, func(t *testing.T) {
			test, err := r.Lookup(tc.id)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if test.Info().ID != tc.want {
				t.Fatalf("got %s", test.Info().ID)
			}
		})
	}

	_, err := r.Lookup("XYZ")
	var ue *apperr.UserError
	if !errors.As(err, &ue) {
		t.Fatalf("expected user error, got %v", err)
	}
}

func TestRegistry_Supported(t *testing.T) {
	infos := NewRegistry(defaults()).Supported()
	if len(infos) != 12 {
		t.Fatalf("got %d tests", len(infos))
	}
	var ids []string
	for _, in := range infos {
		ids = append(ids, in.ID)
	}
	want := []string{"DDDT", "GET", "HERT", "RSMT", "TFDT", "MSAT", "MSE", "MSGT", "MSMT", "ADT", "IDT", "IOMT"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("order = %v", ids)
	}
	for _, in := range infos[:5] {
		if in.Kind != KindSingle {
			t.Errorf("%s kind %s", in.ID, in.Kind)
		}
	}
}

func TestRegistry_Compatibility(t *testing.T) {
	r := NewRegistry(defaults())
	m := mustModel(t, "ABX e s m/s2 0.0004\nABY e s m/s2 0.0004\n")
	missing, err := r.Compatibility("GET", m)
	if err != nil {
		t.Fatalf("Compatibility: %v", err)
	}
	if !reflect.DeepEqual(missing, []string{"ABZ", "ASX", "ASY", "ASZ"}) {
		t.Fatalf("missing = %v", missing)
	}
	missing, err = r.Compatibility("GET", mustModel(t, fullIPM))
	if err != nil || len(missing) != 0 {
		t.Fatalf("full model missing %v (%v)", missing, err)
	}
}

func TestRegistry_EvaluateRequiresModel(t *testing.T) {
	r := NewRegistry(defaults())
	_, err := r.Evaluate("GET", sectionStations(1, survey.SensorErrors{}), nil)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	res, err := r.Evaluate("GET", sectionStations(1, survey.SensorErrors{}), mustModel(t, fullIPM))
	if err != nil || !res.IsValid {
		t.Fatalf("GET on clean station: %v %+v", err, res)
	}
}
