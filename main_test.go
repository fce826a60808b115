package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"cancelled", fmt.Errorf("batch: %w", apperr.ErrCancelled), 130},
		{"invalid result", apperr.Invalid("GET"), 2},
		{"user error", apperr.User("--test is required"), 1},
		{"other", errors.New("boom"), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
