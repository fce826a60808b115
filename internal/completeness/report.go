package completeness

import "strings"

// PrintReport writes the report to the configured logger writer.
// If no logger writer is configured, it produces no output.
func PrintReport(r Report) {
	logf("score=%.1f%% (%d/%d)", r.Score*100, r.Passed, r.Total)
	for _, t := range r.Tests {
		if !t.Ready {
			logf("%s missing: %s", t.Test, strings.Join(t.Missing, ", "))
		}
	}
}
