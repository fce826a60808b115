package qc

import (
	"io"

	"github.com/idlab-discover/surveyqc-cli/internal/logging"
	"github.com/idlab-discover/surveyqc-cli/internal/ui"
)

var logger = &logging.Logger{PrefixText: "QC:", PrefixColor: ui.FgCyan}

// SetLogger sets an optional destination for test logs.
// When set to nil, logs are disabled.
func SetLogger(w io.Writer) { logger.SetWriter(w) }

func logf(station string, format string, args ...any) {
	logger.Logf(station, format, args...)
}
