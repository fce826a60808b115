package mse

import (
	"io"

	"github.com/idlab-discover/surveyqc-cli/internal/logging"
	"github.com/idlab-discover/surveyqc-cli/internal/ui"
)

var logger = &logging.Logger{PrefixText: "MSE:", PrefixColor: ui.FgGreen, OmitStation: true}

// SetLogger sets an optional destination for estimator logs.
func SetLogger(w io.Writer) { logger.SetWriter(w) }

func logf(format string, args ...any) {
	logger.Logf("", format, args...)
}
