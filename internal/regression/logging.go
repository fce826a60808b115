package regression

import (
	"io"

	"github.com/idlab-discover/surveyqc-cli/internal/logging"
	"github.com/idlab-discover/surveyqc-cli/internal/ui"
)

var logger = &logging.Logger{PrefixText: "Regression:", PrefixColor: ui.FgYellow, OmitStation: true}

// SetLogger sets an optional destination for solver logs.
func SetLogger(w io.Writer) { logger.SetWriter(w) }

func logf(format string, args ...any) {
	logger.Logf("", format, args...)
}
