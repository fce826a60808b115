package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/idlab-discover/surveyqc-cli/internal/ui"
)

// Logger is a tiny opt-in logger used across internal packages.
// When Writer is nil, logging is disabled.
//
// The output format is:
//
//	<ColoredPrefix> station=<stationID> <formattedMessage>\n
//
// where <stationID> is trimmed and defaults to "(unknown)".
type Logger struct {
	Writer io.Writer

	PrefixText  string
	PrefixColor string

	// OmitStation drops the "station=<id>" field.
	OmitStation bool
}

func (l *Logger) SetWriter(w io.Writer) { l.Writer = w }

func (l *Logger) Enabled() bool { return l != nil && l.Writer != nil }

func (l *Logger) Logf(stationID string, format string, args ...any) {
	if l == nil || l.Writer == nil {
		return
	}
	prefix := l.PrefixText
	if prefix == "" {
		prefix = "Log:"
	}
	if l.PrefixColor != "" {
		prefix = ui.Color(prefix, l.PrefixColor)
	}
	msg := fmt.Sprintf(format, args...)
	if l.OmitStation {
		fmt.Fprintf(l.Writer, "%s %s\n", prefix, msg)
		return
	}

	s := strings.TrimSpace(stationID)
	if s == "" {
		s = "(unknown)"
	}
	fmt.Fprintf(l.Writer, "%s station=%s %s\n", prefix, s, msg)
}
