package ipm

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// WriteTo reserialises the model in IPM text form. Parsing the output yields the
// same term identities, units and values.
func (m *Model) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	if m.ShortName != "" {
		fmt.Fprintf(&buf, "#ShortName: %s\n", m.ShortName)
	}
	if m.Description != "" {
		fmt.Fprintf(&buf, "#Description: %s\n", m.Description)
	}
	for _, t := range m.Terms {
		fmt.Fprintf(&buf, "%-12s %s %s %s %s", t.Name, t.Vector, t.TieOn, t.Unit, strconv.FormatFloat(t.Value, 'g', -1, 64))
		if t.Formula != "" {
			buf.WriteString(" ")
			buf.WriteString(t.Formula)
		}
		buf.WriteString("\n")
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

func (m *Model) String() string {
	var buf bytes.Buffer
	_, _ = m.WriteTo(&buf)
	return buf.String()
}
