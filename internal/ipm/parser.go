package ipm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
)

const minFields = 5

// ParseString parses IPM text held in memory.
func ParseString(text string) (*Model, error) {
	return Parse(strings.NewReader(text))
}

// Parse reads an IPM from r. The first malformed line aborts parsing with an
// *apperr.ParseError.
func Parse(r io.Reader) (*Model, error) {
	m := &Model{index: make(map[Key]int)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			parseHeader(m, line)
			continue
		}

		t, err := parseTerm(line)
		if err != nil {
			return nil, &apperr.ParseError{Line: lineNo, Text: raw, Reason: err.Error()}
		}
		t.Line = lineNo
		if err := m.add(t); err != nil {
			return nil, &apperr.ParseError{Line: lineNo, Text: raw, Reason: err.Error()}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ipm: %w", err)
	}

	logf("parsed %q: %d terms", m.ShortName, len(m.Terms))
	return m, nil
}

// parseHeader recognises "#ShortName:" and "#Description:"; any other comment
// is ignored.
func parseHeader(m *Model, line string) {
	body := strings.TrimSpace(strings.TrimPrefix(line, "#"))
	key, value, ok := strings.Cut(body, ":")
	if !ok {
		return
	}
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "shortname":
		m.ShortName = strings.TrimSpace(value)
	case "description":
		m.Description = strings.TrimSpace(value)
	}
}

func parseTerm(line string) (ErrorTerm, error) {
	fields, rest := splitFields(line, minFields)
	if len(fields) < minFields {
		return ErrorTerm{}, fmt.Errorf("expected at least %d fields, got %d", minFields, len(fields))
	}

	value, err := strconv.ParseFloat(fields[4], 64)
	if err != nil || !finite(value) {
		return ErrorTerm{}, fmt.Errorf("value %q is not a number", fields[4])
	}
	si, err := ToSI(value, fields[3])
	if err != nil {
		return ErrorTerm{}, err
	}

	return ErrorTerm{
		Name:    fields[0],
		Vector:  fields[1],
		TieOn:   fields[2],
		Unit:    fields[3],
		Value:   value,
		ValueSI: si,
		Formula: rest,
	}, nil
}

// splitFields returns up to n whitespace separated fields and the trimmed
// remainder of the line after them.
func splitFields(line string, n int) ([]string, string) {
	var fields []string
	s := line
	for len(fields) < n {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		if s == "" {
			break
		}
		end := strings.IndexFunc(s, unicode.IsSpace)
		if end < 0 {
			fields = append(fields, s)
			s = ""
			break
		}
		fields = append(fields, s[:end])
		s = s[end:]
	}
	return fields, strings.TrimSpace(s)
}
