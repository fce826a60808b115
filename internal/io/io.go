// Package io reads survey requests and IPM files and writes result envelopes.
package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	stdio "io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
)

// Formats.
const (
	FormatAuto = "auto"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Request is a QC request file: the stations plus an optional inline IPM.
type Request struct {
	Surveys []survey.Station `json:"surveys" yaml:"surveys"`
	IPM     string           `json:"ipm,omitempty" yaml:"ipm,omitempty"`

	// Comparison is the independent survey (or out-run) for comparison tests.
	Comparison []survey.Station `json:"comparison,omitempty" yaml:"comparison,omitempty"`
}

// Model parses the inline IPM, or returns nil when there is none.
func (r *Request) Model() (*ipm.Model, error) {
	if strings.TrimSpace(r.IPM) == "" {
		return nil, nil
	}
	return ipm.ParseString(r.IPM)
}

// Envelope wraps every result written by the CLI.
type Envelope struct {
	RunID  string `json:"run_id" yaml:"run_id"`
	Test   string `json:"test" yaml:"test"`
	Result any    `json:"result" yaml:"result"`
}

// ResolveFormat picks json or yaml. "auto" (or empty) decides from the
// extension of path and falls back to json.
func ResolveFormat(path, format string) (string, error) {
	actual := strings.ToLower(strings.TrimSpace(format))
	switch actual {
	case "", FormatAuto:
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			return FormatYAML, nil
		default:
			return FormatJSON, nil
		}
	case FormatJSON, FormatYAML:
		return actual, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", apperr.Userf("unsupported format: %q", format)
	}
}

// ReadRequest reads a request file. A bare list of stations is accepted as
// well as the {surveys, ipm} object.
func ReadRequest(path, format string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	actual, err := ResolveFormat(path, format)
	if err != nil {
		return nil, err
	}
	req, err := DecodeRequest(data, actual)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return req, nil
}

// DecodeRequest decodes request bytes in the given format.
func DecodeRequest(data []byte, format string) (*Request, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, apperr.Missing("surveys")
	}
	req := new(Request)
	var err error
	switch format {
	case FormatYAML:
		var doc any
		if err = yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		if _, isList := doc.([]any); isList {
			err = yaml.Unmarshal(trimmed, &req.Surveys)
		} else {
			err = yaml.Unmarshal(trimmed, req)
		}
	default:
		if trimmed[0] == '[' {
			err = json.Unmarshal(trimmed, &req.Surveys)
		} else {
			err = json.Unmarshal(trimmed, req)
		}
	}
	if err != nil {
		return nil, err
	}
	if len(req.Surveys) == 0 {
		return nil, apperr.Missing("surveys")
	}
	return req, nil
}

// ReadIPM parses an IPM file.
func ReadIPM(path string) (*ipm.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := ipm.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Encode writes v to w as indented json or yaml.
func Encode(w stdio.Writer, v any, format string) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON, "", FormatAuto:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return apperr.Userf("unsupported format: %q", format)
	}
}

// WriteResult writes v to outputPath. An explicit format must agree with the
// file extension.
func WriteResult(v any, outputPath, format string) error {
	actual, err := ResolveFormat(outputPath, format)
	if err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(outputPath))
	switch actual {
	case FormatYAML:
		if ext != ".yaml" && ext != ".yml" {
			return fmt.Errorf("output path extension %q does not match format %q", ext, actual)
		}
	case FormatJSON:
		if ext != ".json" {
			return fmt.Errorf("output path extension %q does not match format %q", ext, actual)
		}
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return Encode(f, v, actual)
}

// ReadInto decodes a json or yaml file into v.
func ReadInto(path, format string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	actual, err := ResolveFormat(path, format)
	if err != nil {
		return err
	}
	if actual == FormatYAML {
		err = yaml.Unmarshal(data, v)
	} else {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
