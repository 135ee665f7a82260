package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Formatter renders a result value to w
type Formatter interface {
	Format(w io.Writer, v any) error
}

// Format names an output encoding
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json or yaml (yml), case-insensitive
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "table":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// NewFormatter creates the formatter for format
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: "  "}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TextFormatter{}
	}
}

// DefaultFormat picks text on a terminal and JSON when piped
func DefaultFormat() Format {
	if os.Getenv("PATCHNOTE_OUTPUT") != "" {
		if f, err := ParseFormat(os.Getenv("PATCHNOTE_OUTPUT")); err == nil {
			return f
		}
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return FormatText
	}
	return FormatJSON
}

// JSONFormatter writes v as JSON
type JSONFormatter struct {
	Indent string
}

func (f *JSONFormatter) Format(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if f.Indent != "" {
		enc.SetIndent("", f.Indent)
	}
	return enc.Encode(v)
}

// YAMLFormatter writes v as YAML
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
