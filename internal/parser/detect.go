package parser

import (
	"strings"

	"github.com/mickamy/myxplain/internal/model"
)

// Format identifies which EXPLAIN output an input was read as.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// DetectFormat treats input starting with '{' or '[' as JSON and everything else as text.
func DetectFormat(input string) Format {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return FormatJSON
	}
	return FormatText
}

// Parse reads either EXPLAIN FORMAT=JSON or EXPLAIN ANALYZE text into a document.
// Failures are reported as *MalformedInputError.
func Parse(input string) (*model.Document, Format, error) {
	format := DetectFormat(input)
	if strings.TrimSpace(input) == "" {
		return nil, format, malformed("empty input", nil)
	}

	switch format {
	case FormatJSON:
		doc, err := ParseJSONBytes([]byte(input))
		return doc, format, err
	default:
		doc, err := TranslateString(input)
		return doc, format, err
	}
}
