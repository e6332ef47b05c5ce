package model

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	unitNumberPattern = regexp.MustCompile(`^([0-9]*\.?[0-9]+)\s*([kKmMgG])?$`)
	separatorStripper = strings.NewReplacer(",", "", "_", "")
)

// ToNumber converts a raw plan value into a finite float. Numeric text may carry thousands
// separators or a K/M/G suffix; anything else that cannot be read as a finite number yields
// fallback.
func ToNumber(v any, fallback float64) float64 {
	switch n := v.(type) {
	case nil:
		return fallback
	case float64:
		return finiteOr(n, fallback)
	case float32:
		return finiteOr(float64(n), fallback)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		return parseNumeric(n.String(), fallback)
	case string:
		return parseNumeric(n, fallback)
	default:
		return fallback
	}
}

// ParseUnitNumber reads values such as "12.5", "459K" or "1.2M"; unparsable text yields 0.
func ParseUnitNumber(s string) float64 {
	return ToNumber(s, 0)
}

func parseNumeric(s string, fallback float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	s = separatorStripper.Replace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return finiteOr(f, fallback)
	}
	m := unitNumberPattern.FindStringSubmatch(s)
	if m == nil {
		return fallback
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return fallback
	}
	return finiteOr(f*unitMultiplier(m[2]), fallback)
}

func unitMultiplier(suffix string) float64 {
	switch strings.ToUpper(suffix) {
	case "K":
		return 1e3
	case "M":
		return 1e6
	case "G":
		return 1e9
	default:
		return 1
	}
}

func finiteOr(f, fallback float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return f
}
