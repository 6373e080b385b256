package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FIPS code widths.
const (
	StateFIPSLen  = 2
	CountyFIPSLen = 5
)

// FormatFIPS zero-pads an integer location code: values below 100 are state
// codes (2 digits), everything else is a county code (5 digits).
func FormatFIPS(code int64) string {
	if code < 100 {
		return fmt.Sprintf("%02d", code)
	}
	return fmt.Sprintf("%05d", code)
}

// FIPSFromCode derives a FIPS string from a raw location value. Integers
// (in any numeric representation) are padded with FormatFIPS. Digit strings
// already at state or county width are kept; other digit strings are parsed
// and padded, as are numeric strings like "6037.0". Non-numeric strings such
// as "US" are returned unchanged so that later filters can recognize them.
// Negative or fractional codes yield nil.
func FIPSFromCode(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		if !isDigits(s) {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
				return s
			}
			return fipsFromFloat(f)
		}
		if len(s) == StateFIPSLen || len(s) == CountyFIPSLen {
			return s
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil
		}
		return FormatFIPS(n)
	case json.Number:
		return FIPSFromCode(x.String())
	default:
		f, ok := toFloat(v)
		if !ok {
			return nil
		}
		return fipsFromFloat(f)
	}
}

func fipsFromFloat(f float64) any {
	if f < 0 || f != math.Trunc(f) {
		return nil
	}
	return FormatFIPS(int64(f))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
