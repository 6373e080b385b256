package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFIPS(t *testing.T) {
	tests := []struct {
		code     int64
		expected string
	}{
		{6, "06"},
		{72, "72"},
		{99, "99"},
		{6037, "06037"},
		{1001, "01001"},
		{48201, "48201"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatFIPS(tt.code))
		})
	}
}

func TestFIPSFromCode(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected any
	}{
		{"state int", 6, "06"},
		{"county float", 6037.0, "06037"},
		{"county json number", json.Number("36061"), "36061"},
		{"unpadded digit string", "6037", "06037"},
		{"padded state string", "06", "06"},
		{"padded county string", "01001", "01001"},
		{"float json number", json.Number("6037.0"), "06037"},
		{"float state string", "6.0", "06"},
		{"exponent json number", json.Number("3.6061e4"), "36061"},
		{"fractional string", "6.5", nil},
		{"negative string", "-6", nil},
		{"national unit", "US", "US"},
		{"infinity label", "Inf", "Inf"},
		{"empty string", "", nil},
		{"nil", nil, nil},
		{"negative", -1.0, nil},
		{"fractional", 6.5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FIPSFromCode(tt.input))
		})
	}
}
