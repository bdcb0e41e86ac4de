// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAmountWithDecimals(t *testing.T) {
	tests := []struct {
		name        string
		amountUnits uint64
		decimals    uint64
		expected    string
	}{
		{"zero decimals", 100, 0, "100"},
		{"zero amount zero decimals", 0, 0, "0"},
		{"6 decimals - 1 unit", 1000000, 6, "1.000000"},
		{"6 decimals - fractional", 1500000, 6, "1.500000"},
		{"6 decimals - smallest unit", 1, 6, "0.000001"},
		{"6 decimals - zero", 0, 6, "0.000000"},
		{"2 decimals", 12345, 2, "123.45"},
		{"exact length", 123456, 6, "0.123456"},
		{"max uint64", math.MaxUint64, 6, "18446744073709.551615"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatAmountWithDecimals(tt.amountUnits, tt.decimals))
		})
	}
}
