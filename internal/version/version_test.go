// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTriple(t *testing.T) {
	tests := []struct {
		in                  string
		major, minor, patch uint8
	}{
		{"1.2.3", 1, 2, 3},
		{"v0.38.0-dev", 0, 38, 0},
		{"2.7", 2, 7, 0},
		{"1.2.3+build.5", 1, 2, 3},
		{"300.1.1", 255, 1, 1},
		{"dev", 0, 0, 0},
		{"1.x.3", 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			major, minor, patch := parseTriple(tt.in)
			assert.Equal(t, [3]uint8{tt.major, tt.minor, tt.patch}, [3]uint8{major, minor, patch})
		})
	}
}

func TestString(t *testing.T) {
	assert.Contains(t, String(), Version)
}
