// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package client

import (
	"fmt"
	"strings"

	"github.com/status-im/keycard-go/derivationpath"

	"github.com/aplane-algo/tzsigner/internal/derivation"
)

// DefaultPath is the first Tezos account.
const DefaultPath = "m/44'/1729'/0'/0'"

// ParsePath reads a BIP32-style path such as m/44'/1729'/0'/0'. The
// leading "m/" is optional and "m" alone is the empty path.
func ParsePath(s string) (derivation.Path, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "m" {
		return derivation.NewPath()
	}
	if !strings.HasPrefix(s, "m/") {
		s = "m/" + s
	}
	if strings.HasSuffix(s, "/") || strings.Contains(s, "//") {
		return derivation.Path{}, fmt.Errorf("invalid derivation path %q: empty segment", s)
	}
	// Decode drops a trailing hardened segment, so parse with a
	// non-hardened sentinel appended and strip it again.
	start, indices, err := derivationpath.Decode(s + "/0")
	if err != nil {
		return derivation.Path{}, fmt.Errorf("invalid derivation path %q: %w", s, err)
	}
	if start != derivationpath.StartingPointMaster {
		return derivation.Path{}, fmt.Errorf("derivation path %q must start at the master key", s)
	}
	segments := strings.Count(s, "/")
	if len(indices) != segments+1 {
		return derivation.Path{}, fmt.Errorf("invalid derivation path %q: decoded %d of %d segments", s, len(indices)-1, segments)
	}
	return derivation.NewPath(indices[:segments]...)
}
