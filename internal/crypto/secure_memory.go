// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crypto

import (
	"crypto/subtle"
	"runtime"
	"sync"
)

// ZeroBytes overwrites b with zeros in a way the compiler will not elide.
func ZeroBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	runtime.KeepAlive(b)
}

// Secret holds a copy of a credential, such as the unlock passphrase the
// approver channel authenticates against, until Destroy wipes it.
type Secret struct {
	mu   sync.RWMutex
	data []byte
}

// NewSecret copies b; the caller may zero its own slice afterwards.
func NewSecret(b []byte) *Secret {
	if len(b) == 0 {
		return &Secret{}
	}
	return &Secret{data: append(make([]byte, 0, len(b)), b...)}
}

// Equal compares b against the secret in constant time. An empty or
// destroyed secret matches nothing, including an empty b.
func (s *Secret) Equal(b []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data) > 0 && subtle.ConstantTimeCompare(s.data, b) == 1
}

// Destroy wipes the secret. Safe to call more than once.
func (s *Secret) Destroy() {
	s.mu.Lock()
	ZeroBytes(s.data)
	s.data = nil
	s.mu.Unlock()
}
