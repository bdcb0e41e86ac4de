// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package transport

import "errors"

var (
	// ErrAlreadyConnected means another approver holds the authentication slot.
	ErrAlreadyConnected = errors.New("another approver is authenticating")

	// ErrUnauthorized means the signer refused the passphrase.
	ErrUnauthorized = errors.New("authentication failed")
)
