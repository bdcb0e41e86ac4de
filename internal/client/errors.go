// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package client

import (
	"errors"
	"fmt"

	"github.com/aplane-algo/tzsigner/internal/apdu"
)

// ErrRejected indicates the request was declined by the approver (0x6985).
var ErrRejected = errors.New("signing rejected by approver")

// StatusError is a non-success status word returned by the signer.
type StatusError struct {
	Ins    byte
	Status apdu.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("instruction 0x%02X failed: %s", e.Ins, e.Status)
}

// Is matches ErrRejected for the rejection status word.
func (e *StatusError) Is(target error) bool {
	return target == ErrRejected && e.Status == apdu.StatusRejected
}
