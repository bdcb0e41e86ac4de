// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"strconv"
	"strings"
)

// FormatAmountWithDecimals formats an amount with the specified number of decimal places.
// If decimals is 0, returns the raw integer value. Integer arithmetic keeps
// every digit exact up to the full uint64 range.
func FormatAmountWithDecimals(amountUnits uint64, decimals uint64) string {
	digits := strconv.FormatUint(amountUnits, 10)
	if decimals == 0 {
		return digits
	}
	d := int(decimals)
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}
	return digits[:len(digits)-d] + "." + digits[len(digits)-d:]
}
