// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// addressColors maps address prefixes to ANSI color codes.
var addressColors = map[string]string{
	"tz1": "36", // cyan: ed25519
	"tz2": "33", // yellow: secp256k1
	"tz3": "35", // magenta: p256
	"KT1": "32", // green: originated
}

// supportsColor checks if the terminal supports ANSI color codes
func supportsColor() bool {
	// Check if stdout is a terminal
	if !term.IsTerminal(int(os.Stdout.Fd())) { // #nosec G115 - file descriptors are small integers
		return false
	}

	// Check TERM environment variable
	termEnv := os.Getenv("TERM")
	if termEnv == "" || termEnv == "dumb" {
		return false
	}

	return true
}

// FormatAddressWithColor colors an address by its prefix when stdout is a
// color terminal.
func FormatAddressWithColor(address string) string {
	if !supportsColor() {
		return address
	}
	return colorize(address)
}

func colorize(address string) string {
	if len(address) < 3 {
		return address
	}
	code, ok := addressColors[address[:3]]
	if !ok {
		return address
	}
	return fmt.Sprintf("\033[%sm%s\033[0m", code, address)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) // #nosec G115 - file descriptors are small integers
}

// ShortAddress abbreviates an address for narrow displays.
func ShortAddress(address string) string {
	if len(address) <= 14 {
		return address
	}
	return strings.Join([]string{address[:8], address[len(address)-6:]}, "…")
}
