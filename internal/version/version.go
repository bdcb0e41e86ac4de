// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package version provides build version information for tzsigner binaries.
// Values are injected at build time via -ldflags.
package version

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// These variables are set at build time via -ldflags.
// Example: go build -ldflags "-X github.com/aplane-algo/tzsigner/internal/version.Version=1.0.0"
var (
	// Version is the semantic version (e.g., "0.38.0" or "0.38.0-dev")
	Version = "dev"

	// GitCommit is the git commit hash (short form)
	GitCommit = "unknown"

	// BuildTime is the build timestamp in RFC3339 format
	BuildTime = "unknown"
)

// String returns a formatted version string suitable for --version output.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, %s/%s)",
		Version, GitCommit, BuildTime, runtime.GOOS, runtime.GOARCH)
}

// Triple returns major, minor and patch as reported by the version command.
// Missing or unparsable components, as in "dev", are 0; values are capped at 255.
func Triple() (major, minor, patch uint8) {
	return parseTriple(Version)
}

func parseTriple(v string) (major, minor, patch uint8) {
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	var out [3]uint8
	for i, part := range strings.SplitN(v, ".", 3) {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			break
		}
		out[i] = uint8(min(n, 255))
	}
	return out[0], out[1], out[2]
}
