// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"syscall"

	"github.com/aplane-algo/tzsigner/internal/util"
)

// listenUnix replaces any stale socket at path and listens on it with
// owner-only permissions.
func listenUnix(path, what string) (net.Listener, error) {
	if err := validateSocketPath(path); err != nil {
		return nil, err
	}
	warnIfSharedDir(filepath.Dir(path))

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale %s socket: %w", what, err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s socket: %w", what, err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("failed to restrict %s socket: %w", what, err)
	}
	return ln, nil
}

// validateSocketPath refuses to remove anything at path that is a symlink
// or belongs to another user.
func validateSocketPath(path string) error {
	info, err := os.Lstat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("failed to stat socket path: %w", err)
	case info.Mode()&fs.ModeSymlink != 0:
		return fmt.Errorf("SECURITY: socket path is a symlink (possible attack): %s", path)
	}

	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	// #nosec G115 - Linux uids are 32-bit
	if uid := uint32(os.Getuid()); st.Uid != uid {
		return fmt.Errorf("SECURITY: socket owned by uid %d, not %d: %s", st.Uid, uid, path)
	}
	return nil
}

// warnIfSharedDir complains when other users could tamper with the socket
// directory.
func warnIfSharedDir(dir string) {
	info, err := os.Stat(dir)
	if err != nil || info.Mode().Perm()&0002 == 0 {
		return
	}
	fmt.Printf("⚠️  WARNING: socket directory %s is world-writable\n", dir)
	fmt.Printf("   Point %s at a private directory instead\n", util.DataDirEnv)
}
