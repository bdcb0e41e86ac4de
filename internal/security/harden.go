// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package security applies process-level protections for key material.
package security

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrLockDisabled is returned by Harden when memory locking is required but
// the environment turned it off.
var ErrLockDisabled = errors.New("memory locking is required but disabled by environment")

// Report records which protections took effect.
type Report struct {
	CoreDumpsDisabled bool
	NotDumpable       bool
	MemoryLocked      bool
}

// LockMemory pins all current and future pages so the seed and derived keys
// never reach swap.
func LockMemory() error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("mlockall failed: %w\n\nTo fix this, run:\n  sudo setcap cap_ipc_lock+ep %s", err, os.Args[0])
	}
	return nil
}

// disableCoreDumps zeroes RLIMIT_CORE.
func disableCoreDumps() error {
	return unix.Setrlimit(unix.RLIMIT_CORE, &unix.Rlimit{})
}

// markNotDumpable clears the dumpable flag, which also stops same-user
// processes from attaching with ptrace or reading /proc/<pid>/mem.
func markNotDumpable() error {
	return unix.Prctl(unix.PR_SET_DUMPABLE, 0, 0, 0, 0)
}

// Harden applies every protection. Failing to lock memory is an error only
// when requireLock is set; skipLock (tests, containers without
// CAP_IPC_LOCK) bypasses the attempt.
func Harden(requireLock, skipLock bool) (Report, error) {
	r := Report{
		CoreDumpsDisabled: disableCoreDumps() == nil,
		NotDumpable:       markNotDumpable() == nil,
	}
	if skipLock {
		if requireLock {
			return r, ErrLockDisabled
		}
		return r, nil
	}
	err := LockMemory()
	r.MemoryLocked = err == nil
	if requireLock {
		return r, err
	}
	return r, nil
}
