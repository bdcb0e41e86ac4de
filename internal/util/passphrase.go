// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aplane-algo/tzsigner/internal/crypto"
)

const (
	// DefaultPassphraseCommandTimeout bounds one helper run.
	DefaultPassphraseCommandTimeout = 5 * time.Second

	// maxHelperOutput caps helper stdout.
	maxHelperOutput = 8 * 1024
)

// Passphrase command verbs, injected as the helper's first argument.
const (
	VerbRead  = "read"
	VerbWrite = "write"
)

// ErrHelperMismatch is returned by Write when the helper echoes back a
// different passphrase than it was given.
var ErrHelperMismatch = errors.New("passphrase helper returned a different value")

// PassphraseCommand runs the external helper that stores the seed passphrase
// for headless operation. The helper is invoked as
//
//	Argv[0] <verb> Argv[1:]...
//
// with only Env in its environment. Its stdout, minus one trailing newline,
// is the passphrase; a "base64:" or "hex:" prefix selects a decoding.
type PassphraseCommand struct {
	Argv    []string
	Env     map[string]string
	Dir     string        // working directory; inherited if empty
	Timeout time.Duration // DefaultPassphraseCommandTimeout if zero
}

// Validate checks that the helper is an absolute path to an executable
// nobody but its owner can modify.
func (c *PassphraseCommand) Validate() error {
	if len(c.Argv) == 0 {
		return fmt.Errorf("passphrase_command_argv: must be non-empty")
	}
	bin := c.Argv[0]
	if !filepath.IsAbs(bin) {
		return fmt.Errorf("passphrase_command_argv: %q is not an absolute path (use an absolute path or a path relative to the data directory)", bin)
	}

	info, err := os.Stat(bin)
	if err != nil {
		return fmt.Errorf("passphrase_command_argv: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("passphrase_command_argv: %s is a directory", bin)
	}
	perm := info.Mode().Perm()
	if perm&0111 == 0 {
		return fmt.Errorf("passphrase_command_argv: %s is not executable (mode %04o)", bin, perm)
	}
	if perm&0022 != 0 {
		return fmt.Errorf("passphrase_command_argv: %s is group or world writable (mode %04o)", bin, perm)
	}
	return nil
}

// Read asks the helper for the stored passphrase. The caller zeroes the
// result.
func (c *PassphraseCommand) Read(ctx context.Context) ([]byte, error) {
	return c.run(ctx, VerbRead, nil)
}

// Write hands pass to the helper on stdin and checks, in constant time, that
// the value it prints back is identical.
func (c *PassphraseCommand) Write(ctx context.Context, pass []byte) error {
	echoed, err := c.run(ctx, VerbWrite, pass)
	if err != nil {
		return fmt.Errorf("passphrase_command_argv write: %w", err)
	}
	defer crypto.ZeroBytes(echoed)
	if subtle.ConstantTimeCompare(echoed, pass) != 1 {
		return fmt.Errorf("passphrase_command_argv write: %w", ErrHelperMismatch)
	}
	return nil
}

func (c *PassphraseCommand) run(ctx context.Context, verb string, stdin []byte) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultPassphraseCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{verb}, c.Argv[1:]...)
	cmd := exec.CommandContext(ctx, c.Argv[0], args...) // #nosec G204 - validated helper path
	cmd.Env = helperEnv(c.Env)
	cmd.Dir = c.Dir
	// Own process group so grandchildren die with the helper
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second
	if len(stdin) > 0 {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	out := &cappedBuffer{limit: maxHelperOutput}
	defer out.wipe()
	cmd.Stdout = out
	// Helper stderr may echo secrets; never capture it
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("passphrase_command_argv: command timed out after %s", timeout)
		case ctx.Err() != nil:
			return nil, fmt.Errorf("passphrase_command_argv: %w", ctx.Err())
		}
		return nil, fmt.Errorf("passphrase_command_argv: command failed: %w", err)
	}
	if out.overflow {
		return nil, fmt.Errorf("passphrase_command_argv: stdout exceeded %d bytes", maxHelperOutput)
	}
	return parseHelperOutput(out.buf)
}

// parseHelperOutput strips one trailing newline and decodes the result into
// a fresh slice.
func parseHelperOutput(raw []byte) ([]byte, error) {
	out, ok := bytes.CutSuffix(raw, []byte("\r\n"))
	if !ok {
		out = bytes.TrimSuffix(raw, []byte("\n"))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("passphrase_command_argv: command produced empty output")
	}
	if bytes.IndexByte(out, 0) >= 0 {
		return nil, fmt.Errorf("passphrase_command_argv: output contains NUL bytes")
	}

	var dec func(dst, src []byte) (int, error)
	var size int
	switch {
	case bytes.HasPrefix(out, []byte("base64:")):
		out = out[len("base64:"):]
		dec, size = base64.StdEncoding.Decode, base64.StdEncoding.DecodedLen(len(out))
	case bytes.HasPrefix(out, []byte("hex:")):
		out = out[len("hex:"):]
		dec, size = hex.Decode, hex.DecodedLen(len(out))
	default:
		return bytes.Clone(out), nil
	}

	// Decode into []byte directly; no string copies of the secret
	decoded := make([]byte, size)
	n, err := dec(decoded, out)
	if err != nil {
		crypto.ZeroBytes(decoded)
		return nil, fmt.Errorf("passphrase_command_argv: invalid encoded output: %w", err)
	}
	return decoded[:n], nil
}

// helperEnv lists only declared variables; the daemon's environment is
// never inherited.
func helperEnv(declared map[string]string) []string {
	env := make([]string, 0, len(declared))
	for k, v := range declared {
		env = append(env, k+"="+v)
	}
	return env
}

// cappedBuffer collects up to limit bytes and swallows the rest, so a
// chatty helper never sees a short write.
type cappedBuffer struct {
	buf      []byte
	limit    int
	overflow bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if room := b.limit - len(b.buf); n > room {
		b.overflow = true
		p = p[:max(room, 0)]
	}
	if len(b.buf)+len(p) > cap(b.buf) {
		// grow by hand so the old backing array can be wiped
		grown := make([]byte, len(b.buf), max(2*cap(b.buf), len(b.buf)+len(p)))
		copy(grown, b.buf)
		crypto.ZeroBytes(b.buf)
		b.buf = grown
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

func (b *cappedBuffer) wipe() {
	crypto.ZeroBytes(b.buf)
	b.buf = nil
}
