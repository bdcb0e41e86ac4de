// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

type backend interface {
	read(target string) ([]byte, error)
	write(target string, pass []byte) error
}

func backendFor(name string) (backend, error) {
	switch name {
	case "file":
		return fileBackend{}, nil
	case "systemd-creds":
		return credsBackend{tool: systemdCredsPath, credDir: os.Getenv("CREDENTIALS_DIRECTORY")}, nil
	}
	return nil, fmt.Errorf("unknown backend %q: %w", name, errUsage)
}

type fileBackend struct{}

func (fileBackend) read(target string) ([]byte, error) {
	return os.ReadFile(target)
}

func (fileBackend) write(target string, pass []byte) error {
	if err := os.WriteFile(target, pass, 0600); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(target, 0600)
}

// credentialName must match the LoadCredentialEncrypted name in the unit.
const credentialName = "tzsigner-passphrase"

// systemdCredsPath is absolute because passphrase commands run without PATH.
const systemdCredsPath = "/usr/bin/systemd-creds"

type credsBackend struct {
	tool    string
	credDir string
}

// read prefers the plaintext systemd placed in the credential directory,
// which needs no root, over decrypting target.
func (b credsBackend) read(target string) ([]byte, error) {
	if b.credDir != "" {
		if data, err := os.ReadFile(filepath.Join(b.credDir, credentialName)); err == nil {
			return data, nil
		}
	}
	if _, err := os.Stat(b.tool); err != nil {
		return nil, fmt.Errorf("CREDENTIALS_DIRECTORY not usable and %s not found", b.tool)
	}
	cmd := exec.Command(b.tool, "decrypt", "--name="+credentialName, target, "-") // #nosec G204 - fixed tool path
	cmd.Stderr = os.Stderr
	return cmd.Output()
}

func (b credsBackend) write(target string, pass []byte) error {
	if _, err := os.Stat(b.tool); err != nil {
		return fmt.Errorf("%s not found (required for write)", b.tool)
	}
	cmd := exec.Command(b.tool, "encrypt", "--name="+credentialName, "-", target) // #nosec G204 - fixed tool path
	cmd.Stdin = bytes.NewReader(pass)
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
