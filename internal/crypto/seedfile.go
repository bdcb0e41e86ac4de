// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crypto

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrSeedFileExists is returned by WriteSeedFile when path is taken.
var ErrSeedFileExists = errors.New("seed file already exists")

// SeedKDFParams is the cost used for newly written seed files.
var SeedKDFParams = DefaultKDFParams

// seedPayload is the plaintext stored in a seed file.
type seedPayload struct {
	Mnemonic string `json:"mnemonic"`
	Created  string `json:"created"`
}

// WriteSeedFile encrypts mnemonic under passphrase and writes it to path
// with owner-only permissions. An existing file is never overwritten.
func WriteSeedFile(path string, mnemonic, passphrase []byte) error {
	if _, err := os.Stat(path); err == nil {
		return ErrSeedFileExists
	}
	plain, err := json.Marshal(seedPayload{Mnemonic: string(mnemonic), Created: time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		return err
	}
	defer ZeroBytes(plain)

	data, err := Seal(plain, passphrase, SeedKDFParams)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create seed directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return ErrSeedFileExists
		}
		return fmt.Errorf("failed to create seed file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write seed file: %w", err)
	}
	return f.Close()
}

// ReadSeedFile decrypts the mnemonic stored at path. The caller zeroes the
// returned bytes.
func ReadSeedFile(path string, passphrase []byte) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	plain, err := Open(data, passphrase)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(plain)

	var payload seedPayload
	if err := json.Unmarshal(plain, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return []byte(payload.Mnemonic), nil
}
