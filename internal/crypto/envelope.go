// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crypto

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// EnvelopeVersion is the only envelope format Seal writes and Open reads.
const EnvelopeVersion = 1

const (
	kdfArgon2id = "argon2id"
	saltLen     = 32
)

var (
	// ErrWrongPassphrase is returned when authenticated decryption fails.
	ErrWrongPassphrase = errors.New("incorrect passphrase")

	errBadEnvelope = errors.New("invalid envelope")
)

// KDFParams are the Argon2id cost parameters, stored with each envelope so
// they can be raised without breaking existing files.
type KDFParams struct {
	Time      uint32 `json:"t"`
	MemoryKiB uint32 `json:"m"`
	Threads   uint8  `json:"p"`
}

// DefaultKDFParams follow the OWASP Argon2id baseline.
var DefaultKDFParams = KDFParams{Time: 1, MemoryKiB: 64 * 1024, Threads: 4}

// Upper bounds for parameters read from disk, so a crafted file cannot make
// Open allocate without limit.
const (
	maxKDFTime      = 16
	maxKDFMemoryKiB = 1 << 20
)

func (p KDFParams) validate() error {
	if p.Time == 0 || p.Time > maxKDFTime || p.MemoryKiB < 8*uint32(p.Threads) || p.MemoryKiB > maxKDFMemoryKiB || p.Threads == 0 {
		return fmt.Errorf("%w: argon2id parameters out of range (t=%d m=%d p=%d)", errBadEnvelope, p.Time, p.MemoryKiB, p.Threads)
	}
	return nil
}

// envelope is the on-disk format. Byte fields marshal as base64.
type envelope struct {
	Version    int       `json:"version"`
	KDF        string    `json:"kdf"`
	Params     KDFParams `json:"params"`
	Salt       []byte    `json:"salt"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
}

// header is bound into the AEAD so the cost parameters cannot be swapped.
func (e *envelope) header() []byte {
	return fmt.Appendf(nil, "tzsigner-envelope/v%d/%s/t=%d/m=%d/p=%d",
		e.Version, e.KDF, e.Params.Time, e.Params.MemoryKiB, e.Params.Threads)
}

func deriveKey(passphrase, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(passphrase, salt, p.Time, p.MemoryKiB, p.Threads, chacha20poly1305.KeySize)
}

// Seal encrypts plaintext under passphrase with XChaCha20-Poly1305 and an
// Argon2id key. The result is self-contained JSON.
func Seal(plaintext, passphrase []byte, params KDFParams) ([]byte, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	env := &envelope{
		Version: EnvelopeVersion,
		KDF:     kdfArgon2id,
		Params:  params,
		Salt:    make([]byte, saltLen),
		Nonce:   make([]byte, chacha20poly1305.NonceSizeX),
	}
	if _, err := rand.Read(env.Salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := rand.Read(env.Nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	key := deriveKey(passphrase, env.Salt, params)
	defer ZeroBytes(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	env.Ciphertext = aead.Seal(nil, env.Nonce, plaintext, env.header())
	return json.MarshalIndent(env, "", "  ")
}

// Open reverses Seal. A wrong passphrase, or any tampering, yields
// ErrWrongPassphrase; the AEAD cannot tell them apart.
func Open(data, passphrase []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadEnvelope, err)
	}
	switch {
	case env.Version != EnvelopeVersion:
		return nil, fmt.Errorf("%w: version %d not supported", errBadEnvelope, env.Version)
	case env.KDF != kdfArgon2id:
		return nil, fmt.Errorf("%w: kdf %q not supported", errBadEnvelope, env.KDF)
	case len(env.Salt) != saltLen || len(env.Nonce) != chacha20poly1305.NonceSizeX:
		return nil, fmt.Errorf("%w: bad salt or nonce length", errBadEnvelope)
	}
	if err := env.Params.validate(); err != nil {
		return nil, err
	}

	key := deriveKey(passphrase, env.Salt, env.Params)
	defer ZeroBytes(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, env.Nonce, env.Ciphertext, env.header())
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plain, nil
}
