// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package mnemonic

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// DefaultWordCount is used when no word count is configured.
const DefaultWordCount = 24

// BIP39Handler implements Handler for BIP39 phrases. The seed is the
// 64-byte PBKDF2 output, fed directly to SLIP-10 master key generation.
type BIP39Handler struct {
	words int
}

// NewBIP39Handler returns a handler generating wordCount-word phrases.
func NewBIP39Handler(wordCount int) (*BIP39Handler, error) {
	if wordCount == 0 {
		wordCount = DefaultWordCount
	}
	if _, err := entropyBits(wordCount); err != nil {
		return nil, err
	}
	return &BIP39Handler{words: wordCount}, nil
}

// Family returns the mnemonic scheme name
func (h *BIP39Handler) Family() string {
	return "bip39"
}

// GenerateMnemonic generates a new phrase from fresh entropy
func (h *BIP39Handler) GenerateMnemonic() (words string, seed []byte, entropy []byte, err error) {
	bits, err := entropyBits(h.WordCount())
	if err != nil {
		return "", nil, nil, err
	}
	entropy, err = bip39.NewEntropy(bits)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to generate entropy: %w", err)
	}
	words, err = bip39.NewMnemonic(entropy)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return words, bip39.NewSeed(words, ""), entropy, nil
}

// SeedFromMnemonic checks the phrase checksum and derives the seed
func (h *BIP39Handler) SeedFromMnemonic(words []string, passphrase string) ([]byte, error) {
	if err := h.ValidateWordCount(len(words)); err != nil {
		return nil, err
	}
	seed, err := bip39.NewSeedWithErrorChecking(strings.Join(words, " "), passphrase)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	return seed, nil
}

// EntropyToMnemonic converts 16 to 32 bytes of entropy to a phrase
func (h *BIP39Handler) EntropyToMnemonic(entropy []byte) (string, error) {
	return bip39.NewMnemonic(entropy)
}

// ValidateWordCount accepts every BIP39 phrase length
func (h *BIP39Handler) ValidateWordCount(wordCount int) error {
	_, err := entropyBits(wordCount)
	return err
}

// WordCount returns the configured phrase length
func (h *BIP39Handler) WordCount() int {
	if h.words == 0 {
		return DefaultWordCount
	}
	return h.words
}

var _ Handler = (*BIP39Handler)(nil)
