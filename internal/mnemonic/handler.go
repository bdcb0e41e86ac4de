// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package mnemonic turns recovery phrases into the master seed the signer
// derives every key from.
package mnemonic

import (
	"fmt"
	"strings"
)

// Handler defines the interface for mnemonic operations
type Handler interface {
	// Family returns the mnemonic scheme name (e.g., "bip39")
	Family() string

	// GenerateMnemonic generates a new mnemonic phrase
	// Returns: mnemonic words, seed bytes, entropy bytes, error
	GenerateMnemonic() (words string, seed []byte, entropy []byte, err error)

	// SeedFromMnemonic derives a seed from mnemonic words
	// passphrase is optional and may be empty
	SeedFromMnemonic(words []string, passphrase string) ([]byte, error)

	// EntropyToMnemonic converts entropy bytes to mnemonic words
	EntropyToMnemonic(entropy []byte) (string, error)

	// ValidateWordCount checks if the word count is valid for this mnemonic type
	ValidateWordCount(wordCount int) error

	// WordCount returns the number of words GenerateMnemonic produces
	WordCount() int
}

// Split normalizes a phrase into lower-case words.
func Split(phrase string) []string {
	return strings.Fields(strings.ToLower(phrase))
}

// wordsToEntropyBits maps BIP39 phrase lengths to entropy sizes.
var wordsToEntropyBits = map[int]int{
	12: 128,
	15: 160,
	18: 192,
	21: 224,
	24: 256,
}

func entropyBits(wordCount int) (int, error) {
	bits, ok := wordsToEntropyBits[wordCount]
	if !ok {
		return 0, fmt.Errorf("bip39 requires 12, 15, 18, 21 or 24 words, got %d", wordCount)
	}
	return bits, nil
}
