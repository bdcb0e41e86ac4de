// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/aplane-algo/tzsigner/internal/crypto"
	"github.com/aplane-algo/tzsigner/internal/derivation"
	"github.com/aplane-algo/tzsigner/internal/mnemonic"
	"github.com/aplane-algo/tzsigner/internal/util"
)

// PassphraseEnv supplies the seed passphrase non-interactively (testing).
const PassphraseEnv = "TZSIGNER_PASSPHRASE"

// Passphrase sources, for the security audit.
const (
	sourceEnv      = "env"
	sourceCommand  = "passphrase_command"
	sourceTerminal = "terminal"
)

// readPassphrase obtains the seed passphrase from the environment, the
// passphrase command (headless) or the terminal, in that order.
func readPassphrase(ctx context.Context, cfg *util.ServerConfig) ([]byte, string, error) {
	if env := os.Getenv(PassphraseEnv); env != "" {
		return []byte(env), sourceEnv, nil
	}

	if cfg.Headless() {
		pass, err := cfg.PassphraseCommand().Read(ctx)
		if err != nil {
			return nil, "", err
		}
		return pass, sourceCommand, nil
	}

	fd := int(os.Stdin.Fd()) // #nosec G115 - file descriptors are small integers
	if !term.IsTerminal(fd) {
		return nil, "", fmt.Errorf("no terminal for the passphrase prompt; set %s or passphrase_command_argv", PassphraseEnv)
	}
	fmt.Print("Enter seed passphrase: ")
	pass, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return nil, "", fmt.Errorf("reading passphrase: %w", err)
	}
	return pass, sourceTerminal, nil
}

// unlockSeed decrypts the seed file and turns the mnemonic into a key oracle.
// Every intermediate secret is zeroed before returning.
func unlockSeed(seedFile string, passphrase []byte) (*derivation.SeedOracle, error) {
	phrase, err := crypto.ReadSeedFile(seedFile, passphrase)
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(phrase)

	words := mnemonic.Split(string(phrase))
	handler, err := mnemonic.NewBIP39Handler(len(words))
	if err != nil {
		return nil, fmt.Errorf("seed file: %w", err)
	}
	seed, err := handler.SeedFromMnemonic(words, "")
	if err != nil {
		return nil, fmt.Errorf("seed file: %w", err)
	}
	defer crypto.ZeroBytes(seed)

	return derivation.NewSeedOracle(seed)
}
