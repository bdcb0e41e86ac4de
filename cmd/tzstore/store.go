// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/aplane-algo/tzsigner/internal/client"
	"github.com/aplane-algo/tzsigner/internal/crypto"
	"github.com/aplane-algo/tzsigner/internal/derivation"
	"github.com/aplane-algo/tzsigner/internal/mnemonic"
	"github.com/aplane-algo/tzsigner/internal/tezos"
	"github.com/aplane-algo/tzsigner/internal/util"
)

// store runs the seed file commands.
type store struct {
	cfg util.ServerConfig
	in  *bufio.Reader
	out io.Writer
	// terminal reads secrets with echo off from stdin
	terminal bool
}

func newStore(cfg util.ServerConfig) *store {
	return &store{
		cfg:      cfg,
		in:       bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		terminal: util.IsTerminal(os.Stdin),
	}
}

func (s *store) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// readLine reads one line of plain input.
func (s *store) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readSecret prompts for a secret without echo when stdin is a terminal.
func (s *store) readSecret(prompt string) (string, error) {
	s.printf("%s", prompt)
	if s.terminal {
		b, err := term.ReadPassword(int(os.Stdin.Fd())) // #nosec G115 - file descriptors are small integers
		s.printf("\n")
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return s.readLine()
}

// newPassphrase asks for a passphrase twice, or generates one.
func (s *store) newPassphrase(random bool) ([]byte, error) {
	if random {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("failed to generate random passphrase: %w", err)
		}
		pass := base64.StdEncoding.EncodeToString(b)
		crypto.ZeroBytes(b)
		if s.cfg.Headless() {
			s.printf("Generated random passphrase (will be stored via helper).\n")
		} else {
			s.printf("Generated passphrase: %s\n", pass)
			s.printf("\nIMPORTANT: Save this passphrase securely!\n")
			s.printf("SECURITY: Clear shell history after copying this passphrase.\n")
		}
		return []byte(pass), nil
	}

	pass, err := s.readSecret("Enter passphrase: ")
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	if pass == "" {
		return nil, errors.New("passphrase cannot be empty")
	}
	confirm, err := s.readSecret("Confirm passphrase: ")
	if err != nil {
		return nil, fmt.Errorf("failed to read confirmation: %w", err)
	}
	if pass != confirm {
		return nil, errors.New("passphrases do not match")
	}
	return []byte(pass), nil
}

// currentPassphrase reads the passphrase protecting an existing seed file.
func (s *store) currentPassphrase(ctx context.Context) ([]byte, error) {
	if s.cfg.Headless() {
		return s.cfg.PassphraseCommand().Read(ctx)
	}
	pass, err := s.readSecret("Enter current passphrase: ")
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	return []byte(pass), nil
}

// storePassphrase hands the passphrase to the configured helper, if any.
func (s *store) storePassphrase(ctx context.Context, pass []byte) {
	if !s.cfg.Headless() {
		return
	}
	if err := s.cfg.PassphraseCommand().Write(ctx, pass); err != nil {
		s.printf("⚠️  Could not store passphrase via passphrase command helper:\n")
		s.printf("   %v\n", err)
		s.printf("   Store the passphrase manually in your secrets backend.\n")
		return
	}
	s.printf("✓ Passphrase stored via passphrase command helper.\n")
}

type initOptions struct {
	importPhrase bool
	random       bool
	words        int
}

func (s *store) cmdInit(ctx context.Context, opts initOptions) error {
	s.printf("Seed Initialization\n")
	s.printf("===================\n\n")

	if _, err := os.Stat(s.cfg.SeedFile); err == nil {
		return fmt.Errorf("seed already initialized (%s exists)", s.cfg.SeedFile)
	}

	handler, err := mnemonic.NewBIP39Handler(opts.words)
	if err != nil {
		return err
	}

	var phrase string
	if opts.importPhrase {
		phrase, err = s.readSecret("Enter recovery phrase: ")
		if err != nil {
			return fmt.Errorf("failed to read recovery phrase: %w", err)
		}
		words := mnemonic.Split(phrase)
		if handler, err = mnemonic.NewBIP39Handler(len(words)); err != nil {
			return err
		}
		seed, err := handler.SeedFromMnemonic(words, "")
		if err != nil {
			return err
		}
		crypto.ZeroBytes(seed)
		phrase = strings.Join(words, " ")
	} else {
		var seed, entropy []byte
		phrase, seed, entropy, err = handler.GenerateMnemonic()
		if err != nil {
			return err
		}
		crypto.ZeroBytes(seed)
		crypto.ZeroBytes(entropy)

		s.printf("Recovery phrase (%d words). Write it down and keep it offline:\n\n", handler.WordCount())
		for i, w := range strings.Fields(phrase) {
			s.printf("  %2d. %s\n", i+1, w)
		}
		s.printf("\nType 'yes' once the phrase is written down: ")
		answer, err := s.readLine()
		if err != nil {
			return err
		}
		if answer != "yes" {
			return errors.New("aborted; no seed file written")
		}
	}
	s.printf("\n")

	if !opts.random {
		s.printf("Choose a strong passphrase. It encrypts the seed file and\n")
		s.printf("authenticates tzapprover.\n\n")
	}
	pass, err := s.newPassphrase(opts.random)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(pass)

	if err := crypto.WriteSeedFile(s.cfg.SeedFile, []byte(phrase), pass); err != nil {
		return err
	}
	s.printf("\n✓ Seed file written: %s\n\n", s.cfg.SeedFile)
	s.storePassphrase(ctx, pass)

	if err := s.printAddresses([]byte(phrase), client.DefaultPath); err != nil {
		return err
	}
	s.printf("\nYou can now start tzsignerd.\n")
	if !s.cfg.Headless() {
		s.printf("For headless operation, configure passphrase_command_argv in config.yaml.\n")
	}
	return nil
}

// cmdChangepass re-encrypts the seed file by writing a new file and renaming
// it over the old one.
func (s *store) cmdChangepass(ctx context.Context, random bool) error {
	if _, err := os.Stat(s.cfg.SeedFile); err != nil {
		return fmt.Errorf("no seed file at %s: run 'tzstore init' first", s.cfg.SeedFile)
	}
	oldPass, err := s.currentPassphrase(ctx)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(oldPass)

	phrase, err := crypto.ReadSeedFile(s.cfg.SeedFile, oldPass)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(phrase)

	newPass, err := s.newPassphrase(random)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(newPass)

	tmp := s.cfg.SeedFile + ".new"
	_ = os.Remove(tmp)
	if err := crypto.WriteSeedFile(tmp, phrase, newPass); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.cfg.SeedFile); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace seed file: %w", err)
	}
	s.printf("\n✓ Passphrase changed\n")
	s.storePassphrase(ctx, newPass)
	s.printf("Restart tzsignerd and tzapprover with the new passphrase.\n")
	return nil
}

// cmdAddress prints the account at path for every curve.
func (s *store) cmdAddress(ctx context.Context, path string) error {
	pass, err := s.currentPassphrase(ctx)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(pass)

	phrase, err := crypto.ReadSeedFile(s.cfg.SeedFile, pass)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(phrase)
	return s.printAddresses(phrase, path)
}

func (s *store) printAddresses(phrase []byte, pathStr string) error {
	path, err := client.ParsePath(pathStr)
	if err != nil {
		return err
	}
	words := mnemonic.Split(string(phrase))
	handler, err := mnemonic.NewBIP39Handler(len(words))
	if err != nil {
		return err
	}
	seed, err := handler.SeedFromMnemonic(words, "")
	if err != nil {
		return err
	}
	oracle, err := derivation.NewSeedOracle(seed)
	crypto.ZeroBytes(seed)
	if err != nil {
		return err
	}
	defer oracle.Destroy()
	deriver := derivation.NewDeriver(oracle)

	s.printf("Accounts at %s:\n", path)
	for _, curve := range []tezos.Curve{tezos.CurveEd25519, tezos.CurveSecp256k1, tezos.CurveP256} {
		key, err := deriver.Derive(curve, path)
		if err != nil {
			return fmt.Errorf("%s: %w", curve, err)
		}
		addr, err := key.Account.Address()
		if err != nil {
			return err
		}
		marker := ""
		if curve.String() == s.cfg.Curve {
			marker = "  (configured)"
		}
		s.printf("  %-10s %s%s\n", curve, util.FormatAddressWithColor(addr), marker)
	}
	return nil
}
