// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/aplane-algo/tzsigner/internal/client"
	"github.com/aplane-algo/tzsigner/internal/derivation"
	"github.com/aplane-algo/tzsigner/internal/digest"
	"github.com/aplane-algo/tzsigner/internal/tezos"
	"github.com/aplane-algo/tzsigner/internal/util"
)

// errExit ends the REPL.
var errExit = errors.New("exit")

// shell runs tzclient commands against one signer connection.
type shell struct {
	c     *client.Client
	curve tezos.Curve
	out   io.Writer
}

var commandHelp = []struct{ name, usage string }{
	{"version", "version                  Show the signer version"},
	{"pubkey", "pubkey [path]            Show the public key and address at path"},
	{"sign", "sign [path] <hex>        Sign a payload and verify the signature"},
	{"raw", "raw <hex>                Send a raw APDU and show the reply"},
	{"help", "help                     Show this help"},
	{"exit", "exit                     End the session and quit"},
}

func newCompleter() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(commandHelp)+1)
	for _, c := range commandHelp {
		items = append(items, readline.PcItem(c.name))
	}
	items = append(items, readline.PcItem("quit"))
	return readline.NewPrefixCompleter(items...)
}

// execute runs one input line. errExit means the session is over.
func (s *shell) execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "version":
		return s.version()
	case "pubkey", "pk":
		return s.pubkey(args)
	case "sign":
		return s.sign(args)
	case "raw":
		return s.raw(args)
	case "help", "?":
		s.help()
		return nil
	case "exit", "quit":
		if err := s.c.Exit(); err != nil {
			return err
		}
		return errExit
	}
	return fmt.Errorf("unknown command %q (try 'help')", name)
}

func (s *shell) help() {
	fmt.Fprintln(s.out, "Commands:")
	for _, c := range commandHelp {
		fmt.Fprintf(s.out, "  %s\n", c.usage)
	}
	fmt.Fprintf(s.out, "Paths default to %s\n", client.DefaultPath)
}

func (s *shell) version() error {
	v, err := s.c.Version()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Signer version %s (class 0x%02X)\n", v, v.Class)
	return nil
}

func pathArg(args []string) (derivation.Path, error) {
	if len(args) == 0 {
		return client.ParsePath(client.DefaultPath)
	}
	return client.ParsePath(args[0])
}

func (s *shell) pubkey(args []string) error {
	if len(args) > 1 {
		return errors.New("usage: pubkey [path]")
	}
	path, err := pathArg(args)
	if err != nil {
		return err
	}
	pub, err := s.c.PublicKey(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Path:       %s\n", path)
	fmt.Fprintf(s.out, "Public key: %s\n", hex.EncodeToString(pub))

	addr, err := address(s.curve, pub)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Address:    %s\n", util.FormatAddressWithColor(addr))
	return nil
}

// address returns the implicit account address for a wire-form key.
func address(curve tezos.Curve, pub []byte) (string, error) {
	compressed, err := derivation.CompressPublicKey(curve, pub)
	if err != nil {
		return "", err
	}
	hash, err := tezos.PublicKeyHash(compressed)
	if err != nil {
		return "", err
	}
	return tezos.Implicit(curve, hash).Address()
}

func (s *shell) sign(args []string) error {
	var pathArgs []string
	switch len(args) {
	case 1:
	case 2:
		pathArgs = args[:1]
	default:
		return errors.New("usage: sign [path] <hex>")
	}
	payload, err := hex.DecodeString(args[len(args)-1])
	if err != nil {
		return fmt.Errorf("invalid payload hex: %w", err)
	}
	path, err := pathArg(pathArgs)
	if err != nil {
		return err
	}

	pub, err := s.c.PublicKey(path)
	if err != nil {
		return err
	}
	sig, err := s.c.Sign(path, payload)
	if err != nil {
		if errors.Is(err, client.ErrRejected) {
			fmt.Fprintln(s.out, "✗ Rejected by approver")
			return nil
		}
		return err
	}
	fmt.Fprintf(s.out, "Signature: %s\n", hex.EncodeToString(sig))

	sum := digest.Sum(payload)
	ok, err := derivation.Verify(s.curve, pub, sum[:], sig)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("signature does not verify against the public key")
	}
	fmt.Fprintln(s.out, "✓ Signature verified")
	return nil
}

func (s *shell) raw(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: raw <hex>")
	}
	cmd, err := hex.DecodeString(strings.Join(args, ""))
	if err != nil {
		return fmt.Errorf("invalid APDU hex: %w", err)
	}
	data, status, err := s.c.Raw(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Status: 0x%s\n", status)
	if len(data) > 0 {
		fmt.Fprintf(s.out, "Data:   %s\n", hex.EncodeToString(data))
	}
	return nil
}
