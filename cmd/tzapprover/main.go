// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/aplane-algo/tzsigner/cmd/tzapprover/internal/tui"
	"github.com/aplane-algo/tzsigner/internal/crypto"
	"github.com/aplane-algo/tzsigner/internal/transport"
	"github.com/aplane-algo/tzsigner/internal/util"
	"github.com/aplane-algo/tzsigner/internal/version"
)

func main() {
	dataDir := flag.String("d", "", "Data directory (required, or set "+util.DataDirEnv+")")
	printVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()
	if *printVersion {
		fmt.Printf("tzapprover %s\n", version.String())
		os.Exit(0)
	}

	resolvedDataDir := util.RequireSignerDataDir(*dataDir)
	config, err := util.LoadServerConfig(resolvedDataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("tzapprover - Interactive Signing Approval\n")
	fmt.Printf("================================================\n")

	fmt.Print("Enter seed passphrase: ")
	passphraseBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nError reading passphrase: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()
	passphrase := string(passphraseBytes)
	crypto.ZeroBytes(passphraseBytes)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	approver, err := transport.DialApprover(ctx, config.IPCPath)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: is tzsignerd running? %v\n", err)
		os.Exit(1)
	}
	defer approver.Close()

	status, err := approver.Handshake(passphrase, 10*time.Second)
	if err != nil {
		switch {
		case errors.Is(err, transport.ErrAlreadyConnected):
			fmt.Fprintln(os.Stderr, "Error: Another tzapprover is authenticating, try again")
		case errors.Is(err, transport.ErrUnauthorized):
			fmt.Fprintln(os.Stderr, "Error: Wrong passphrase")
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	model := tui.NewModel(approver, tui.Listen(approver), config.IPCPath, *status)
	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	// The alt screen hides the last view
	if m, ok := final.(tui.Model); ok && m.Err() != "" {
		fmt.Fprintln(os.Stderr, m.Err())
		os.Exit(1)
	}
}
