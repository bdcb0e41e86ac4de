// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Command tzclient is a host-side console for a running tzsignerd: it sends
// version, public key and signing commands over the APDU socket.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"

	"github.com/aplane-algo/tzsigner/internal/client"
	"github.com/aplane-algo/tzsigner/internal/tezos"
	"github.com/aplane-algo/tzsigner/internal/util"
	"github.com/aplane-algo/tzsigner/internal/version"
)

func main() {
	dataDir := flag.String("d", "", "Data directory (required, or set "+util.DataDirEnv+")")
	command := flag.String("c", "", "Run a single command and exit")
	printVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()
	if *printVersion {
		fmt.Printf("tzclient %s\n", version.String())
		os.Exit(0)
	}

	config, err := util.LoadServerConfig(util.RequireSignerDataDir(*dataDir))
	check(err)
	curve, err := tezos.ParseCurve(config.Curve)
	check(err)
	c, err := client.Dial(config.APDUSocket)
	check(err)
	defer c.Close()

	sh := &shell{c: c, curve: curve, out: os.Stdout}
	if *command != "" {
		if err := sh.execute(*command); !errors.Is(err, errExit) {
			check(err)
		}
		return
	}

	fmt.Printf("tzclient %s - connected to %s (%s)\n", version.String(), config.APDUSocket, curve)
	fmt.Println("Type 'help' for commands")
	runREPL(sh)
}

func check(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "tzclient: %v\n", err)
		os.Exit(1)
	}
}

func runREPL(sh *shell) {
	homeDir, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "\033[32mtz>\033[0m ",
		HistoryFile:       filepath.Join(homeDir, ".tzclient_history"),
		HistoryLimit:      1000,
		AutoComplete:      newCompleter(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Printf("Failed to create readline instance, falling back to basic input: %v\n", err)
		runBasicREPL(sh, os.Stdin)
		return
	}
	defer func() {
		_ = rl.Close()
	}()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					fmt.Println("Use 'quit' or 'exit' to exit")
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error: %v\n", err)
			return
		}
		if !step(sh, line) {
			return
		}
	}
}

func runBasicREPL(sh *shell, in io.Reader) {
	fmt.Println("Running in basic mode (no history/completion)")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Print("tz> ")
		if !scanner.Scan() {
			return
		}
		if !step(sh, scanner.Text()) {
			return
		}
	}
}

// step runs one line and reports whether the REPL should continue.
func step(sh *shell, line string) bool {
	err := sh.execute(line)
	switch {
	case err == nil:
		return true
	case errors.Is(err, errExit):
		fmt.Fprintln(sh.out, "Goodbye!")
		return false
	}
	fmt.Fprintf(sh.out, "Error: %v\n", err)
	return true
}
