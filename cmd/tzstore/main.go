// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Command tzstore creates and maintains the encrypted seed file read by
// tzsignerd.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/aplane-algo/tzsigner/internal/client"
	"github.com/aplane-algo/tzsigner/internal/util"
	"github.com/aplane-algo/tzsigner/internal/version"
)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" {
			fmt.Printf("tzstore %s\n", version.String())
			os.Exit(0)
		}
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tzstore - Signer seed management\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  tzstore [-d path] init [--import] [--random] [--words N]\n")
		fmt.Fprintf(os.Stderr, "  tzstore [-d path] changepass [--random]\n")
		fmt.Fprintf(os.Stderr, "  tzstore [-d path] address [path]\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		fmt.Fprintf(os.Stderr, "  -d path              Data directory (or set %s env var)\n", util.DataDirEnv)
		fmt.Fprintf(os.Stderr, "  --import             Import an existing recovery phrase (init)\n")
		fmt.Fprintf(os.Stderr, "  --random             Generate random passphrase (init, changepass)\n")
		fmt.Fprintf(os.Stderr, "  --words N            Recovery phrase length: 12, 15, 18, 21 or 24 (init)\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tzstore init\n")
		fmt.Fprintf(os.Stderr, "  tzstore init --import\n")
		fmt.Fprintf(os.Stderr, "  tzstore changepass --random\n")
		fmt.Fprintf(os.Stderr, "  tzstore address \"m/44'/1729'/1'/0'\"\n")
	}

	dataDir := flag.String("d", "", "Data directory (required, or set "+util.DataDirEnv+")")
	flag.Parse()

	resolvedDataDir := util.RequireSignerDataDir(*dataDir)
	config, err := util.LoadServerConfig(resolvedDataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	s := newStore(config)

	switch args[0] {
	case "init":
		opts, err := parseInitArgs(args[1:])
		if err == nil {
			err = s.cmdInit(ctx, opts)
		}
		exitOnError(err)

	case "changepass":
		random := len(args) > 1 && args[1] == "--random"
		exitOnError(s.cmdChangepass(ctx, random))

	case "address":
		path := client.DefaultPath
		if len(args) > 1 {
			path = args[1]
		}
		exitOnError(s.cmdAddress(ctx, path))

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseInitArgs(args []string) (initOptions, error) {
	var opts initOptions
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--import":
			opts.importPhrase = true
		case "--random":
			opts.random = true
		case "--words":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("--words needs a value")
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return opts, fmt.Errorf("invalid word count %q", args[i])
			}
			opts.words = n
		default:
			return opts, fmt.Errorf("unknown init option %q", args[i])
		}
	}
	return opts, nil
}
