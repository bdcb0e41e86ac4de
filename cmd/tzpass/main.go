// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// tzpass is the passphrase command helper for headless tzsignerd. The
// signer injects the verb as the first argument:
//
//	tzpass read  <backend> <target>  prints the stored passphrase to stdout
//	tzpass write <backend> <target>  stores the passphrase read from stdin,
//	                                 then prints it back for round-trip verification
//
// Backends:
//
//	file           plaintext file, owner-only (INSECURE / DEV ONLY)
//	systemd-creds  credential encrypted with systemd-creds (TPM2 and/or host key).
//	               Reads prefer $CREDENTIALS_DIRECTORY, populated by
//	               LoadCredentialEncrypted=tzsigner-passphrase:<target>
//
// Usage in config.yaml:
//
//	passphrase_command_argv: ["/usr/local/bin/tzpass", "systemd-creds", "passphrase.cred"]
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// errUsage maps to exit status 2.
var errUsage = errors.New("usage: tzpass <read|write> <file|systemd-creds> <target>")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "tzpass: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) < 3 {
		return errUsage
	}
	verb, name, target := args[0], args[1], args[2]

	b, err := backendFor(name)
	if err != nil {
		return err
	}

	switch verb {
	case "read":
		pass, err := b.read(target)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		_, err = stdout.Write(pass)
		return err

	case "write":
		pass, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		if err := b.write(target, pass); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		// Read back so the caller verifies what was actually stored
		stored, err := b.read(target)
		if err != nil {
			return fmt.Errorf("verification read: %w", err)
		}
		_, err = stdout.Write(stored)
		return err
	}
	return fmt.Errorf("unknown verb %q (expected read or write): %w", verb, errUsage)
}
