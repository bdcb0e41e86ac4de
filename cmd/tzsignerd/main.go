// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aplane-algo/tzsigner/internal/approval"
	"github.com/aplane-algo/tzsigner/internal/crypto"
	"github.com/aplane-algo/tzsigner/internal/derivation"
	"github.com/aplane-algo/tzsigner/internal/engine"
	"github.com/aplane-algo/tzsigner/internal/policy"
	"github.com/aplane-algo/tzsigner/internal/security"
	"github.com/aplane-algo/tzsigner/internal/tezos"
	"github.com/aplane-algo/tzsigner/internal/util"
	"github.com/aplane-algo/tzsigner/internal/version"
)

func main() {
	printVersion := flag.Bool("version", false, "Print version and exit")
	dataDir := flag.String("d", "", "Data directory (required, or set "+util.DataDirEnv+")")
	flag.Parse()
	if *printVersion {
		fmt.Printf("tzsignerd %s\n", version.String())
		os.Exit(0)
	}

	resolvedDataDir := util.RequireSignerDataDir(*dataDir)

	config, err := util.LoadServerConfig(resolvedDataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	util.InitLogger(config.LogLevel)

	fmt.Println("tzsigner - Tezos Signing Device")
	fmt.Println("============================================")
	fmt.Printf("Data directory: %s\n", resolvedDataDir)

	curve, err := tezos.ParseCurve(config.Curve)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: config curve: %v\n", err)
		os.Exit(1)
	}

	// Memory Security: disable core dumps and lock memory before the seed is read.
	// DISABLE_MEMORY_LOCK skips locking (testing, containers without CAP_IPC_LOCK).
	report, err := security.Harden(config.RequireMemoryProtection, os.Getenv("DISABLE_MEMORY_LOCK") != "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup validation failed: %v\n", err)
		os.Exit(1)
	}
	if report.CoreDumpsDisabled {
		fmt.Println("✓ Core dumps disabled")
	}
	if report.MemoryLocked {
		fmt.Println("✓ Memory locked (seed will not swap to disk)")
	}

	if _, err := os.Stat(config.SeedFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: seed file %s not found\n", config.SeedFile)
		fmt.Fprintln(os.Stderr, "Run 'tzstore init' to create it")
		os.Exit(1)
	}

	passphraseBytes, passphraseSource, err := readPassphrase(context.Background(), &config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	oracle, err := unlockSeed(config.SeedFile, passphraseBytes)
	if err != nil {
		crypto.ZeroBytes(passphraseBytes)
		fmt.Fprintf(os.Stderr, "Error: unlocking seed: %v\n", err)
		os.Exit(1)
	}
	// The same passphrase authenticates tzapprover
	passphrase := crypto.NewSecret(passphraseBytes)
	crypto.ZeroBytes(passphraseBytes)
	fmt.Printf("🔓 Seed unlocked (%s)\n", passphraseSource)

	pol, err := buildPolicy(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading policy: %v\n", err)
		os.Exit(1)
	}
	policies := policy.NewSwappable(pol)

	ipcServer := NewIPCServer(config.IPCPath, passphrase, config.Timeout())
	approver := approval.Chain(policies, ipcServer.Hub())

	major, minor, patch := version.Triple()
	eng := engine.New(derivation.NewDeriver(oracle), approver,
		engine.WithCurve(curve),
		engine.WithPublicKeyConfirmation(config.ConfirmPublicKey),
		engine.WithVersion(major, minor, patch),
	)
	apduServer := NewAPDUServer(config.APDUSocket, eng)

	ipcServer.session = apduServer
	ipcServer.curve = curve.String()
	ipcServer.version = version.String()

	if err := ipcServer.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to start IPC server: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Approver interface: IPC (%s)\n", config.IPCPath)

	if err := apduServer.Start(); err != nil {
		ipcServer.Stop()
		fmt.Fprintf(os.Stderr, "Error: Failed to start APDU server: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Device interface: APDU (%s)\n", config.APDUSocket)

	watcherCtx, watcherCancel := context.WithCancel(context.Background())
	defer watcherCancel()
	if err := startPolicyWatcher(watcherCtx, resolvedDataDir, config.PolicyScript, policies); err != nil {
		fmt.Printf("⚠️  Warning: Failed to start file watcher: %v\n", err)
		fmt.Println("Policy changes need a restart")
	}

	printSecurityAudit(&config, report, passphraseSource)
	if !config.Headless() && config.AutoApproveSign {
		fmt.Println("\n⚠️  auto_approve_sign:true - ALL signatures will be produced without confirmation")
	}
	fmt.Println(strings.Repeat("=", 50))
	util.Logger.Info("signer ready", "curve", curve.String(), "version", version.String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\n\n[*] Shutdown signal received, cleaning up...")

	watcherCancel()
	fmt.Println("[*] Shutting down APDU server...")
	apduServer.Stop()
	fmt.Println("[*] Shutting down IPC server...")
	ipcServer.Stop()

	fmt.Println("[*] Zeroing seed and passphrase...")
	oracle.Destroy()
	passphrase.Destroy()

	fmt.Println("[✓] Shutdown complete")
}
