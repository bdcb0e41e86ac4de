// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"fmt"
	"strings"

	"github.com/aplane-algo/tzsigner/internal/security"
	"github.com/aplane-algo/tzsigner/internal/util"
)

// auditLine formats one row of the audit box; the content is 60 columns wide.
func auditLine(label, value string, warn bool) string {
	if warn {
		value += " [!]"
	} else {
		value += " [OK]"
	}
	content := fmt.Sprintf("  %-19s%s", label+":", value)
	if len(content) > 60 {
		content = content[:57] + "..."
	}
	return fmt.Sprintf("│%-60s│", content)
}

func shortenPath(p string, limit int) string {
	if len(p) <= limit {
		return p
	}
	return "..." + p[len(p)-(limit-3):]
}

// securityAudit renders the consolidated startup summary.
func securityAudit(cfg *util.ServerConfig, report security.Report, passphraseSource string) []string {
	lines := []string{
		"┌────────────────────────────────────────────────────────────┐",
		"│                    Security Configuration                  │",
		"├────────────────────────────────────────────────────────────┤",
	}

	switch passphraseSource {
	case sourceEnv:
		lines = append(lines, auditLine("Passphrase source", "env var (testing)", true))
	case sourceCommand:
		lines = append(lines, auditLine("Passphrase source", "passphrase command", false))
	default:
		lines = append(lines, auditLine("Passphrase source", "terminal", false))
	}

	lines = append(lines, auditLine("Signing curve", cfg.Curve, false))
	if cfg.AutoApproveSign {
		lines = append(lines, auditLine("Auto-approve", "ALL signatures", true))
	} else {
		lines = append(lines, auditLine("Auto-approve", "disabled", false))
	}
	if cfg.PolicyScript != "" {
		lines = append(lines, auditLine("Policy script", shortenPath(cfg.PolicyScript, 30), false))
	}
	lines = append(lines, auditLine("Approval timeout", cfg.Timeout().String(), false))
	lines = append(lines, auditLine("Confirm pubkey", fmt.Sprintf("%v", cfg.ConfirmPublicKey), !cfg.ConfirmPublicKey))

	for _, sock := range []struct{ label, path string }{
		{"IPC path", cfg.IPCPath},
		{"APDU socket", cfg.APDUSocket},
	} {
		insecure := strings.HasPrefix(sock.path, "/tmp") || strings.HasPrefix(sock.path, "/var/tmp")
		lines = append(lines, auditLine(sock.label, shortenPath(sock.path, 30), insecure))
	}

	if report.CoreDumpsDisabled {
		lines = append(lines, auditLine("Core dumps", "disabled", false))
	} else {
		lines = append(lines, auditLine("Core dumps", "enabled", true))
	}
	if report.NotDumpable {
		lines = append(lines, auditLine("ptrace/dumpable", "blocked", false))
	} else {
		lines = append(lines, auditLine("ptrace/dumpable", "allowed", true))
	}
	if report.MemoryLocked {
		lines = append(lines, auditLine("Memory locked", "yes", false))
	} else {
		lines = append(lines, auditLine("Memory locked", "no", true))
	}

	return append(lines, "└────────────────────────────────────────────────────────────┘")
}

func printSecurityAudit(cfg *util.ServerConfig, report security.Report, passphraseSource string) {
	fmt.Println()
	for _, line := range securityAudit(cfg, report, passphraseSource) {
		fmt.Println(line)
	}
}
