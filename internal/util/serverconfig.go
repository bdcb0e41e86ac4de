// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DataDirEnv names the environment variable holding the data directory.
const DataDirEnv = "TZSIGNER_DATA"

// ConfigFileName is the config file inside the data directory.
const ConfigFileName = "config.yaml"

// ServerConfig represents the signer configuration file
type ServerConfig struct {
	Curve      string `yaml:"curve" description:"Signing curve for every request: ed25519, secp256k1 or p256" default:"p256"`
	APDUSocket string `yaml:"apdu_socket" description:"Unix socket for framed APDU sessions" default:"tzsigner.apdu.sock"`
	IPCPath    string `yaml:"ipc_path" description:"Unix socket path for the approver interface" default:"tzsigner.ipc.sock"`
	SeedFile   string `yaml:"seed_file" description:"Encrypted BIP39 seed file" default:"seed.json"`
	// Approval settings
	ApprovalTimeout  string `yaml:"approval_timeout" description:"How long a request waits for the approver before it is rejected" default:"60s"`
	AutoApproveSign  bool   `yaml:"auto_approve_sign" description:"Approve every signing request without asking (use with caution)" default:"false"`
	ConfirmPublicKey bool   `yaml:"confirm_public_key" description:"Ask the approver before exporting a public key" default:"false"`
	PolicyScript     string `yaml:"policy_script" description:"JavaScript approval policy defining decide(request)"`
	// Headless unlock
	PassphraseCommandArgv []string          `yaml:"passphrase_command_argv" description:"Command to run to obtain/store the passphrase (argv[0] resolved relative to the data directory, which is also its working directory; verb 'read' or 'write' is injected as argv[1])"`
	PassphraseCommandEnv  map[string]string `yaml:"passphrase_command_env" description:"Environment variables to pass to the passphrase command (process env is never inherited)"`
	// Security settings
	RequireMemoryProtection bool   `yaml:"require_memory_protection" description:"Fail startup if memory protection unavailable" default:"false"`
	LogLevel                string `yaml:"log_level" description:"debug, info, warn or error" default:"info"`

	dataDir string
}

// ResolvePath resolves a path relative to baseDir if not absolute.
// Returns path unchanged if empty or already absolute.
func ResolvePath(path, baseDir string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// DefaultServerConfig returns the default server configuration.
// Relative paths are resolved against the data directory by LoadServerConfig.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Curve:           "p256",
		APDUSocket:      "tzsigner.apdu.sock",
		IPCPath:         "tzsigner.ipc.sock",
		SeedFile:        "seed.json",
		ApprovalTimeout: "60s",
		LogLevel:        "info",
	}
}

// GetSignerDataDir returns the data directory.
// It checks -d flag value first (passed as parameter), then TZSIGNER_DATA.
// Returns empty string if neither is set.
func GetSignerDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(DataDirEnv)
}

// RequireSignerDataDir resolves the data directory from the flag value or
// TZSIGNER_DATA. Exits if neither is set.
func RequireSignerDataDir(flagValue string) string {
	dir := GetSignerDataDir(flagValue)
	if dir == "" {
		fmt.Fprintln(os.Stderr, "Error: Data directory not specified")
		fmt.Fprintf(os.Stderr, "Use -d <path> or set %s environment variable\n", DataDirEnv)
		os.Exit(1)
	}
	return dir
}

// LoadServerConfig loads <dataDir>/config.yaml over the defaults. A missing
// file yields the defaults; a file that does not parse, or names an unknown
// field, is an error so a reload never silently drops settings.
func LoadServerConfig(dataDir string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if dataDir != "" {
		if err := cfg.merge(filepath.Join(dataDir, ConfigFileName)); err != nil {
			return DefaultServerConfig(), err
		}
	}
	if err := cfg.validate(); err != nil {
		return DefaultServerConfig(), err
	}

	cfg.dataDir = dataDir
	for _, p := range []*string{&cfg.APDUSocket, &cfg.IPCPath, &cfg.SeedFile, &cfg.PolicyScript} {
		*p = ResolvePath(*p, dataDir)
	}
	if len(cfg.PassphraseCommandArgv) > 0 {
		cfg.PassphraseCommandArgv[0] = ResolvePath(cfg.PassphraseCommandArgv[0], dataDir)
	}
	return cfg, nil
}

// merge decodes path on top of c. Keys absent from the file keep their
// current values.
func (c *ServerConfig) merge(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *ServerConfig) validate() error {
	if c.Curve == "" || c.APDUSocket == "" || c.IPCPath == "" || c.SeedFile == "" {
		return fmt.Errorf("curve, apdu_socket, ipc_path and seed_file must not be empty")
	}
	if _, err := ParseApprovalTimeout(c.ApprovalTimeout); err != nil {
		return err
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

// Headless reports whether the passphrase comes from a command.
func (c *ServerConfig) Headless() bool {
	return len(c.PassphraseCommandArgv) > 0
}

// PassphraseCommand returns the configured headless passphrase helper.
func (c *ServerConfig) PassphraseCommand() *PassphraseCommand {
	return &PassphraseCommand{
		Argv: c.PassphraseCommandArgv,
		Env:  c.PassphraseCommandEnv,
		Dir:  c.dataDir,
	}
}

// Timeout returns the parsed approval timeout.
func (c *ServerConfig) Timeout() time.Duration {
	d, _ := ParseApprovalTimeout(c.ApprovalTimeout)
	return d
}

// ParseApprovalTimeout parses a duration such as "30s" or "2m".
// Zero and negative durations are rejected: a request must not wait forever.
func ParseApprovalTimeout(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid approval_timeout %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("approval_timeout must be positive, got %q", s)
	}
	return d, nil
}
