// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aplane-algo/tzsigner/internal/approval"
	"github.com/aplane-algo/tzsigner/internal/policy"
	"github.com/aplane-algo/tzsigner/internal/util"
)

const debounceDelay = 500 * time.Millisecond

// buildPolicy assembles the policy chain for cfg: the static settings first,
// then the script if one is configured.
func buildPolicy(cfg util.ServerConfig) (approval.Policy, error) {
	chain := policy.First{policy.Static{AutoApproveSign: cfg.AutoApproveSign}}
	if cfg.PolicyScript != "" {
		script, err := policy.LoadScript(cfg.PolicyScript, policy.DefaultScriptTimeout)
		if err != nil {
			return nil, err
		}
		chain = append(chain, script)
	}
	return chain, nil
}

// reloadPolicy re-reads the config and swaps in the new policy. On any error
// the previous policy stays in place.
func reloadPolicy(dataDir string, target *policy.Swappable) error {
	cfg, err := util.LoadServerConfig(dataDir)
	if err != nil {
		return err
	}
	p, err := buildPolicy(cfg)
	if err != nil {
		return err
	}
	target.Store(p)
	return nil
}

// startPolicyWatcher reloads the approval policy whenever config.yaml or the
// policy script changes. Settings other than the policy need a restart.
func startPolicyWatcher(ctx context.Context, dataDir string, scriptPath string, target *policy.Swappable) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch directories so editors that replace files are still seen
	dirs := map[string]bool{filepath.Clean(dataDir): true}
	if scriptPath != "" {
		dirs[filepath.Dir(scriptPath)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	watched := map[string]bool{filepath.Join(filepath.Clean(dataDir), util.ConfigFileName): true}
	if scriptPath != "" {
		watched[filepath.Clean(scriptPath)] = true
	}

	fmt.Println("✓ File watcher enabled - policy will auto-reload on changes")

	go func() {
		defer func() { _ = watcher.Close() }()

		var debounceTimer *time.Timer
		for {
			select {
			case <-ctx.Done():
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !watched[filepath.Clean(event.Name)] {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, func() {
					if err := reloadPolicy(dataDir, target); err != nil {
						fmt.Printf("⚠️  Error reloading policy: %v\n", err)
						return
					}
					fmt.Println("✓ Approval policy reloaded")
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fmt.Printf("⚠️  File watcher error: %v\n", err)
			}
		}
	}()
	return nil
}
