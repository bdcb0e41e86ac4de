// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Quit     key.Binding
	Refresh  key.Binding
	Approve  key.Binding
	Reject   key.Binding
	Confirm  key.Binding
	Switch   key.Binding
	Left     key.Binding
	Right    key.Binding
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Refresh:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "refresh status")),
	Approve:  key.NewBinding(key.WithKeys("y", "a"), key.WithHelp("y/a", "approve")),
	Reject:   key.NewBinding(key.WithKeys("n", "r", "esc"), key.WithHelp("n/r", "reject")),
	Confirm:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "confirm")),
	Switch:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab/←→", "switch")),
	Left:     key.NewBinding(key.WithKeys("left")),
	Right:    key.NewBinding(key.WithKeys("right")),
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑↓/jk", "scroll")),
	Down:     key.NewBinding(key.WithKeys("down", "j")),
	PageUp:   key.NewBinding(key.WithKeys("pgup")),
	PageDown: key.NewBinding(key.WithKeys("pgdown")),
}

// idleKeys are active with an empty queue; requestKeys only with a request
// on screen.
func (k keyMap) idleKeys() []key.Binding    { return []key.Binding{k.Refresh, k.Quit} }
func (k keyMap) requestKeys() []key.Binding { return []key.Binding{k.Approve, k.Reject, k.Up, k.Switch, k.Confirm} }

// helpLine renders bindings as "key: desc | key: desc".
func helpLine(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if h := b.Help(); h.Key != "" {
			parts = append(parts, h.Key+": "+h.Desc)
		}
	}
	return strings.Join(parts, " | ")
}
