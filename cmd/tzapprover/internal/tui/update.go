// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package tui

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aplane-algo/tzsigner/internal/protocol"
	"github.com/aplane-algo/tzsigner/internal/util"
)

// Update applies one message to the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var listen bool

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.initViewport()

	case tea.KeyMsg:
		return m.onKey(msg)

	case SignRequestMsg:
		m.queue = append(m.queue, msg.Request)
		if len(m.queue) == 1 {
			m.showHead()
		}
		listen = true

	case CancelledMsg:
		m.withdraw(msg.ID)
		m.lastInfo = fmt.Sprintf("Request withdrawn by signer (%s)", msg.Reason)
		listen = true

	case StatusMsg:
		m.status = msg.Status
		listen = true

	case ServerErrorMsg:
		m.lastError = msg.Error
		listen = true

	case DisplacedMsg:
		return m.quit("Displaced: " + msg.Reason)

	case DisconnectedMsg:
		if m.quitting {
			return m, tea.Quit
		}
		reason := "Connection to signer lost"
		if msg.Error != nil {
			reason += ": " + msg.Error.Error()
		}
		return m.quit(reason)

	case respondedMsg:
		if msg.Err != nil {
			m.lastError = "Failed to send response: " + msg.Err.Error()
		}
	}

	if listen {
		return m, waitForMessage(m.incoming)
	}
	return m, nil
}

func (m Model) quit(reason string) (tea.Model, tea.Cmd) {
	m.lastError = reason
	m.quitting = true
	return m, tea.Quit
}

func (m Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, keys.Refresh):
		return m, refreshCmd(m.responder)
	case m.current() == nil:
		return m, nil
	case key.Matches(msg, keys.Approve):
		return m.answer(true)
	case key.Matches(msg, keys.Reject):
		return m.answer(false)
	case key.Matches(msg, keys.Confirm):
		return m.answer(m.focus == 0)
	case key.Matches(msg, keys.Left):
		m.focus = 0
	case key.Matches(msg, keys.Right):
		m.focus = 1
	case key.Matches(msg, keys.Switch):
		m.focus ^= 1
	case key.Matches(msg, keys.Up):
		m.viewport.ScrollUp(1)
	case key.Matches(msg, keys.Down):
		m.viewport.ScrollDown(1)
	case key.Matches(msg, keys.PageUp):
		m.viewport.PageUp()
	case key.Matches(msg, keys.PageDown):
		m.viewport.PageDown()
	}
	return m, nil
}

// answer responds to the request on screen and shows the next one.
func (m Model) answer(approved bool) (tea.Model, tea.Cmd) {
	req := m.queue[0]
	m.queue = slices.Delete(slices.Clone(m.queue), 0, 1)

	verb := "Rejected"
	if approved {
		verb = "Approved"
		m.approved++
	} else {
		m.rejected++
	}
	m.lastError = ""
	m.lastInfo = fmt.Sprintf("%s %s for %s", verb, req.Kind, util.ShortAddress(req.Address))
	m.showHead()
	return m, respondCmd(m.responder, req.ID, approved)
}

// withdraw drops a request the signer no longer waits for.
func (m *Model) withdraw(id string) {
	i := slices.IndexFunc(m.queue, func(r protocol.SignRequestMessage) bool { return r.ID == id })
	if i < 0 {
		return
	}
	m.queue = slices.Delete(slices.Clone(m.queue), i, i+1)
	if i == 0 {
		m.showHead()
	}
}

// showHead resets focus and the viewport for a new head request.
func (m *Model) showHead() {
	m.focus = 0
	m.initViewport()
}
