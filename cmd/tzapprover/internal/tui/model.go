// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package tui is the tzapprover terminal interface: a queue of pending
// signing requests, answered one at a time.
package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aplane-algo/tzsigner/internal/protocol"
)

// Responder sends decisions and status requests back to the signer.
type Responder interface {
	Respond(requestID string, approved bool, reason string) error
	RequestStatus() error
}

// Model is the tzapprover application model.
type Model struct {
	responder Responder
	incoming  <-chan tea.Msg
	ipcPath   string

	// Signer status from the last status message
	status protocol.StatusMessage

	// Pending requests, oldest first. The head is on screen.
	queue    []protocol.SignRequestMessage
	focus    int            // 0 = approve, 1 = reject
	viewport viewport.Model // Scrollable description of the head request

	approved int
	rejected int

	lastInfo  string
	lastError string

	width  int
	height int

	quitting bool
}

// NewModel creates a model answering through responder and fed by incoming
// (see Listen).
func NewModel(responder Responder, incoming <-chan tea.Msg, ipcPath string, status protocol.StatusMessage) Model {
	return Model{
		responder: responder,
		incoming:  incoming,
		ipcPath:   ipcPath,
		status:    status,
		width:     100,
		height:    30,
	}
}

// Init starts listening for signer messages.
func (m Model) Init() tea.Cmd {
	return waitForMessage(m.incoming)
}

// Pending returns the number of queued requests.
func (m Model) Pending() int { return len(m.queue) }

// Err returns the last error shown, if any.
func (m Model) Err() string { return m.lastError }

// current returns the request on screen, or nil.
func (m Model) current() *protocol.SignRequestMessage {
	if len(m.queue) == 0 {
		return nil
	}
	return &m.queue[0]
}

// initViewport sizes the description viewport for the head request.
func (m *Model) initViewport() {
	req := m.current()
	if req == nil {
		return
	}

	vpHeight := min(12, m.height-16)
	vpHeight = max(vpHeight, 5)
	vpWidth := min(90, m.width-10)
	vpWidth = max(vpWidth, 60)

	m.viewport = viewport.New(vpWidth, vpHeight)
	m.viewport.SetContent(req.Description)
}
