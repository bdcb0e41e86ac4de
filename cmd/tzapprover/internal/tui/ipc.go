// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package tui

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aplane-algo/tzsigner/internal/protocol"
)

// Tea messages for signer events

// SignRequestMsg carries a new request for the queue.
type SignRequestMsg struct {
	Request protocol.SignRequestMessage
}

// CancelledMsg withdraws a queued request.
type CancelledMsg struct {
	ID     string
	Reason string
}

// StatusMsg is a signer status update.
type StatusMsg struct {
	Status protocol.StatusMessage
}

// DisplacedMsg is sent when another tzapprover took over.
type DisplacedMsg struct {
	Reason string
}

// ServerErrorMsg is an error reported by the signer.
type ServerErrorMsg struct {
	Error string
}

// DisconnectedMsg ends the session.
type DisconnectedMsg struct {
	Error error
}

// respondedMsg reports the outcome of sending a decision.
type respondedMsg struct {
	ID       string
	Approved bool
	Err      error
}

// Source yields messages pushed by the signer.
type Source interface {
	Next() (protocol.Envelope, error)
}

// Listen pumps src into tea messages until it fails. The channel is closed
// after the DisconnectedMsg.
func Listen(src Source) <-chan tea.Msg {
	ch := make(chan tea.Msg, 16)
	go func() {
		defer close(ch)
		for {
			env, err := src.Next()
			switch {
			case errors.Is(err, protocol.ErrMalformed):
				ch <- ServerErrorMsg{Error: fmt.Sprintf("invalid message from signer: %v", err)}
				continue
			case err != nil:
				ch <- DisconnectedMsg{Error: err}
				return
			}
			if msg := decode(env); msg != nil {
				ch <- msg
			}
		}
	}()
	return ch
}

// decode maps one wire message to its tea message; unknown types are dropped.
func decode(env protocol.Envelope) tea.Msg {
	switch env.Type {
	case protocol.MsgTypeSignRequest:
		var req protocol.SignRequestMessage
		if err := env.Decode(&req); err != nil {
			return ServerErrorMsg{Error: "invalid sign request"}
		}
		return SignRequestMsg{Request: req}

	case protocol.MsgTypeCancelled:
		var msg protocol.CancelledMessage
		_ = env.Decode(&msg)
		return CancelledMsg{ID: msg.ID, Reason: msg.Reason}

	case protocol.MsgTypeStatus:
		var msg protocol.StatusMessage
		if err := env.Decode(&msg); err != nil {
			return nil
		}
		return StatusMsg{Status: msg}

	case protocol.MsgTypeDisplaced:
		var msg protocol.DisplacedMessage
		_ = env.Decode(&msg)
		return DisplacedMsg{Reason: msg.Reason}

	case protocol.MsgTypeError:
		var msg protocol.ErrorMessage
		_ = env.Decode(&msg)
		return ServerErrorMsg{Error: msg.Error}
	}
	return nil
}

// waitForMessage returns a tea.Cmd that waits for the next signer message.
func waitForMessage(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// refreshCmd asks the signer for a new status message.
func refreshCmd(r Responder) tea.Cmd {
	return func() tea.Msg {
		if err := r.RequestStatus(); err != nil {
			return ServerErrorMsg{Error: fmt.Sprintf("status request failed: %v", err)}
		}
		return nil
	}
}

// respondCmd returns a tea.Cmd that sends a decision.
func respondCmd(r Responder, requestID string, approved bool) tea.Cmd {
	return func() tea.Msg {
		reason := ""
		if !approved {
			reason = "rejected by user"
		}
		return respondedMsg{ID: requestID, Approved: approved, Err: r.Respond(requestID, approved, reason)}
	}
}
