// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package protocol is the approver wire format: one JSON object per line on
// the tzsignerd IPC socket, each carrying a "type" and an optional "id".
//
// A session runs
//
//	signer   -> auth_required
//	approver -> auth {passphrase}
//	signer   -> auth_result {success}
//	signer   -> status
//
// after which the signer pushes sign_request, cancelled, status and
// displaced messages and the approver answers with sign_response or asks for
// a fresh status.
package protocol

const (
	MsgTypeAuthRequired = "auth_required"
	MsgTypeAuth         = "auth"
	MsgTypeAuthResult   = "auth_result"

	MsgTypeSignRequest  = "sign_request"
	MsgTypeSignResponse = "sign_response"
	MsgTypeCancelled    = "cancelled"
	MsgTypeStatus       = "status"
	MsgTypeDisplaced    = "displaced"
	MsgTypeError        = "error"
)

// Header is embedded in every message.
type Header struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

type AuthRequiredMessage struct {
	Header
}

// AuthMessage carries the seed passphrase.
type AuthMessage struct {
	Header
	Passphrase string `json:"passphrase"`
}

type AuthResultMessage struct {
	Header
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SignRequestMessage asks the approver about one signing request. Kind is
// one of public_key, operations, block or endorsement; the numeric fields
// are only set for the kinds they describe.
type SignRequestMessage struct {
	Header
	Kind        string `json:"kind"`
	Address     string `json:"address"`
	Path        string `json:"path"`
	Curve       string `json:"curve"`
	Description string `json:"description"`
	Timestamp   int64  `json:"timestamp"`
	Deadline    int64  `json:"deadline,omitempty"`
	TotalFee    uint64 `json:"total_fee,omitempty"` // mutez
	Level       uint32 `json:"level,omitempty"`
	Operations  int    `json:"operations,omitempty"`
}

type SignResponseMessage struct {
	Header
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// CancelledMessage withdraws a request after a timeout, a session reset or
// a handover to another approver.
type CancelledMessage struct {
	Header
	Reason string `json:"reason"`
}

type StatusMessage struct {
	Header
	State   string `json:"state"` // idle or accumulating
	Curve   string `json:"curve"`
	Version string `json:"version"`
	Pending int    `json:"pending"`
}

type ErrorMessage struct {
	Header
	Error string `json:"error"`
}

// DisplacedMessage tells an approver that a newer one took over.
type DisplacedMessage struct {
	Header
	Reason string `json:"reason"`
}
