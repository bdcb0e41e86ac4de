// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package tui

import (
	"errors"
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aplane-algo/tzsigner/internal/protocol"
)

type response struct {
	id       string
	approved bool
	reason   string
}

type fakeResponder struct {
	sent      []response
	refreshes int
	err       error
}

func (f *fakeResponder) RequestStatus() error {
	f.refreshes++
	return f.err
}

func (f *fakeResponder) Respond(id string, approved bool, reason string) error {
	f.sent = append(f.sent, response{id, approved, reason})
	return f.err
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func request(id, kind string) SignRequestMsg {
	return SignRequestMsg{Request: protocol.SignRequestMessage{
		Header:      protocol.Header{Type: protocol.MsgTypeSignRequest, ID: id},
		Kind:        kind,
		Address:     "tz1VSUr8wwNhLAzempoch5d6hLRiTh8Cjcjb",
		Path:        "44'/1729'/0'/0'",
		Curve:       "ed25519",
		Description: "Endorse block at level 7",
		Level:       7,
	}}
}

// step applies msg and runs the returned command once, if any.
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	if cmd == nil {
		return model, nil
	}
	return model, cmd()
}

func TestQueueAndApprove(t *testing.T) {
	r := &fakeResponder{}
	m := NewModel(r, nil, "ipc.sock", protocol.StatusMessage{})

	m, _ = step(t, m, request("a", "endorsement"))
	m, _ = step(t, m, request("b", "block"))
	assert.Equal(t, 2, m.Pending())
	assert.Contains(t, m.View(), "Endorsement Request")

	m, out := step(t, m, keyMsg("y"))
	assert.Equal(t, respondedMsg{ID: "a", Approved: true}, out)
	assert.Equal(t, 1, m.Pending())
	assert.Contains(t, m.View(), "Block Signing Request")

	m, out = step(t, m, keyMsg("n"))
	assert.Equal(t, respondedMsg{ID: "b", Approved: false}, out)
	assert.Zero(t, m.Pending())
	assert.Contains(t, m.View(), "Waiting for signing requests")

	require.Len(t, r.sent, 2)
	assert.Equal(t, response{"a", true, ""}, r.sent[0])
	assert.Equal(t, response{"b", false, "rejected by user"}, r.sent[1])
	assert.Equal(t, 1, m.approved)
	assert.Equal(t, 1, m.rejected)
}

func TestFocusAndEnter(t *testing.T) {
	r := &fakeResponder{}
	m := NewModel(r, nil, "ipc.sock", protocol.StatusMessage{})
	m, _ = step(t, m, request("a", "operations"))

	m, _ = step(t, m, keyMsg("tab"))
	assert.Equal(t, 1, m.focus)
	_, out := step(t, m, keyMsg("enter"))
	assert.Equal(t, respondedMsg{ID: "a", Approved: false}, out)
}

func TestKeysWithoutRequestAreIgnored(t *testing.T) {
	r := &fakeResponder{}
	m := NewModel(r, nil, "ipc.sock", protocol.StatusMessage{})
	m, out := step(t, m, keyMsg("y"))
	assert.Nil(t, out)
	assert.Empty(t, r.sent)
	assert.False(t, m.quitting)
}

func TestCancelledRemovesRequest(t *testing.T) {
	m := NewModel(&fakeResponder{}, nil, "ipc.sock", protocol.StatusMessage{})
	m, _ = step(t, m, request("a", "endorsement"))
	m, _ = step(t, m, request("b", "endorsement"))
	m, _ = step(t, m, request("c", "endorsement"))

	m, _ = step(t, m, CancelledMsg{ID: "b", Reason: "timeout"})
	require.Equal(t, 2, m.Pending())
	assert.Equal(t, "a", m.queue[0].ID)
	assert.Equal(t, "c", m.queue[1].ID)

	m, _ = step(t, m, CancelledMsg{ID: "a", Reason: "timeout"})
	assert.Equal(t, "c", m.current().ID)
	assert.Contains(t, m.lastInfo, "timeout")
}

func TestRespondFailureIsShown(t *testing.T) {
	r := &fakeResponder{err: errors.New("broken pipe")}
	m := NewModel(r, nil, "ipc.sock", protocol.StatusMessage{})
	m, _ = step(t, m, request("a", "endorsement"))
	m, out := step(t, m, keyMsg("a"))
	m, _ = step(t, m, out)
	assert.Contains(t, m.lastError, "broken pipe")
}

func TestDisplacedQuits(t *testing.T) {
	m := NewModel(&fakeResponder{}, nil, "ipc.sock", protocol.StatusMessage{})
	m, out := step(t, m, DisplacedMsg{Reason: "another client"})
	assert.True(t, m.quitting)
	assert.Equal(t, tea.QuitMsg{}, out)
	assert.Contains(t, m.View(), "another client")
}

func TestStatusRefresh(t *testing.T) {
	r := &fakeResponder{}
	m := NewModel(r, nil, "ipc.sock", protocol.StatusMessage{Curve: "p256"})
	m, out := step(t, m, keyMsg("s"))
	assert.Nil(t, out)
	assert.Equal(t, 1, r.refreshes)

	m, _ = step(t, m, StatusMsg{Status: protocol.StatusMessage{State: "accumulating", Curve: "p256", Pending: 2}})
	assert.Equal(t, "accumulating", m.status.State)

	r.err = errors.New("closed")
	_, out = step(t, m, keyMsg("s"))
	assert.IsType(t, ServerErrorMsg{}, out)
}

// lines feeds canned wire lines and then fails.
type lines []string

func (l *lines) Next() (protocol.Envelope, error) {
	if len(*l) == 0 {
		return protocol.Envelope{}, io.EOF
	}
	raw := (*l)[0]
	*l = (*l)[1:]
	return protocol.Parse([]byte(raw))
}

func TestListen(t *testing.T) {
	ch := Listen(&lines{
		`{"type":"sign_request","id":"x","kind":"block","level":9}`,
		`{"type":"cancelled","id":"x","reason":"timeout"}`,
		`{"type":"status","state":"idle","curve":"p256"}`,
		`{"type":"unknown"}`,
		`{"type":"error","error":"boom"}`,
		`not json`,
	})

	var got []tea.Msg
	for msg := range ch {
		got = append(got, msg)
	}
	require.Len(t, got, 6)
	assert.Equal(t, uint32(9), got[0].(SignRequestMsg).Request.Level)
	assert.Equal(t, CancelledMsg{ID: "x", Reason: "timeout"}, got[1])
	assert.Equal(t, "p256", got[2].(StatusMsg).Status.Curve)
	assert.Equal(t, ServerErrorMsg{Error: "boom"}, got[3])
	assert.IsType(t, ServerErrorMsg{}, got[4])
	assert.Equal(t, DisconnectedMsg{Error: io.EOF}, got[5])
}

func TestHelpFollowsQueue(t *testing.T) {
	m := NewModel(&fakeResponder{}, nil, "ipc.sock", protocol.StatusMessage{})
	assert.Contains(t, m.View(), "s: refresh status | q: quit")
	assert.NotContains(t, m.View(), "y/a: approve")

	m, _ = step(t, m, request("a", "block"))
	assert.Contains(t, m.View(), "y/a: approve | n/r: reject")
}

func TestFocusKeys(t *testing.T) {
	m := NewModel(&fakeResponder{}, nil, "ipc.sock", protocol.StatusMessage{})
	m, _ = step(t, m, keyMsg("y"))
	assert.Zero(t, m.rejected+m.approved, "keys are ignored with an empty queue")

	m, _ = step(t, m, request("a", "block"))
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, 1, m.focus)
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, 0, m.focus)
	m, _ = step(t, m, keyMsg("tab"))
	m, _ = step(t, m, keyMsg("tab"))
	assert.Equal(t, 0, m.focus)
}
