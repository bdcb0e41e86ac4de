// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aplane-algo/tzsigner/internal/approval"
	"github.com/aplane-algo/tzsigner/internal/derivation"
	"github.com/aplane-algo/tzsigner/internal/operation"
	"github.com/aplane-algo/tzsigner/internal/scripting"
	"github.com/aplane-algo/tzsigner/internal/tezos"
)

const bakerScript = `
function decide(request) {
	if (request.kind === "endorsement") {
		return "approve";
	}
	if (request.kind === "block" && request.level > 1000) {
		return "reject";
	}
	if (request.kind === "operations" && request.total_fee > 10000) {
		return "reject";
	}
	return "ask";
}
`

func request(t *testing.T, kind approval.Kind) *approval.Request {
	t.Helper()
	p, err := derivation.NewPath(44|derivation.Hardened, 1729|derivation.Hardened)
	require.NoError(t, err)
	return &approval.Request{Kind: kind, Curve: tezos.CurveEd25519, Path: p}
}

func TestScriptDecisions(t *testing.T) {
	s, err := NewScript("baker.js", bakerScript, time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	d, err := s.Decide(ctx, request(t, approval.KindEndorsement))
	require.NoError(t, err)
	assert.Equal(t, approval.Approve, d)

	block := request(t, approval.KindBlock)
	block.Baking = operation.BakingData{Level: 1001}
	d, err = s.Decide(ctx, block)
	require.NoError(t, err)
	assert.Equal(t, approval.Reject, d)

	block.Baking.Level = 10
	d, err = s.Decide(ctx, block)
	require.NoError(t, err)
	assert.Equal(t, approval.Ask, d)

	ops := request(t, approval.KindOperations)
	ops.Group = &operation.Group{TotalFee: 20000}
	d, err = s.Decide(ctx, ops)
	require.NoError(t, err)
	assert.Equal(t, approval.Reject, d)
}

func TestScriptSeesPathAndCurve(t *testing.T) {
	s, err := NewScript("path.js", `
function decide(r) {
	return (r.path === "44'/1729'" && r.curve === "ed25519" && r.operations.length === 0) ? "approve" : "reject";
}`, time.Second)
	require.NoError(t, err)

	d, err := s.Decide(context.Background(), request(t, approval.KindBlock))
	require.NoError(t, err)
	assert.Equal(t, approval.Approve, d)
}

func TestScriptBadResults(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   approval.Decision
		err    bool
	}{
		{"undefined", `function decide(r) {}`, approval.Ask, false},
		{"number", `function decide(r) { return 1 }`, approval.Ask, true},
		{"unknown word", `function decide(r) { return "maybe" }`, approval.Ask, true},
		{"throws", `function decide(r) { throw new Error("boom") }`, approval.Ask, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScript(tt.name, tt.source, time.Second)
			require.NoError(t, err)
			d, err := s.Decide(context.Background(), request(t, approval.KindBlock))
			assert.Equal(t, tt.want, d)
			if tt.err {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScriptWithoutDecide(t *testing.T) {
	_, err := NewScript("empty.js", `var x = 1;`, time.Second)
	assert.ErrorIs(t, err, ErrNoDecide)

	_, err = NewScript("syntax.js", `function decide(`, time.Second)
	assert.Error(t, err)
}

func TestScriptTimeoutInterrupts(t *testing.T) {
	s, err := NewScript("loop.js", `
function decide(r) {
	if (r.kind === "block") { while (true) {} }
	return "approve";
}`, 50*time.Millisecond)
	require.NoError(t, err)

	_, err = s.Decide(context.Background(), request(t, approval.KindBlock))
	var se *scripting.Error
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Interrupted)

	// The runtime stays usable after an interrupt.
	d, err := s.Decide(context.Background(), request(t, approval.KindEndorsement))
	require.NoError(t, err)
	assert.Equal(t, approval.Approve, d)
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.js")
	require.NoError(t, os.WriteFile(path, []byte(bakerScript), 0600))

	s, err := LoadScript(path, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultScriptTimeout, s.timeout)

	_, err = LoadScript(filepath.Join(t.TempDir(), "missing.js"), 0)
	assert.Error(t, err)
}

func TestStaticPolicy(t *testing.T) {
	ctx := context.Background()

	d, err := Static{AutoApproveSign: true}.Decide(ctx, request(t, approval.KindOperations))
	require.NoError(t, err)
	assert.Equal(t, approval.Approve, d)

	d, err = Static{AutoApproveSign: true}.Decide(ctx, request(t, approval.KindPublicKey))
	require.NoError(t, err)
	assert.Equal(t, approval.Ask, d)

	d, err = Static{}.Decide(ctx, request(t, approval.KindBlock))
	require.NoError(t, err)
	assert.Equal(t, approval.Ask, d)
}

type fixed struct {
	d   approval.Decision
	err error
}

func (f fixed) Decide(context.Context, *approval.Request) (approval.Decision, error) {
	return f.d, f.err
}

func TestFirst(t *testing.T) {
	ctx := context.Background()
	req := request(t, approval.KindBlock)

	d, err := First{fixed{d: approval.Ask}, nil, fixed{d: approval.Reject}}.Decide(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, approval.Reject, d)

	boom := errors.New("boom")
	_, err = First{fixed{err: boom}, fixed{d: approval.Approve}}.Decide(ctx, req)
	assert.ErrorIs(t, err, boom)

	d, err = First{}.Decide(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, approval.Ask, d)
}

func TestSwappable(t *testing.T) {
	ctx := context.Background()
	req := request(t, approval.KindBlock)

	s := NewSwappable(nil)
	d, err := s.Decide(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, approval.Ask, d)

	s.Store(fixed{d: approval.Approve})
	d, err = s.Decide(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, approval.Approve, d)

	ok, err := approval.Chain(s, nil).Approve(ctx, req)
	require.NoError(t, err)
	assert.True(t, ok)
}
