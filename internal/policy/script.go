// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package policy makes automatic approval decisions: a static policy from
// the config file and an optional JavaScript policy script.
package policy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aplane-algo/tzsigner/internal/approval"
	"github.com/aplane-algo/tzsigner/internal/operation"
	"github.com/aplane-algo/tzsigner/internal/scripting"
	"github.com/aplane-algo/tzsigner/internal/util"
)

// DefaultScriptTimeout bounds a single decide() call.
const DefaultScriptTimeout = 2 * time.Second

// ErrNoDecide is returned when a script defines no decide function.
var ErrNoDecide = errors.New("policy script must define decide(request)")

// Script is a JavaScript policy. The script defines
//
//	function decide(request) { return "approve" | "reject" | "ask" }
//
// and is evaluated once at load time.
type Script struct {
	vm      *scripting.VM
	timeout time.Duration
	name    string
}

// LoadScript reads and evaluates the script at path.
func LoadScript(path string, timeout time.Duration) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy script: %w", err)
	}
	return NewScript(path, string(data), timeout)
}

// NewScript evaluates source. name is used in log lines.
func NewScript(name, source string, timeout time.Duration) (*Script, error) {
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	vm := scripting.New(func(msg string) {
		util.Logger.Info("policy script", "script", name, "msg", msg)
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := vm.Eval(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to evaluate policy script %s: %w", name, err)
	}
	if !vm.HasFunction("decide") {
		return nil, ErrNoDecide
	}
	return &Script{vm: vm, timeout: timeout, name: name}, nil
}

// Decide implements approval.Policy.
func (s *Script) Decide(ctx context.Context, req *approval.Request) (approval.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.vm.Call(ctx, "decide", newRequestView(req))
	if err != nil {
		return approval.Ask, err
	}
	if res == nil {
		return approval.Ask, nil
	}
	str, ok := res.(string)
	if !ok {
		return approval.Ask, fmt.Errorf("decide returned %T, want string", res)
	}
	d, err := approval.ParseDecision(str)
	if err != nil {
		return approval.Ask, err
	}
	util.Debug("policy script decision", "script", s.name, "kind", req.Kind, "decision", d)
	return d, nil
}

// requestView is what scripts see as `request`.
type requestView struct {
	Kind       string          `json:"kind"`
	Curve      string          `json:"curve"`
	Path       string          `json:"path"`
	Signer     string          `json:"signer"`
	Level      uint32          `json:"level"`
	TotalFee   uint64          `json:"total_fee"`
	Operations []operationView `json:"operations"`
}

type operationView struct {
	Kind        string `json:"kind"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
	Fee         uint64 `json:"fee"`
}

func newRequestView(req *approval.Request) *requestView {
	v := &requestView{
		Kind:       string(req.Kind),
		Curve:      req.Curve.String(),
		Path:       req.Path.String(),
		Signer:     req.Signer.String(),
		Level:      req.Baking.Level,
		Operations: []operationView{},
	}
	if req.Group != nil {
		v.TotalFee = req.Group.TotalFee
		for _, op := range req.Group.Ops() {
			v.Operations = append(v.Operations, newOperationView(op))
		}
	}
	return v
}

func newOperationView(op operation.Operation) operationView {
	return operationView{
		Kind:        op.Tag.String(),
		Source:      op.Source.String(),
		Destination: op.Destination.String(),
		Amount:      op.Amount,
		Fee:         op.Fee,
	}
}
