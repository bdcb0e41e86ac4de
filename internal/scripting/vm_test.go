// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package scripting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalAndCall(t *testing.T) {
	var printed []string
	vm := New(func(s string) { printed = append(printed, s) })
	ctx := context.Background()

	got, err := vm.Eval(ctx, `function double(x) { print("doubling", x); return x * 2 }; 1 + 1`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got)
	assert.True(t, vm.HasFunction("double"))
	assert.False(t, vm.HasFunction("triple"))

	got, err = vm.Call(ctx, "double", 21)
	require.NoError(t, err)
	assert.EqualValues(t, 42, got)
	assert.Equal(t, []string{"doubling 21"}, printed)

	got, err = vm.Eval(ctx, `undefined`)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestJSONFieldNames(t *testing.T) {
	type view struct {
		TotalFee uint64 `json:"total_fee"`
	}
	vm := New(nil)
	_, err := vm.Eval(context.Background(), `function fee(r) { return r.total_fee }`)
	require.NoError(t, err)
	got, err := vm.Call(context.Background(), "fee", &view{TotalFee: 1269})
	require.NoError(t, err)
	assert.EqualValues(t, 1269, got)
}

func TestErrors(t *testing.T) {
	vm := New(nil)
	ctx := context.Background()

	_, err := vm.Eval(ctx, `throw new Error("boom")`)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Message, "boom")
	assert.False(t, se.Interrupted)

	_, err = vm.Call(ctx, "missing")
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Message, "not a function")

	_, err = vm.Eval(ctx, `function (`)
	assert.Error(t, err)
}

func TestInterruptOnDeadline(t *testing.T) {
	vm := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := vm.Eval(ctx, `for (;;) {}`)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Interrupted)
	assert.Less(t, time.Since(start), 2*time.Second)

	// Usable again afterwards
	got, err := vm.Eval(context.Background(), `"alive"`)
	require.NoError(t, err)
	assert.Equal(t, "alive", got)
}

func TestCancelledBeforeRun(t *testing.T) {
	vm := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := vm.Eval(ctx, `1`)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Interrupted)
}
