package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"gymwatch/internal/app"
)

func TestOutcome(t *testing.T) {
	boom := errors.New("status.http: address in use")
	cases := []struct {
		name   string
		runErr error
		ctxErr error
		reason app.StopReason
		code   int
	}{
		{"interrupt", nil, context.Canceled, app.StopSignal, 0},
		{"run once", nil, nil, app.StopRunOnce, 0},
		{"background failure", boom, nil, app.StopFatal, 1},
		{"failure during interrupt", boom, context.Canceled, app.StopFatal, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reason, code := outcome(tc.runErr, tc.ctxErr)
			assert.Equal(t, tc.reason, reason)
			assert.Equal(t, tc.code, code)
		})
	}
}

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()
	f := cmd.Flags()
	assert.Equal(t, "./config.yaml", f.Lookup("config").DefValue)
	assert.NotNil(t, f.Lookup("once"))
	assert.NotNil(t, f.Lookup("debug"))
	assert.Error(t, cmd.Args(cmd, []string{"extra"}))
}
