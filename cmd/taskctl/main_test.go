// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/taskdeck/internal/platform/apperr"
)

/*
TestExitCode maps command outcomes to exit statuses.
*/
func TestExitCode(t *testing.T) {
	timedOut := apperr.Network(fmt.Errorf("transport_request_failed: %w", context.DeadlineExceeded))
	refused := apperr.Network(errors.New("connection refused"))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want int
	}{
		{"success", context.Background(), nil, exitOK},
		{"timeout", context.Background(), timedOut, exitTimeout},
		{"unreachable", context.Background(), refused, exitFailure},
		{"validation", context.Background(), apperr.ValidationError("bad"), exitFailure},
		{"interrupted", cancelled, refused, exitInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.ctx, tt.err))
		})
	}
}

/*
TestReport_TimeoutMessage keeps the network code and names the timeout.
*/
func TestReport_TimeoutMessage(t *testing.T) {
	var out bytes.Buffer
	report(&out, apperr.Network(fmt.Errorf("transport_request_failed: %w", context.DeadlineExceeded)))

	var body map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Equal(t, apperr.CodeNetwork, body["code"])
	assert.Equal(t, "The task service did not answer in time", body["error"])

	out.Reset()
	report(&out, errors.New("boom"))
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Equal(t, apperr.CodeInternal, body["code"])
	assert.Equal(t, "boom", body["error"])
}
