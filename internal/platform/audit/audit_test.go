// Copyright (c) 2026 Stokria. All rights reserved.

package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokria/stokria/internal/platform/audit"
	"github.com/stokria/stokria/internal/platform/ctxutil"
	"github.com/stokria/stokria/internal/platform/sec"
)

/*
TestMemoryRecorder verifies recording order, the kind split, and Find.
*/
func TestMemoryRecorder(t *testing.T) {
	recorder := audit.NewMemoryRecorder()
	ctx := context.Background()

	recorder.Security(ctx, "auth_token_invalid", audit.SeverityMedium, map[string]any{"ip": "203.0.113.7"})
	recorder.Access(ctx, "request_authenticated", map[string]any{"user_id": "u1"})

	events := recorder.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "security", events[0].Kind)
	assert.Equal(t, "access", events[1].Kind)

	event, found := recorder.Find("auth_token_invalid")
	require.True(t, found)
	assert.Equal(t, audit.SeverityMedium, event.Severity)
	assert.Equal(t, "203.0.113.7", event.Fields["ip"])

	_, found = recorder.Find("never_recorded")
	assert.False(t, found)
}

/*
TestMemoryRecorder_Concurrent verifies the sink tolerates concurrent writers.
*/
func TestMemoryRecorder_Concurrent(t *testing.T) {
	recorder := audit.NewMemoryRecorder()
	ctx := context.Background()

	var waitGroup sync.WaitGroup
	for i := 0; i < 32; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			recorder.Security(ctx, "probe", audit.SeverityLow, nil)
		}()
	}
	waitGroup.Wait()

	assert.Len(t, recorder.Events(), 32)
}

/*
TestSlogRecorder verifies the JSON line shape: level, severity, and the
request-scoped enrichment pulled from context.
*/
func TestSlogRecorder(t *testing.T) {
	var buffer bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buffer, nil))
	recorder := audit.NewSlogRecorder(logger)

	ctx := ctxutil.WithRequestID(context.Background(), "req-42")
	ctx = ctxutil.WithIdentity(ctx, &sec.Identity{ID: "u1", Active: true})

	recorder.Security(ctx, "cross_tenant_access_attempt", audit.SeverityHigh, map[string]any{
		"target_company": "c2",
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &line))

	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "security_event", line["audit"])
	assert.Equal(t, "cross_tenant_access_attempt", line["event"])
	assert.Equal(t, "high", line["severity"])
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, "u1", line["user_id"])
	assert.Equal(t, "c2", line["target_company"])

	buffer.Reset()
	recorder.Access(ctx, "login_succeeded", nil)

	// Fresh map: unmarshalling into a populated one merges keys.
	line = map[string]any{}
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &line))
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "access_event", line["audit"])
	assert.NotContains(t, line, "severity")
}
