// Copyright (c) 2026 Stokria. All rights reserved.

/*
Package audit implements the append-only security event log.

Every gate in the authentication/authorization pipeline reports terminal
rejections and successful authentications here. The log is a write-only
collaborator: it never participates in decisions, and a sink failure never
fails the request.

Architecture:

  - Recorder: the contract consumed by the gates.
  - SlogRecorder: production sink emitting structured JSON via slog.
  - MemoryRecorder: in-memory sink used by tests to assert emitted events.

Operator-visible entries always carry full diagnostic detail (IP, path,
attempted identity) even when the client-visible error stays coarse.
*/
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stokria/stokria/internal/platform/ctxutil"
)

// # Severities

// Severity grades how alarming a security event is.
type Severity string

const (
	// SeverityLow: routine noise — missing or malformed credentials.
	SeverityLow Severity = "low"

	// SeverityMedium: credentials that verified structurally but reference
	// a bad account state (not found, deactivated).
	SeverityMedium Severity = "medium"

	// SeverityHigh: signals the system was never designed to see — an
	// unrecognized role, a cross-tenant access attempt. Page-worthy.
	SeverityHigh Severity = "high"
)

// # Contracts

// Recorder is the sink the pipeline gates write to.
//
// Implementations must be safe for concurrent use and must never block the
// request path on sink latency beyond a local write.
type Recorder interface {
	// Security records a rejection or anomaly with a severity grade.
	Security(ctx context.Context, event string, severity Severity, fields map[string]any)

	// Access records a successful authentication or authorization.
	Access(ctx context.Context, event string, fields map[string]any)
}

// # Production Sink

// SlogRecorder emits audit entries as structured JSON log lines.
type SlogRecorder struct {
	logger *slog.Logger
}

// NewSlogRecorder wraps a logger as an audit sink.
func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	return &SlogRecorder{logger: logger}
}

// Security implements [Recorder].
func (recorder *SlogRecorder) Security(ctx context.Context, event string, severity Severity, fields map[string]any) {
	recorder.emit(ctx, slog.LevelWarn, "security_event", event, string(severity), fields)
}

// Access implements [Recorder].
func (recorder *SlogRecorder) Access(ctx context.Context, event string, fields map[string]any) {
	recorder.emit(ctx, slog.LevelInfo, "access_event", event, "", fields)
}

func (recorder *SlogRecorder) emit(ctx context.Context, level slog.Level, kind, event, severity string, fields map[string]any) {
	attrs := []any{
		slog.String("audit", kind),
		slog.String("event", event),
		slog.Time("ts", time.Now().UTC()),
	}
	if severity != "" {
		attrs = append(attrs, slog.String("severity", severity))
	}
	if rid := ctxutil.GetRequestID(ctx); rid != "" {
		attrs = append(attrs, slog.String("request_id", rid))
	}
	if identity := ctxutil.GetIdentity(ctx); identity != nil {
		attrs = append(attrs, slog.String("user_id", identity.ID))
	}
	for key, value := range fields {
		attrs = append(attrs, slog.Any(key, value))
	}

	recorder.logger.Log(ctx, level, event, attrs...)
}

// # Test Sink

// Event is a recorded audit entry, retained by [MemoryRecorder].
type Event struct {
	Kind     string // "security" or "access"
	Name     string
	Severity Severity
	Fields   map[string]any
}

// MemoryRecorder retains events in memory for test assertions.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryRecorder creates an empty in-memory audit sink.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Security implements [Recorder].
func (recorder *MemoryRecorder) Security(_ context.Context, event string, severity Severity, fields map[string]any) {
	recorder.append(Event{Kind: "security", Name: event, Severity: severity, Fields: fields})
}

// Access implements [Recorder].
func (recorder *MemoryRecorder) Access(_ context.Context, event string, fields map[string]any) {
	recorder.append(Event{Kind: "access", Name: event, Fields: fields})
}

// Events returns a snapshot of everything recorded so far.
func (recorder *MemoryRecorder) Events() []Event {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	out := make([]Event, len(recorder.events))
	copy(out, recorder.events)
	return out
}

// Find returns the first recorded event with the given name, if any.
func (recorder *MemoryRecorder) Find(name string) (Event, bool) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	for _, event := range recorder.events {
		if event.Name == name {
			return event, true
		}
	}
	return Event{}, false
}

func (recorder *MemoryRecorder) append(event Event) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.events = append(recorder.events, event)
}
