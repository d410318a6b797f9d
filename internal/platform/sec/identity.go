// Copyright (c) 2026 Stokria. All rights reserved.

package sec

// Identity is the authenticated user snapshot attached to the request context.
//
// # Lifecycle
//
// It is loaded from persistent storage exactly once per request, by the
// authentication gate, after the access token has been verified. Downstream
// gates and handlers treat it as read-only.
type Identity struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	Active bool   `json:"is_active"`
}

// ResourcePermission records the fine-grained permission granted to a request
// by the resource authorization gate. Attached to context for downstream
// handlers and audit enrichment.
type ResourcePermission struct {
	Resource ResourceType `json:"resource"`
	Action   Action       `json:"action"`
	Allowed  bool         `json:"allowed"`
}
