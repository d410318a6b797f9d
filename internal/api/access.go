// Copyright (c) 2026 Stokria. All rights reserved.

package api

import (
	"net/http"

	"github.com/stokria/stokria/internal/platform/ctxutil"
	"github.com/stokria/stokria/internal/platform/respond"
)

// accessProbe terminates every gated demo route. It echoes the security
// context the pipeline established — who, which company, which role, and
// which permission was granted — so clients and tests can verify gate
// behavior end to end.
func accessProbe(writer http.ResponseWriter, request *http.Request) {
	ctx := request.Context()

	payload := map[string]any{
		"company_id": ctxutil.GetCompanyID(ctx),
	}

	if identity := ctxutil.GetIdentity(ctx); identity != nil {
		payload["user_id"] = identity.ID
		payload["email"] = identity.Email
	}

	if role, ok := ctxutil.GetUserRole(ctx); ok {
		payload["role"] = string(role)
	}

	if permission, ok := ctxutil.GetResourcePermission(ctx); ok {
		payload["resource"] = string(permission.Resource)
		payload["action"] = string(permission.Action)
	}

	respond.OK(writer, payload)
}
