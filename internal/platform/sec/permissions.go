// Copyright (c) 2026 Stokria. All rights reserved.

package sec

// # Actions & Resources

// Action is one of the four CRUD verbs the permission matrix understands.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ParseAction maps a raw string onto the closed action enum.
func ParseAction(value string) (Action, bool) {
	switch Action(value) {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return Action(value), true
	default:
		return "", false
	}
}

// ResourceType identifies a protected resource family in the matrix.
type ResourceType string

const (
	ResourceProduct  ResourceType = "product"
	ResourceCategory ResourceType = "category"
	ResourceSale     ResourceType = "sale"
	ResourcePurchase ResourceType = "purchase"
	ResourceUser     ResourceType = "user"
	ResourceInvoice  ResourceType = "invoice"
	ResourceWarranty ResourceType = "warranty"
	ResourceSupplier ResourceType = "supplier"
	ResourceService  ResourceType = "service"
)

// ParseResourceType maps a raw string onto the closed resource enum.
func ParseResourceType(value string) (ResourceType, bool) {
	switch ResourceType(value) {
	case ResourceProduct, ResourceCategory, ResourceSale, ResourcePurchase,
		ResourceUser, ResourceInvoice, ResourceWarranty, ResourceSupplier,
		ResourceService:
		return ResourceType(value), true
	default:
		return "", false
	}
}

// # Permission Matrix

// Decision is the three-way outcome of a matrix lookup.
//
// The distinction between DeniedAction and RoleUnknown matters: a role that
// the matrix was never designed for is a stronger security signal than a
// known role missing one verb, and is audited at high severity upstream.
type Decision int

const (
	// DecisionAllowed: the (resource, role) row grants the requested action.
	DecisionAllowed Decision = iota

	// DecisionDeniedAction: the role exists under the resource but the
	// requested action is not in its allowed set.
	DecisionDeniedAction

	// DecisionRoleUnknown: the role is entirely absent from the resource's
	// row — the matrix was never designed for it.
	DecisionRoleUnknown

	// DecisionResourceUnknown: the matrix has no entry for the resource at
	// all. A configuration error, not a user error.
	DecisionResourceUnknown
)

// Matrix is the static (resource, role) -> allowed-actions table.
//
// # Concurrency
//
// Built once at process start and never mutated afterwards, so concurrent
// reads require no synchronization. Absence from the table is always a deny,
// never a default-allow.
type Matrix struct {
	table map[ResourceType]map[Role]map[Action]struct{}
}

// actions is a construction helper turning a verb list into a set.
func actions(list ...Action) map[Action]struct{} {
	set := make(map[Action]struct{}, len(list))
	for _, action := range list {
		set[action] = struct{}{}
	}
	return set
}

// DefaultMatrix builds the canonical Stokria permission table.
//
// Shape notes:
//   - owner and admin hold full CRUD nearly everywhere; only owner may
//     delete user accounts.
//   - inventory manages stock-side resources (product, category, purchase,
//     supplier) but never deletes and never touches money-side writes.
//   - seller manages money-side resources (sale, invoice, warranty, service)
//     but cannot delete them and only reads stock.
//   - employee is read-only across the board.
func DefaultMatrix() *Matrix {
	full := []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
	writeNoDelete := []Action{ActionCreate, ActionRead, ActionUpdate}
	readUpdate := []Action{ActionRead, ActionUpdate}
	readOnly := []Action{ActionRead}

	return &Matrix{table: map[ResourceType]map[Role]map[Action]struct{}{
		ResourceProduct: {
			RoleOwner:     actions(full...),
			RoleAdmin:     actions(full...),
			RoleInventory: actions(readUpdate...),
			RoleSeller:    actions(readOnly...),
			RoleEmployee:  actions(readOnly...),
		},
		ResourceCategory: {
			RoleOwner:     actions(full...),
			RoleAdmin:     actions(full...),
			RoleInventory: actions(writeNoDelete...),
			RoleSeller:    actions(readOnly...),
			RoleEmployee:  actions(readOnly...),
		},
		ResourceSale: {
			RoleOwner:     actions(full...),
			RoleAdmin:     actions(full...),
			RoleSeller:    actions(writeNoDelete...),
			RoleInventory: actions(readOnly...),
			RoleEmployee:  actions(readOnly...),
		},
		ResourcePurchase: {
			RoleOwner:     actions(full...),
			RoleAdmin:     actions(full...),
			RoleInventory: actions(writeNoDelete...),
			RoleSeller:    actions(readOnly...),
			RoleEmployee:  actions(readOnly...),
		},
		ResourceUser: {
			RoleOwner:     actions(full...),
			RoleAdmin:     actions(writeNoDelete...),
			RoleSeller:    actions(readOnly...),
			RoleInventory: actions(readOnly...),
			RoleEmployee:  actions(readOnly...),
		},
		ResourceInvoice: {
			RoleOwner:     actions(full...),
			RoleAdmin:     actions(full...),
			RoleSeller:    actions(writeNoDelete...),
			RoleInventory: actions(readOnly...),
			RoleEmployee:  actions(readOnly...),
		},
		ResourceWarranty: {
			RoleOwner:     actions(full...),
			RoleAdmin:     actions(full...),
			RoleSeller:    actions(writeNoDelete...),
			RoleInventory: actions(readOnly...),
			RoleEmployee:  actions(readOnly...),
		},
		ResourceSupplier: {
			RoleOwner:     actions(full...),
			RoleAdmin:     actions(full...),
			RoleInventory: actions(writeNoDelete...),
			RoleSeller:    actions(readOnly...),
			RoleEmployee:  actions(readOnly...),
		},
		ResourceService: {
			RoleOwner:     actions(full...),
			RoleAdmin:     actions(full...),
			RoleSeller:    actions(writeNoDelete...),
			RoleInventory: actions(readOnly...),
			RoleEmployee:  actions(readOnly...),
		},
	}}
}

// Decide performs a single lookup of (resource, role, action).
//
// Lookups are pure reads over an immutable table: the same triple always
// produces the same decision for the process lifetime.
func (m *Matrix) Decide(resource ResourceType, role Role, action Action) Decision {
	roleRow, ok := m.table[resource]
	if !ok {
		return DecisionResourceUnknown
	}

	allowedActions, ok := roleRow[role]
	if !ok {
		return DecisionRoleUnknown
	}

	if _, ok := allowedActions[action]; !ok {
		return DecisionDeniedAction
	}
	return DecisionAllowed
}

// AllowedActions returns a copy of the action set for (resource, role).
// Used by diagnostics; an empty slice means no access.
func (m *Matrix) AllowedActions(resource ResourceType, role Role) []Action {
	roleRow, ok := m.table[resource]
	if !ok {
		return nil
	}
	set, ok := roleRow[role]
	if !ok {
		return nil
	}

	out := make([]Action, 0, len(set))
	for _, candidate := range []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete} {
		if _, ok := set[candidate]; ok {
			out = append(out, candidate)
		}
	}
	return out
}
