package access

import (
	"strings"

	"github.com/naosaki/naowatt-backend/pkg/enums"
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
	"github.com/lib/pq"
)

// IsVisible reports whether a requester role may see an entity carrying the
// given access roles. Pure and total: no I/O, deterministic for any input.
// Admins pass unconditionally even if a stored row somehow lost its admin
// entry.
func IsVisible(accessRoles pq.StringArray, requester enums.Role) bool {
	if requester == enums.RoleAdmin {
		return true
	}
	for _, raw := range accessRoles {
		if enums.Role(strings.TrimSpace(raw)) == requester {
			return true
		}
	}
	return false
}

// Filter returns the subset of entities visible to the requester. roleOf
// extracts the access role set from an entity.
func Filter[T any](entities []T, requester enums.Role, roleOf func(T) pq.StringArray) []T {
	out := make([]T, 0, len(entities))
	for _, entity := range entities {
		if IsVisible(roleOf(entity), requester) {
			out = append(out, entity)
		}
	}
	return out
}

// Normalize validates a raw access role set at the store boundary: every entry
// must be a known role, the set must not be empty after deduplication, and the
// admin role is always present in the result. Removing admin is rejected by
// construction since Normalize re-adds it.
func Normalize(raw []string) (pq.StringArray, error) {
	if len(raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "access_roles must not be empty")
	}

	seen := map[enums.Role]bool{}
	out := pq.StringArray{string(enums.RoleAdmin)}
	seen[enums.RoleAdmin] = true

	for _, entry := range raw {
		role, err := enums.ParseRole(strings.TrimSpace(entry))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid access role")
		}
		if seen[role] {
			continue
		}
		seen[role] = true
		out = append(out, string(role))
	}
	return out, nil
}
