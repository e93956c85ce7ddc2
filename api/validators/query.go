package validators

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
)

// QueryUUID returns the named query parameter parsed as a UUID, or nil
// when the parameter is absent.
func QueryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("query parameter %q must be a valid UUID", name))
	}
	return &id, nil
}

// QueryLimit parses a page-size parameter, clamped to [1, max]. Absent
// or empty falls back to def.
func QueryLimit(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("query parameter %q must be a positive integer", name))
	}
	if n > max {
		n = max
	}
	return n, nil
}

// PathUUID parses a path segment value as a UUID.
func PathUUID(value, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("path parameter %q must be a valid UUID", name))
	}
	return id, nil
}
