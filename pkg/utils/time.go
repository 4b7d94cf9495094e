package utils

import (
	"time"

	pkgerrors "path-backend/pkg/errors"
)

// ParseOptionalTime parses an RFC3339 timestamp query parameter. An empty
// value yields nil.
func ParseOptionalTime(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, pkgerrors.NewValidationError(name + " must be an RFC3339 timestamp").WithDetail("field", name)
	}
	t = t.UTC()
	return &t, nil
}
