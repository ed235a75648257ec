package graph

import "errors"

var (
	ErrTenantRequired = errors.New("tenant id is required")
	ErrInvalidLimit   = errors.New("limits must be positive")
	ErrInvalidDepth   = errors.New("traversal depth must not be negative")
	ErrInvalidType    = errors.New("unknown entity type")
)
