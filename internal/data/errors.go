package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrWorkItemNotFound is returned when a work item is not found.
	ErrWorkItemNotFound = errors.New("work item not found")
	// ErrWorkItemIDRequired is returned when an operation is missing its work item id.
	ErrWorkItemIDRequired = errors.New("work_item_id is required")
	// ErrResultNotFound is returned when no result record exists for a work item.
	ErrResultNotFound = errors.New("result record not found")
	// ErrResultExists is returned when a second result record insert is attempted for an item.
	ErrResultExists = errors.New("result record already exists")
)
