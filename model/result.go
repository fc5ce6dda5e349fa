package model

import (
	"github.com/google/uuid"
)

// Page is one window of a listing together with the pagination metadata.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Skip    int  `json:"skip"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

// NewPage builds a Page. Items is never nil.
func NewPage[T any](items []T, total, skip, limit int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:   items,
		Total:   total,
		Skip:    skip,
		Limit:   limit,
		HasMore: skip+len(items) < total,
	}
}

const (
	HealthStatusHealthy        = "healthy"
	HealthStatusUnhealthy      = "unhealthy"
	DatabaseStatusConnected    = "connected"
	DatabaseStatusDisconnected = "disconnected"
)

// HealthStatus is the result of a health check.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Version  string `json:"version"`
}

// ParseID parses a textual id, reporting malformed input as a ValidationError.
func ParseID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, NewValidationError(field, "must be a valid UUID")
	}
	return id, nil
}
