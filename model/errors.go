package model

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Sentinels for errors.Is classification.
var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation failed")
	ErrReferentialIntegrity = errors.New("referential integrity violated")
	ErrStorage              = errors.New("storage failure")
)

// Status codes for successful outcomes, for transports built on top of the directory.
const (
	StatusCreated   = http.StatusCreated
	StatusOK        = http.StatusOK
	StatusNoContent = http.StatusNoContent
)

// ResourceKind names the record kind an error refers to.
type ResourceKind string

const (
	KindEntity       ResourceKind = "entity"
	KindRelationship ResourceKind = "relationship"
)

// NotFoundError reports that an id does not resolve to a live record.
type NotFoundError struct {
	Kind ResourceKind
	ID   uuid.UUID
}

func NewNotFoundError(kind ResourceKind, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID '%s' not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Code is the stable error code, e.g. ENTITY_NOT_FOUND.
func (e *NotFoundError) Code() string {
	if e.Kind == KindRelationship {
		return "RELATIONSHIP_NOT_FOUND"
	}
	return "ENTITY_NOT_FOUND"
}

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Code() string { return "VALIDATION_ERROR" }

// Endpoint identifies which side of a relationship failed to resolve.
type Endpoint string

const (
	EndpointSource Endpoint = "source"
	EndpointTarget Endpoint = "target"
)

// ReferentialIntegrityError reports a relationship endpoint that does not exist.
// It is a specialization of NotFound.
type ReferentialIntegrityError struct {
	Endpoint Endpoint
	ID       uuid.UUID
}

func NewReferentialIntegrityError(endpoint Endpoint, id uuid.UUID) *ReferentialIntegrityError {
	return &ReferentialIntegrityError{Endpoint: endpoint, ID: id}
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("%s entity with ID '%s' not found", e.Endpoint, e.ID)
}

func (e *ReferentialIntegrityError) Is(target error) bool {
	return target == ErrReferentialIntegrity || target == ErrNotFound
}

func (e *ReferentialIntegrityError) Code() string {
	if e.Endpoint == EndpointTarget {
		return "TARGET_ENTITY_NOT_FOUND"
	}
	return "SOURCE_ENTITY_NOT_FOUND"
}

// StorageKind classifies storage failures.
type StorageKind string

const (
	StorageConnection  StorageKind = "connection"
	StoragePoolTimeout StorageKind = "pool_timeout"
	StorageTransaction StorageKind = "transaction"
	StorageQuery       StorageKind = "query"
)

// StorageError reports a transaction or connection failure.
// Err carries the driver error; Error() only exposes the operation and kind.
type StorageError struct {
	Op   string
	Kind StorageKind
	Err  error
}

func NewStorageError(op string, kind StorageKind, err error) *StorageError {
	return &StorageError{Op: op, Kind: kind, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s: %s failure", e.Op, e.Kind)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func (e *StorageError) Code() string { return "DATABASE_ERROR" }

// HTTPStatus maps an error from the directory to a transport status code.
// nil maps to 200.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the stable code of a directory error, or INTERNAL_ERROR.
func ErrorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return "INTERNAL_ERROR"
}
