package services

import "fmt"

// ValidationError reports input that is semantically invalid for the domain
// (empty item list, unknown product, quantity over the remaining deliverable
// amount, insufficient stock). Details carries the structured per-item or
// per-material payload surfaced to the caller.
type ValidationError struct {
	Message string
	Details interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error without details
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError reports an operation that is illegal for the entity's
// current state, such as deleting a shipped delivery order.
type ConflictError struct {
	Message string
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// InsufficientMaterial describes one raw material that cannot cover an
// order's requirement. Confirmation reports the complete list, not just the
// first failure.
type InsufficientMaterial struct {
	RawMaterialID string  `json:"raw_material_id"`
	Name          string  `json:"name"`
	Required      float64 `json:"required"`
	Available     float64 `json:"available"`
	Shortage      float64 `json:"shortage"`
}

// DeliveryItemError describes one requested delivery line that failed
// validation against the work order's remaining quantities.
type DeliveryItemError struct {
	ProductID string  `json:"product_id"`
	Requested float64 `json:"requested"`
	Remaining float64 `json:"remaining"`
	Reason    string  `json:"reason"`
}
