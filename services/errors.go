package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ErrorKind string

const (
	KindNotFound          ErrorKind = "NotFound"
	KindInvalidTransition ErrorKind = "InvalidStateTransition"
	KindConflict          ErrorKind = "Conflict"
	KindValidation        ErrorKind = "ValidationFailure"
	KindInsufficientStock ErrorKind = "InsufficientStock"
	KindStorage           ErrorKind = "StorageFailure"
)

// Error is the business error returned by every service operation.
// errors.Is matches on Kind against the Err* sentinels.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrStorage           = &Error{Kind: KindStorage}
)

func notFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func invalidTransition(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports the booking that already holds the requested slot.
type ConflictError struct {
	BookingID    uuid.UUID
	CustomerName string
}

func (e *ConflictError) Error() string {
	if e.CustomerName == "" {
		return fmt.Sprintf("time slot conflicts with booking %s", e.BookingID)
	}
	return fmt.Sprintf("time slot conflicts with booking %s for %s", e.BookingID, e.CustomerName)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// InsufficientStockError is returned only when the salon blocks
// finalization on short stock.
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (requested %d)", e.ProductName, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// storage classifies an error coming back from a repository. Domain errors
// pass through untouched; a missing row becomes NotFound.
func storage(err error, what string) error {
	if err == nil {
		return nil
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return err
	}
	var conflictErr *ConflictError
	if errors.As(err, &conflictErr) {
		return err
	}
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: KindNotFound, Message: what + " not found"}
	}
	return &Error{Kind: KindStorage, Message: "failed to access " + what, Err: err}
}

// KindOf returns the kind of a service error, or StorageFailure for
// anything unclassified.
func KindOf(err error) ErrorKind {
	var domainErr *Error
	switch {
	case errors.As(err, &domainErr):
		return domainErr.Kind
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	default:
		return KindStorage
	}
}
