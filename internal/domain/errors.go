package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by stores when a row does not exist.
var ErrNotFound = errors.New("not found")

type ValidationCode string

const (
	CodeInvalidAmount       ValidationCode = "invalid_amount"
	CodeBidTooLow           ValidationCode = "bid_too_low"
	CodeConstraintViolation ValidationCode = "constraint_violation"
)

type ValidationError struct {
	Code    ValidationCode
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Code, e.Message)
}

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type ForbiddenError struct {
	Entity string
	ID     int64
	UserID int64
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("user %d may not modify %s %d", e.UserID, e.Entity, e.ID)
}

// CascadeResult counts what an offer deletion removed before it finished or failed.
type CascadeResult struct {
	BidsDeleted          int  `json:"bids_deleted"`
	NotificationsDeleted int  `json:"notifications_deleted"`
	OfferDeleted         bool `json:"offer_deleted"`
}

type StorageError struct {
	Op      string
	Err     error
	Cascade *CascadeResult
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}
