package domain

import "errors"

// Domain-level errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrAlreadyExists    = errors.New("resource already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrDatabaseError    = errors.New("database error")
	ErrQueueError       = errors.New("queue error")
	ErrDemandNotFound   = errors.New("demand not found")
	ErrResourceNotFound = errors.New("computational resource not found")
	ErrInvalidStatus    = errors.New("invalid status transition")
	ErrCycleInProgress  = errors.New("matching cycle already in progress")
	ErrLockHeld         = errors.New("cycle lock held by another instance")
)
