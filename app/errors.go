package app

import (
	"errors"
	"fmt"
)

// The pipeline distinguishes failures that must stop the request from
// failures the request survives. Auth and quota are hard stops; everything
// around the cache and persistence degrades gracefully.

var (
	errInvalidFileType = errors.New("Only PDF files are allowed")
	errMissingUser     = errors.New("missing user id")
	errMissingCustomer = errors.New("missing customer id")
)

type quotaError struct {
	Limit int
	Used  int
}

func (e quotaError) Error() string {
	return fmt.Sprintf("lifetime quota exceeded: used %d of %d", e.Used, e.Limit)
}

// recoverableError wraps an internal fault the pipeline is allowed to
// swallow, e.g. a failed quota lookup or a failed cache write.
type recoverableError struct {
	Op  string
	Err error
}

func (e *recoverableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *recoverableError) Unwrap() error {
	return e.Err
}

func recoverable(op string, err error) error {
	return &recoverableError{Op: op, Err: err}
}

type failureKind int

const (
	failProcessing failureKind = iota
	failQuota
	failInvalidInput
	failRecoverable
)

// classify maps a pipeline error onto the response policy: quota and invalid
// input surface to the client, recoverable faults are logged and ignored,
// anything else is an unhandled processing error.
func classify(err error) failureKind {
	var q quotaError
	if errors.As(err, &q) {
		return failQuota
	}
	if errors.Is(err, errInvalidFileType) {
		return failInvalidInput
	}
	var r *recoverableError
	if errors.As(err, &r) {
		return failRecoverable
	}
	return failProcessing
}
