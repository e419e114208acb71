package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCapture      = errors.New("capture error")
	ErrSignaling    = errors.New("signaling error")
	ErrNegotiation  = errors.New("negotiation error")
	ErrInvalidState = errors.New("invalid state")
	ErrEncoder      = errors.New("encoder error")
	ErrUpload       = errors.New("upload error")
	ErrTimeout      = errors.New("timeout")
)

// UploadError is a non-success answer from the storage boundary.
type UploadError struct {
	Status int
	Detail string
}

func (e *UploadError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("failed to upload recording: status %d", e.Status)
}

func (e *UploadError) Unwrap() error { return ErrUpload }

// JobError is a terminal failure reported by the watched server job itself.
type JobError struct {
	Kind   JobKind
	Detail string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Kind, e.Detail)
}
