// ABOUTME: Tagged errors returned by sync helpers and their mapping to feed statuses
// ABOUTME: StatusFromError is the only place errors become a models.FeedStatus

package service

import (
	"errors"
	"fmt"

	"greader-sync/models"
)

// ErrorKind classifies a failure for the feed status taxonomy
type ErrorKind int

const (
	ErrorKindOther ErrorKind = iota
	ErrorKindAuth
	ErrorKindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindAuth:
		return "auth"
	case ErrorKindNetwork:
		return "network"
	default:
		return "other"
	}
}

var (
	ErrLoginFailed      = errors.New("login failed")
	ErrEmptyAuth        = errors.New("login response carried no Auth token")
	ErrEditToken        = errors.New("failed to obtain edit token")
	ErrNoBearer         = errors.New("no bearer token available")
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrMalformedPayload = errors.New("malformed response payload")
	ErrPrefetchFailed   = errors.New("account prefetch failed for this cycle")
)

// SyncError records which operation failed on which stream and how to classify it
type SyncError struct {
	Kind   ErrorKind
	Op     string
	Stream string
	Err    error
}

func (e *SyncError) Error() string {
	if e.Stream != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Stream, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func newSyncError(kind ErrorKind, op, stream string, err error) error {
	return &SyncError{Kind: kind, Op: op, Stream: stream, Err: err}
}

// KindOf returns the classification of err; untagged errors are ErrorKindOther
func KindOf(err error) ErrorKind {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Kind
	}
	return ErrorKindOther
}

// StatusFromError translates a helper error into the four-way feed status
func StatusFromError(err error) models.FeedStatus {
	if err == nil {
		return models.FeedStatusNormal
	}
	switch KindOf(err) {
	case ErrorKindAuth:
		return models.FeedStatusAuthError
	case ErrorKindNetwork:
		return models.FeedStatusNetworkError
	default:
		return models.FeedStatusOtherError
	}
}

func kindForStatus(status models.FeedStatus) ErrorKind {
	switch status {
	case models.FeedStatusAuthError:
		return ErrorKindAuth
	case models.FeedStatusNetworkError:
		return ErrorKindNetwork
	default:
		return ErrorKindOther
	}
}
