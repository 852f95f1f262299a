package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the download pipeline
type ErrorKind string

const (
	KindInvalidRequest      ErrorKind = "InvalidRequest"
	KindUnsupportedPlatform ErrorKind = "UnsupportedPlatform"
	KindInvalidSourceURL    ErrorKind = "InvalidSourceUrl"
	KindExtractionFailed    ErrorKind = "ExtractionFailed"
	KindTransferFailed      ErrorKind = "TransferFailed"
	KindStorageFailed       ErrorKind = "StorageFailed"
	KindRecordStoreFailed   ErrorKind = "RecordStoreFailed"
)

// Sentinels usable with errors.Is; any *Error of the same kind matches.
var (
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest}
	ErrUnsupportedPlatform = &Error{Kind: KindUnsupportedPlatform}
	ErrInvalidSourceURL    = &Error{Kind: KindInvalidSourceURL}
	ErrExtractionFailed    = &Error{Kind: KindExtractionFailed}
	ErrTransferFailed      = &Error{Kind: KindTransferFailed}
	ErrStorageFailed       = &Error{Kind: KindStorageFailed}
	ErrRecordStoreFailed   = &Error{Kind: KindRecordStoreFailed}

	ErrNotFound  = errors.New("download not found")
	ErrEmptyBody = errors.New("response has no body")
)

// Error is a classified pipeline error
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError wraps err with kind and the operation that produced it.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// HTTPError reports a non-2xx response from an upstream server
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}
