package docstore

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a store failure for programmatic handling. The original
// technical code and message are preserved on the Error for diagnostics.
type Kind int

const (
	Unknown Kind = iota
	NotFound
	PermissionDenied
	Unavailable
	InvalidArgument
	AlreadyExists
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not-found"
	case PermissionDenied:
		return "permission-denied"
	case Unavailable:
		return "unavailable"
	case InvalidArgument:
		return "invalid-argument"
	case AlreadyExists:
		return "already-exists"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a classified store failure. Code is service-prefixed
// ("firestore/not-found" style) and preserves the backend's own code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode reports the service-prefixed technical code.
func (e *Error) ErrorCode() string { return e.Code }

// KindOf extracts the Kind from any error produced by this package.
// Unclassified errors report Unknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Unknown
}

// IsNotFound reports whether err is a classified NotFound failure.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == NotFound
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Code:    "firestore/" + kind.String(),
		Message: message,
		Err:     cause,
	}
}

// classify maps a backend failure onto the error taxonomy via its gRPC
// status code. Already-classified errors pass through unchanged.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	kind := Unknown
	switch status.Code(err) {
	case codes.NotFound:
		kind = NotFound
	case codes.PermissionDenied, codes.Unauthenticated:
		kind = PermissionDenied
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		kind = Unavailable
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		kind = InvalidArgument
	case codes.AlreadyExists:
		kind = AlreadyExists
	case codes.Canceled:
		kind = Cancelled
	}
	return newError(kind, fmt.Sprintf("%s: %v", op, err), err)
}
