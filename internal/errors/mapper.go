// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

var (
	// ErrValidation rejects input before any mutation (e.g. missing username).
	ErrValidation = errors.New("validation failed")
	// ErrSelfVote rejects a vote where viewer and target are the same user.
	ErrSelfVote = errors.New("cannot vote on own profile")
	// ErrNotFound means the user or profile does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a unique field (the username) is taken by another user.
	ErrConflict = errors.New("already exists")
	// ErrPermissionDenied guards admin-only commands.
	ErrPermissionDenied = errors.New("permission denied")
)

// Validation wraps ErrValidation with a human readable reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// DeliveryError reports a failed delivery to a single recipient.
type DeliveryError struct {
	UserID uint64
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to user %d failed: %v", e.UserID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Map converts domain/infra errors into gRPC-friendly status errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrSelfVote):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, "record not found")

	case errors.Is(err, ErrConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this in transport layer for malformed requests.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}
