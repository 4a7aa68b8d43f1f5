package errors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Domain sentinels. Conflict and policy errors detected by the services are
// one of these; infra errors bubble up as-is and get mapped to Internal.
var (
	ErrAlreadyLiked     = errors.New("already liked this user")
	ErrAlreadyMatched   = errors.New("already matched with this user")
	ErrTargetNotFound   = errors.New("target user not found")
	ErrRateLimited      = errors.New("rate limit exceeded, slow down")
	ErrViewLimitReached = errors.New("daily profile view limit reached")
	ErrUpgradeRequired  = errors.New("upgrade required for this feature")
	ErrInvalidActivity  = errors.New("unknown activity type")
	ErrSelfAction       = errors.New("cannot perform this action on yourself")
)

// Map converts domain/repo/infra errors into gRPC-friendly status errors.
// Keeps service layer clean by centralizing error mapping; the host transport
// layer can hand these straight back to clients.
func Map(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrAlreadyLiked):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, ErrAlreadyMatched):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, ErrTargetNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrViewLimitReached):
		return status.Error(codes.ResourceExhausted, err.Error())

	case errors.Is(err, ErrUpgradeRequired):
		return status.Error(codes.PermissionDenied, err.Error())

	case errors.Is(err, ErrInvalidActivity), errors.Is(err, ErrSelfAction):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, "record not found")

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	default:
		// infra failure: generic "try again" signal, no internals leaked
		return status.Error(codes.Unavailable, "temporary failure, please retry")
	}
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this in service layer for bad input validation.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}
