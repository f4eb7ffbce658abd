// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Domain sentinels. Wrap them with %w so Map can classify the failure.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrExpired         = errors.New("expired")
)

// FieldViolation is one failed rule on one request field.
type FieldViolation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError lists every violated field of a request, never just the first.
type ValidationError struct {
	Fields []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

// Map converts repo/infra errors into gRPC-friendly status errors.
// Keeps service layer clean by centralizing error mapping.
//
// Internal failures get a generic message; the cause is for logs only.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return validationStatus(vErr)

	case errors.Is(err, ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "authentication required")

	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, "record not found")

	case errors.Is(err, ErrExpired):
		return status.Error(codes.FailedPrecondition, "resource has expired")

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// InvalidArgument creates a gRPC InvalidArgument error for one field.
// Use this in service layer for checks the request tags cannot express.
func InvalidArgument(field, rule, msg string) error {
	return validationStatus(&ValidationError{Fields: []FieldViolation{{Field: field, Rule: rule, Message: msg}}})
}

func validationStatus(vErr *ValidationError) error {
	st := status.New(codes.InvalidArgument, "request validation failed")
	br := &errdetails.BadRequest{}
	for _, f := range vErr.Fields {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       f.Field,
			Description: f.Message,
		})
	}
	withDetails, err := st.WithDetails(br)
	if err != nil {
		return st.Err()
	}
	return withDetails.Err()
}
