package errors_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	svcErr "github.com/IdrisKulubi/strath-mobile-sub004/internal/errors"
)

func TestMap_Codes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"record not found", gorm.ErrRecordNotFound, codes.NotFound},
		{"wrapped not found", fmt.Errorf("drop x: %w", svcErr.ErrNotFound), codes.NotFound},
		{"unauthenticated", svcErr.ErrUnauthenticated, codes.Unauthenticated},
		{"expired", fmt.Errorf("drop: %w", svcErr.ErrExpired), codes.FailedPrecondition},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"canceled", context.Canceled, codes.Canceled},
		{"storage", errors.New("dial tcp: connection refused"), codes.Internal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, ok := status.FromError(svcErr.Map(tc.err))
			require.True(t, ok)
			assert.Equal(t, tc.code, st.Code())
		})
	}
}

func TestMap_InternalHidesCause(t *testing.T) {
	st, _ := status.FromError(svcErr.Map(errors.New("password=hunter2 host=db-1")))
	assert.Equal(t, "internal error", st.Message())
}

func TestMap_PassesThroughStatus(t *testing.T) {
	in := status.Error(codes.PermissionDenied, "nope")
	assert.Equal(t, in, svcErr.Map(in))
	assert.Nil(t, svcErr.Map(nil))
}

func TestMap_ValidationCarriesFieldDetails(t *testing.T) {
	vErr := &svcErr.ValidationError{Fields: []svcErr.FieldViolation{
		{Field: "page_size", Rule: "max", Message: "page_size must be at most 50"},
		{Field: "drop_id", Rule: "required", Message: "drop_id is required"},
	}}

	st, _ := status.FromError(svcErr.Map(fmt.Errorf("open drop: %w", vErr)))
	require.Equal(t, codes.InvalidArgument, st.Code())
	require.Len(t, st.Details(), 1)

	br, ok := st.Details()[0].(*errdetails.BadRequest)
	require.True(t, ok)
	require.Len(t, br.GetFieldViolations(), 2)
	assert.Equal(t, "page_size", br.GetFieldViolations()[0].GetField())
	assert.Equal(t, "drop_id", br.GetFieldViolations()[1].GetField())
}

func TestInvalidArgument_CarriesField(t *testing.T) {
	st, ok := status.FromError(svcErr.InvalidArgument("page_token", "cursor", "page_token is invalid"))
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())

	require.Len(t, st.Details(), 1)
	br, ok := st.Details()[0].(*errdetails.BadRequest)
	require.True(t, ok)
	require.Len(t, br.FieldViolations, 1)
	assert.Equal(t, "page_token", br.FieldViolations[0].Field)
	assert.Equal(t, "page_token is invalid", br.FieldViolations[0].Description)
}
