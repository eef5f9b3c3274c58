package grpcstream

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alikendir0/backend-simulated-radar-simulator/internal/broadcast"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/wire"
)

func TestToStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		code    codes.Code
		wantNil bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "status passthrough", err: status.Error(codes.PermissionDenied, "denied"), code: codes.PermissionDenied},
		{name: "invalid request", err: fmt.Errorf("%w: id is required", ErrInvalidRequest), code: codes.InvalidArgument},
		{name: "unknown message type", err: wire.ErrUnknownType, code: codes.InvalidArgument},
		{name: "consumer closed", err: broadcast.ErrConsumerClosed, code: codes.Unavailable},
		{name: "duplicate consumer", err: broadcast.ErrDuplicateConsumer, code: codes.AlreadyExists},
		{name: "already running", err: broadcast.ErrAlreadyRunning, code: codes.FailedPrecondition},
		{name: "cancelled", err: context.Canceled, code: codes.Canceled},
		{name: "deadline", err: context.DeadlineExceeded, code: codes.DeadlineExceeded},
		{name: "fallback", err: errors.New("boom"), code: codes.Internal},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ToStatusError(tc.err)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("ToStatusError(nil) = %v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Fatalf("ToStatusError(%v) = nil, want error", tc.err)
			}
			if code := status.Code(got); code != tc.code {
				t.Fatalf("ToStatusError(%v) code = %v, want %v", tc.err, code, tc.code)
			}
		})
	}
}
