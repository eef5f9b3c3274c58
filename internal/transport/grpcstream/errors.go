package grpcstream

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alikendir0/backend-simulated-radar-simulator/internal/broadcast"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/wire"
)

// ErrInvalidRequest marks a request that failed validation.
var ErrInvalidRequest = errors.New("invalid request")

// ToStatusError maps simulator errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, wire.ErrUnknownType),
		errors.Is(err, wire.ErrUnknownCodec):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, broadcast.ErrConsumerClosed),
		errors.Is(err, broadcast.ErrConsumerBusy):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, broadcast.ErrDuplicateConsumer):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, broadcast.ErrAlreadyRunning):
		return status.Error(codes.FailedPrecondition, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
