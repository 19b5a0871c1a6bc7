package grpcstore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/mixfs/storage"
)

// mapErr converts a storage error into a gRPC status on the server side.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, storage.ErrInvalidAddress):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, storage.ErrAddressMismatch):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// mapRPC converts a gRPC status back into a storage error on the client side.
// NotFound is handled by the caller because absence is not an error for Get.
func mapRPC(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return storage.Failure("grpcstore: "+op, err)
	}

	switch st.Code() {
	case codes.NotFound:
		return storage.ErrNotFound
	case codes.InvalidArgument:
		// Server uses InvalidArgument for malformed addresses.
		return storage.ErrInvalidAddress
	case codes.DataLoss:
		// Server uses DataLoss when bytes do not match the requested address.
		return storage.ErrAddressMismatch
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return storage.Failure("grpcstore: "+op, context.DeadlineExceeded)
	default:
		return storage.Failure("grpcstore: "+op, err)
	}
}
