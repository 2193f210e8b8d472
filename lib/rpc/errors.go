package rpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/qarax-project/qarax/lib/vmmanager"
)

// toStatus maps a vmmanager.Error's Kind onto the RPC status table in
// §7. Errors the manager didn't tag (os/exec plumbing, context
// cancellation) fall back to codes.Internal.
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	var mErr *vmmanager.Error
	if errors.As(err, &mErr) {
		return status.Error(grpcCode(mErr.Kind), err.Error())
	}

	return status.Error(codes.Internal, err.Error())
}

func grpcCode(kind vmmanager.Kind) codes.Code {
	switch kind {
	case vmmanager.KindVMNotFound:
		return codes.NotFound
	case vmmanager.KindVMAlreadyExists:
		return codes.AlreadyExists
	case vmmanager.KindInvalidConfig:
		return codes.InvalidArgument
	case vmmanager.KindSpawnError, vmmanager.KindSdkError, vmmanager.KindProcessError, vmmanager.KindTapError:
		return codes.Internal
	default:
		return codes.Internal
	}
}
