package rpc

import (
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stretchr/testify/require"

	"github.com/qarax-project/qarax/lib/vmmanager"
)

func TestToStatusMapsKinds(t *testing.T) {
	cases := []struct {
		kind vmmanager.Kind
		want codes.Code
	}{
		{vmmanager.KindVMNotFound, codes.NotFound},
		{vmmanager.KindVMAlreadyExists, codes.AlreadyExists},
		{vmmanager.KindInvalidConfig, codes.InvalidArgument},
		{vmmanager.KindSpawnError, codes.Internal},
		{vmmanager.KindSdkError, codes.Internal},
		{vmmanager.KindProcessError, codes.Internal},
		{vmmanager.KindTapError, codes.Internal},
	}

	for _, tc := range cases {
		err := &vmmanager.Error{Kind: tc.kind, Err: errors.New("boom")}
		got := toStatus(err)
		st, ok := status.FromError(got)
		require.True(t, ok)
		require.Equalf(t, tc.want, st.Code(), "kind %v", tc.kind)
	}
}

func TestToStatusNilIsNil(t *testing.T) {
	require.NoError(t, toStatus(nil))
}

func TestToStatusUnwrappedErrorFallsBackToInternal(t *testing.T) {
	got := toStatus(errors.New("plain error"))
	st, ok := status.FromError(got)
	require.True(t, ok)
	require.Equal(t, codes.Internal, st.Code())
}
