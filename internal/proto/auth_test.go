package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

func TestFileDescriptor_MatchesServiceDesc(t *testing.T) {
	require.NotNil(t, File_auth_proto)
	assert.Equal(t, protoreflect.FullName("taskboard.auth.v1"), File_auth_proto.Package())

	svc := File_auth_proto.Services().ByName("Auth")
	require.NotNil(t, svc)
	assert.Equal(t, Auth_ServiceDesc.ServiceName, string(svc.FullName()))

	require.Equal(t, len(Auth_ServiceDesc.Methods), svc.Methods().Len())
	for i, m := range Auth_ServiceDesc.Methods {
		md := svc.Methods().Get(i)
		assert.Equal(t, m.MethodName, string(md.Name()))
		assert.False(t, md.IsStreamingClient())
		assert.False(t, md.IsStreamingServer())
	}

	me := svc.Methods().ByName("Me")
	assert.Equal(t, (&MeRequest{}).ProtoReflect().Descriptor().FullName(), me.Input().FullName())
	assert.Equal(t, (&MeResponse{}).ProtoReflect().Descriptor().FullName(), me.Output().FullName())
}

func TestTokenPairResponse_WireRoundTrip(t *testing.T) {
	in := &TokenPairResponse{
		AccessToken:      "a.b.c",
		ExpiresAt:        1700000900,
		RefreshToken:     "r",
		RefreshExpiresAt: 1702592000,
	}
	b, err := proto.Marshal(in)
	require.NoError(t, err)

	out := &TokenPairResponse{}
	require.NoError(t, proto.Unmarshal(b, out))
	assert.True(t, proto.Equal(in, out))
	assert.Equal(t, int64(1702592000), out.GetRefreshExpiresAt())
}

func TestGetters_NilSafe(t *testing.T) {
	var r *RegisterRequest
	assert.Empty(t, r.GetEmail())
	assert.Empty(t, r.GetDisplayName())

	var m *MeResponse
	assert.Zero(t, m.GetExpiresAt())
}
