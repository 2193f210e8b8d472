package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	require.Equal(t, "json", c.Name())

	in := &VMIDRequest{VMID: "vm-123"}
	data, err := c.Marshal(in)
	require.NoError(t, err)

	out := new(VMIDRequest)
	require.NoError(t, c.Unmarshal(data, out))
	require.Equal(t, in.VMID, out.VMID)
}

func TestJSONCodecRoundTripConsoleFrame(t *testing.T) {
	c := jsonCodec{}
	in := &ConsoleFrame{VMID: "vm-1", Data: []byte("hello"), Resize: &ConsoleResize{Cols: 80, Rows: 24}}
	data, err := c.Marshal(in)
	require.NoError(t, err)

	out := new(ConsoleFrame)
	require.NoError(t, c.Unmarshal(data, out))
	require.Equal(t, in.VMID, out.VMID)
	require.Equal(t, in.Data, out.Data)
	require.Equal(t, in.Resize.Cols, out.Resize.Cols)
	require.Equal(t, in.Resize.Rows, out.Resize.Rows)
}
