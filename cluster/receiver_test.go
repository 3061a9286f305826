package cluster

import (
	"context"
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollie/valkey-timeseries-sub001/common"
)

func buildWireRequest(t *testing.T, header Header, payload []byte) []byte {
	t.Helper()
	return append(header.Encode(), snappy.Encode(nil, payload)...)
}

func TestReceiverDispatchesToHandler(t *testing.T) {
	r := NewReceiver()
	var gotDB int32
	var gotPayload []byte
	r.Register(MsgMGet, func(ctx context.Context, db int32, payload []byte) ([]byte, error) {
		gotDB, gotPayload = db, payload
		return []byte("reply"), nil
	})

	wire := buildWireRequest(t, Header{RequestID: 1, Type: MsgMGet, DB: 3}, []byte("req"))
	out, err := r.Dispatch(context.Background(), wire)
	require.NoError(t, err)

	header, err := DecodeHeader(out)
	require.NoError(t, err)
	assert.Equal(t, MsgMGet, header.Type)
	assert.Equal(t, int32(3), gotDB)
	assert.Equal(t, []byte("req"), gotPayload)

	replyPayload, err := snappy.Decode(nil, out[HeaderSize:])
	require.NoError(t, err)
	assert.Equal(t, []byte("reply"), replyPayload)
}

func TestReceiverUnregisteredTypeRepliesError(t *testing.T) {
	r := NewReceiver()
	wire := buildWireRequest(t, Header{RequestID: 2, Type: MsgStats}, nil)

	out, err := r.Dispatch(context.Background(), wire)
	require.NoError(t, err)

	header, err := DecodeHeader(out)
	require.NoError(t, err)
	assert.Equal(t, MsgError, header.Type)

	body, err := snappy.Decode(nil, out[HeaderSize:])
	require.NoError(t, err)
	assert.Equal(t, byte(common.ErrBadRequestID), body[0])
}

func TestReceiverHandlerErrorRepliesErrorKind(t *testing.T) {
	r := NewReceiver()
	r.Register(MsgMGet, func(ctx context.Context, db int32, payload []byte) ([]byte, error) {
		return nil, common.NewError(common.ErrKeyNotFound, "no such key")
	})

	wire := buildWireRequest(t, Header{RequestID: 3, Type: MsgMGet}, nil)
	out, err := r.Dispatch(context.Background(), wire)
	require.NoError(t, err)

	header, err := DecodeHeader(out)
	require.NoError(t, err)
	assert.Equal(t, MsgError, header.Type)

	body, err := snappy.Decode(nil, out[HeaderSize:])
	require.NoError(t, err)
	assert.Equal(t, byte(common.ErrKeyNotFound), body[0])
}

func TestDispatchShortMessageErrors(t *testing.T) {
	r := NewReceiver()
	_, err := r.Dispatch(context.Background(), []byte{1, 2})
	assert.Error(t, err)
}
