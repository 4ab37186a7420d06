package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeUnreliable(t *testing.T) {
	payload := []byte("hello friend")
	encoded := encodeUnreliable(payload)

	f, err := decodeFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, frameUnreliable, f.kind)
	assert.Equal(t, payload, f.payload)
}

func TestEncodeDecodeReliable(t *testing.T) {
	payload := []byte("chunk data")
	encoded := encodeReliable(42, payload)

	f, err := decodeFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, frameReliable, f.kind)
	assert.Equal(t, uint32(42), f.packetNumber)
	assert.Equal(t, payload, f.payload)
}

func TestEncodeDecodeAck(t *testing.T) {
	encoded := encodeAck(7)

	f, err := decodeFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, frameAck, f.kind)
	assert.Equal(t, uint32(7), f.packetNumber)
	assert.Empty(t, f.payload)
}

func TestDecodeFrameShort(t *testing.T) {
	_, err := decodeFrame(nil)
	assert.ErrorIs(t, err, ErrShortFrame)

	_, err = decodeFrame([]byte{byte(frameReliable), 0, 0})
	assert.ErrorIs(t, err, ErrShortFrame)

	_, err = decodeFrame([]byte{byte(frameAck), 0, 0})
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestDecodeFrameUnknownKind(t *testing.T) {
	_, err := decodeFrame([]byte{0xFF})
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestPutGetU32RoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	putU32(buf, 0xDEADBEEF)
	assert.Equal(t, uint32(0xDEADBEEF), getU32(buf))
}
