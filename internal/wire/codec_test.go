package wire

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Message string `json:"message"`
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	payloads := []testPayload{
		{Message: "hi"},
		{Message: strings.Repeat("presence and chat history bursts ", 20)},
	}

	for _, p := range payloads {
		for _, compress := range []bool{false, true} {
			frame, err := Encode(p, compress)
			require.NoError(t, err)

			var got testPayload
			require.NoError(t, Decode(frame, &got))
			assert.Equal(t, p, got, "compress=%v", compress)
		}
	}
}

func TestEncode_CompressThreshold(t *testing.T) {
	// `{"message":""}` serializes to 14 bytes; pad the message so the whole
	// body lands just under, at, and over the threshold.
	base := len(`{"message":""}`)

	under := testPayload{Message: strings.Repeat("a", CompressThreshold-base-1)}
	frame, err := Encode(under, true)
	require.NoError(t, err)
	body, err := json.Marshal(under)
	require.NoError(t, err)
	require.Len(t, body, CompressThreshold-1)
	assert.Equal(t, ModeRaw, frame[0], "payload under threshold must not be compressed")

	at := testPayload{Message: strings.Repeat("a", CompressThreshold-base)}
	frame, err = Encode(at, true)
	require.NoError(t, err)
	body, err = json.Marshal(at)
	require.NoError(t, err)
	require.Len(t, body, CompressThreshold)
	assert.Equal(t, ModeGzip, frame[0], "payload at threshold must be compressed")

	// Without the compress flag, size never matters.
	frame, err = Encode(at, false)
	require.NoError(t, err)
	assert.Equal(t, ModeRaw, frame[0])
}

func TestDecode_EmptyFrame(t *testing.T) {
	var out testPayload
	assert.ErrorIs(t, Decode(nil, &out), ErrEmptyFrame)
	assert.ErrorIs(t, Decode([]byte{}, &out), ErrEmptyFrame)
}

func TestDecode_CorruptGzip(t *testing.T) {
	var out testPayload
	frame := []byte{ModeGzip, 0xde, 0xad, 0xbe, 0xef}
	assert.ErrorIs(t, Decode(frame, &out), ErrCorruptFrame)
}

func TestDecode_InvalidJSON(t *testing.T) {
	var out testPayload
	frame := append([]byte{ModeRaw}, []byte("{not json")...)
	assert.ErrorIs(t, Decode(frame, &out), ErrInvalidPayload)
}

func TestDecode_UnknownMode(t *testing.T) {
	var out testPayload
	frame := append([]byte{7}, []byte(`{"message":"x"}`)...)
	assert.ErrorIs(t, Decode(frame, &out), ErrInvalidPayload)
}
