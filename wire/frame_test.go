package wire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrameHeaderFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	assert.Equal(t, "@5:hello", buf.String())
}

func TestWriteFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, nil))
	assert.Equal(t, "@0:", buf.String())
}

func TestRoundTripFrame(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte(""),
		[]byte("a"),
		[]byte("CMD:1:return 1+1"),
		bytes.Repeat([]byte{0xFF, 0x00, 0x7F}, 500),
		[]byte(strings.Repeat("x", 70000)),
	}
	for _, p := range payloads {
		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, p))

		r := NewReceiver()
		out, err := r.Feed(buf.Bytes())
		require.NoError(t, err)
		require.Len(t, out, 1)
		want := p
		if want == nil {
			// "@0:" cannot tell nil from empty; the Receiver yields a non-nil empty slice.
			want = []byte{}
		}
		assert.Equal(t, want, out[0], "round trip should preserve payload bytes, including empty")
	}
}

func TestEncodeDecodeTextBinaryPassthrough(t *testing.T) {
	raw := string([]byte{0x00, 0x80, 0xFF, 'a'})
	enc, err := EncodeText(raw, EncodingBinary)
	require.NoError(t, err)
	assert.Equal(t, []byte(raw), enc)

	dec, err := DecodeText(enc, EncodingBinary)
	require.NoError(t, err)
	assert.Equal(t, raw, dec)
}

func TestEncodeDecodeTextISO88591RoundTrip(t *testing.T) {
	text := "cafeé ÿ"
	enc, err := EncodeText(text, "iso8859-1")
	require.NoError(t, err)

	dec, err := DecodeText(enc, "iso8859-1")
	require.NoError(t, err)
	assert.Equal(t, text, dec)
}

func TestEncodeTextUnmappableCharacterFails(t *testing.T) {
	_, err := EncodeText("snowman ☃", "iso8859-1")
	require.Error(t, err)
	var encErr *EncodingError
	assert.ErrorAs(t, err, &encErr)
}

func TestEncodeTextUnsupportedEncoding(t *testing.T) {
	_, err := EncodeText("x", "ebcdic")
	require.Error(t, err)
}

func TestDecodeTextUTF8RoundTrip(t *testing.T) {
	text := "héllo 世界"
	enc, err := EncodeText(text, "utf-8")
	require.NoError(t, err)
	dec, err := DecodeText(enc, "utf-8")
	require.NoError(t, err)
	assert.Equal(t, text, dec)
}
