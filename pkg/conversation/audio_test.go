package conversation

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAudioPlainBase64(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("mp3 bytes"))

	got := DecodeAudio(payload)

	require.NotNil(t, got)
	assert.Equal(t, []byte("mp3 bytes"), got)
}

func TestDecodeAudioDataURI(t *testing.T) {
	payload := "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString([]byte("mp3 bytes"))

	assert.Equal(t, []byte("mp3 bytes"), DecodeAudio(payload))
}

func TestDecodeAudioStripsWhitespace(t *testing.T) {
	payload := "bXAz\nIGJ5\r\ndGVz "

	assert.Equal(t, []byte("mp3 bytes"), DecodeAudio(payload))
}

func TestDecodeAudioURLEncoded(t *testing.T) {
	payload := "aGVsbG8%3D"

	assert.Equal(t, []byte("hello"), DecodeAudio(payload))
}

func TestDecodeAudioMangledDataURI(t *testing.T) {
	// Prefix lost its media type but the payload still sits after the comma.
	payload := "data:;base64," + base64.StdEncoding.EncodeToString([]byte("hello"))

	assert.Equal(t, []byte("hello"), DecodeAudio(payload))
}

func TestDecodeAudioRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"whitespace only": "   \n",
		"bad charset":     "not base64 at all!!",
		"excess padding":  "aGU===",
		"prefix no comma": "data:audio/mpeg",
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, DecodeAudio(payload))
		})
	}
}

func TestAudioDataURL(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("hello"))

	assert.Equal(t, "data:audio/mpeg;base64,"+encoded, AudioDataURL(encoded))
	assert.Equal(t, "data:audio/mpeg;base64,"+encoded, AudioDataURL("data:audio/wav;base64,"+encoded))
	assert.Empty(t, AudioDataURL("!!!"))
	assert.Empty(t, AudioDataURL(""))
}
