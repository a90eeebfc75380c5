package imagecheck

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniffKnownSignatures(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}, ".jpg"},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n', 0, 0, 0, 13}, ".png"},
		{"gif87a", []byte("GIF87a\x01\x00\x01\x00"), ".gif"},
		{"gif89a", []byte("GIF89a\x01\x00\x01\x00"), ".gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, ok := Sniff(tt.header)
			require.True(t, ok)
			assert.Equal(t, tt.want, ext)
		})
	}
}

func TestSniffEncodedPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))

	ext, ok := Sniff(buf.Bytes())
	require.True(t, ok)
	assert.Equal(t, ".png", ext)
}

func TestSniffRejectsGarbage(t *testing.T) {
	garbage := bytes.Repeat([]byte{0xDE, 0xAD, 0xBE, 0xEF}, 128)
	_, ok := Sniff(garbage)
	assert.False(t, ok)
}

func TestSniffShortInput(t *testing.T) {
	// Truncated or empty input must never panic, just fail to match.
	for _, header := range [][]byte{nil, {}, {0xFF}, {0x89, 'P'}} {
		_, ok := Sniff(header)
		assert.False(t, ok)
	}
}

func TestSniffIgnoresBytesPastSniffLen(t *testing.T) {
	header := make([]byte, SniffLen+1024)
	copy(header, []byte("GIF89a"))
	ext, ok := Sniff(header)
	require.True(t, ok)
	assert.Equal(t, ".gif", ext)
}
