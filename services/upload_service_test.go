package services

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-share-server/config"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestUploadService_Inline(t *testing.T) {
	svc, err := NewUploadService(config.UploadConfig{MaxBytes: 1024})
	require.NoError(t, err)

	encoded := base64.StdEncoding.EncodeToString(pngHeader)

	tests := []struct {
		name  string
		input string
	}{
		{name: "raw base64", input: encoded},
		{name: "data url", input: "data:image/png;base64," + encoded},
		{name: "unpadded", input: base64.RawStdEncoding.EncodeToString(pngHeader)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Upload(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, "image/png", result.ContentType)
			assert.Equal(t, "inline", result.Storage)
			assert.Equal(t, len(pngHeader), result.Size)
			assert.Equal(t, "data:image/png;base64,"+encoded, result.URL)
		})
	}
}

func TestUploadService_Rejects(t *testing.T) {
	svc, err := NewUploadService(config.UploadConfig{MaxBytes: 8})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
	}{
		{name: "not base64", input: "%%%not-base64%%%"},
		{name: "empty", input: ""},
		{name: "text content", input: base64.StdEncoding.EncodeToString([]byte("hello"))},
		{name: "too large", input: base64.StdEncoding.EncodeToString(pngHeader)},
		{name: "malformed data url", input: "data:image/png," + base64.StdEncoding.EncodeToString(pngHeader)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tt.input)
			assert.ErrorIs(t, err, ErrInvalidImage)
		})
	}
}
