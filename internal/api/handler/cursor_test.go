package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/cuongbtq/billing-inspector/internal/api/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCursor_RoundTrip(t *testing.T) {
	in := &storage.RunCursor{
		CreatedAt: time.Date(2025, 10, 28, 2, 30, 0, 123456789, time.UTC),
		RunID:     knownRunID,
	}

	out, err := DecodeRunCursor(EncodeRunCursor(in))

	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.RunID, out.RunID)
}

func TestDecodeRunCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{name: "not base64", cursor: "%%%"},
		{name: "missing separator", cursor: base64.URLEncoding.EncodeToString([]byte("12345"))},
		{name: "non numeric time", cursor: base64.URLEncoding.EncodeToString([]byte("yesterday|abc"))},
		{name: "empty run id", cursor: base64.URLEncoding.EncodeToString([]byte("12345|"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRunCursor(tt.cursor)
			assert.Error(t, err)
		})
	}
}

func TestDecodeRunCursor_Empty(t *testing.T) {
	cursor, err := DecodeRunCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}
