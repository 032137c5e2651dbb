package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresBucket(t *testing.T) {
	_, err := NewClient(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestDownloadURL(t *testing.T) {
	ctx := context.Background()
	client, err := NewClient(ctx, S3Config{
		Region:     "us-east-1",
		Bucket:     "media",
		AccessKey:  "AKIDEXAMPLE",
		SecretKey:  "secret",
		Endpoint:   "http://localhost:9000",
		PresignTTL: time.Minute,
	})
	require.NoError(t, err)

	t.Run("absolute urls pass through", func(t *testing.T) {
		got, err := client.DownloadURL(ctx, "https://cdn.test/a.png")
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.test/a.png", got)
	})

	t.Run("keys are presigned", func(t *testing.T) {
		got, err := client.DownloadURL(ctx, "chats/a.png")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(got, "http://localhost:9000/media/chats/a.png?"), got)
		assert.Contains(t, got, "X-Amz-Signature=")
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := client.DownloadURL(ctx, "")
		assert.Error(t, err)
	})
}

func TestFileURLUsesPublicBase(t *testing.T) {
	client := &Client{cfg: S3Config{PublicBase: "https://cdn.test/"}}
	assert.Equal(t, "https://cdn.test/a/b.png", client.FileURL("/a/b.png"))

	got, err := client.DownloadURL(context.Background(), "a/b.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/a/b.png", got)
}
