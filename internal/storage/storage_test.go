package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_Upload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewLocalStorage(dir, "http://localhost:8083/")
	require.NoError(t, err)

	obj, err := s.Upload(context.Background(), strings.NewReader("not really a video"), "../../etc/Clip.MP4", "video/mp4")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(obj.Key, ".mp4"))
	assert.NotContains(t, obj.Key, "..")
	assert.Equal(t, "http://localhost:8083/uploads/"+obj.Key, obj.URL)
	assert.Equal(t, filepath.Join(dir, obj.Key), obj.Path)
	assert.Equal(t, int64(len("not really a video")), obj.Size)

	data, err := os.ReadFile(obj.Path)
	require.NoError(t, err)
	assert.Equal(t, "not really a video", string(data))
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Upload(ctx, strings.NewReader("x"), "a.mp3", "audio/mpeg")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestObjectKey_Unique(t *testing.T) {
	a, b := objectKey("song.mp3"), objectKey("song.mp3")
	assert.NotEqual(t, a, b)
	assert.Equal(t, ".mp3", filepath.Ext(a))
}

func TestS3Storage_URL(t *testing.T) {
	s := &S3Storage{Bucket: "media", Region: "eu-central-1"}
	assert.Equal(t, "https://media.s3.eu-central-1.amazonaws.com/media/a.mp4", s.URL("media/a.mp4"))

	s.endpoint = "https://s3.example.com"
	assert.Equal(t, "https://s3.example.com/media/media/a.mp4", s.URL("media/a.mp4"))
}

func TestNewS3Storage_RequiresBucket(t *testing.T) {
	_, err := NewS3Storage(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}
