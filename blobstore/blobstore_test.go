package blobstore

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipstack/firedata/alerts"
)

func testBucket(t *testing.T) (*Bucket, *alerts.Surface) {
	t.Helper()
	client, err := minio.New("storage.example.com", &minio.Options{
		Creds:  credentials.NewStaticV4("test", "test", ""),
		Secure: true,
	})
	require.NoError(t, err)
	surface := alerts.New()
	return New(client, "uploads", surface), surface
}

func TestPublicURL(t *testing.T) {
	b, _ := testBucket(t)

	assert.Equal(t, "https://storage.example.com/uploads/videos/clip.mp4", b.PublicURL("videos/clip.mp4"))
	assert.Equal(t, "https://storage.example.com/uploads/videos/clip.mp4", b.PublicURL("/videos/clip.mp4"))
}

func TestUploadMissingFile(t *testing.T) {
	b, surface := testBucket(t)

	url, err := b.UploadFile(context.Background(), "/does/not/exist.mp4", "", "videos/clip.mp4")
	assert.Empty(t, url)
	require.Error(t, err)

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "storage/object-not-found", serr.Code)

	require.True(t, surface.HasError())
	display := surface.Current()
	assert.Equal(t, "Storage Error", display.Title)
	assert.Equal(t, "The requested file was not found.", display.Message)
}

func TestClassifyStorageErrors(t *testing.T) {
	tests := []struct {
		minioCode string
		want      string
	}{
		{"NoSuchKey", "storage/object-not-found"},
		{"NoSuchBucket", "storage/bucket-not-found"},
		{"AccessDenied", "storage/unauthorized"},
		{"InvalidArgument", "storage/invalid-argument"},
		{"QuotaExceeded", "storage/quota-exceeded"},
		{"SomethingElse", "storage/unknown"},
	}

	for _, tt := range tests {
		err := classify(minio.ErrorResponse{Code: tt.minioCode, Message: "boom"}, "upload clip.mp4")
		assert.Equal(t, tt.want, err.Code, "minio code %s", tt.minioCode)
		assert.Contains(t, err.Message, "upload clip.mp4")
	}

	err := classify(errors.New("dial tcp: timeout"), "upload clip.mp4")
	assert.Equal(t, "storage/unknown", err.Code)
}

func TestErrorImplementsCoded(t *testing.T) {
	var coded alerts.Coded = &Error{Code: "storage/unknown", Message: "boom"}
	assert.Equal(t, "storage/unknown", coded.ErrorCode())
	assert.Equal(t, "storage/unknown: boom", coded.Error())
}
