// Package blobstore moves binary assets between the device and the object
// storage service and hands back publicly resolvable URLs.
package blobstore

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/clipstack/firedata/alerts"
)

// Error is a classified storage failure with a service-prefixed code like
// "storage/bucket-not-found".
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode reports the service-prefixed technical code.
func (e *Error) ErrorCode() string { return e.Code }

// Bucket is the file transfer gateway for one storage bucket. Failures are
// reported to the error surface as a side effect and returned; nothing is
// thrown past this boundary.
type Bucket struct {
	client  *minio.Client
	bucket  string
	baseURL string
	surface *alerts.Surface
}

// New creates a gateway over an existing object storage client. client,
// bucket, and surface must be non-nil; public URLs are built from the
// client's endpoint.
func New(client *minio.Client, bucket string, surface *alerts.Surface) *Bucket {
	if client == nil {
		panic("blobstore: nil client")
	}
	if surface == nil {
		panic("blobstore: nil error surface")
	}
	endpoint := client.EndpointURL()
	return &Bucket{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(endpoint.String(), "/"),
		surface: surface,
	}
}

// UploadFile uploads the local file to objectPath and returns its public
// URL, or "" on failure. An empty contentType is inferred from the file
// extension.
func (b *Bucket) UploadFile(ctx context.Context, localPath, contentType, objectPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		serr := &Error{Code: "storage/object-not-found", Message: fmt.Sprintf("open %s: %v", localPath, err), Err: err}
		b.surface.Handle(serr)
		return "", serr
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		serr := &Error{Code: "storage/unknown", Message: fmt.Sprintf("stat %s: %v", localPath, err), Err: err}
		b.surface.Handle(serr)
		return "", serr
	}

	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(localPath))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
	}

	_, err = b.client.PutObject(ctx, b.bucket, objectPath, f, stat.Size(), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		serr := classify(err, fmt.Sprintf("upload %s", objectPath))
		b.surface.Handle(serr)
		return "", serr
	}

	return b.PublicURL(objectPath), nil
}

// DeleteFile removes the object at objectPath. Best effort: failures are
// surfaced and returned, never panicked.
func (b *Bucket) DeleteFile(ctx context.Context, objectPath string) error {
	err := b.client.RemoveObject(ctx, b.bucket, objectPath, minio.RemoveObjectOptions{})
	if err != nil {
		serr := classify(err, fmt.Sprintf("delete %s", objectPath))
		b.surface.Handle(serr)
		return serr
	}
	return nil
}

// PublicURL returns the publicly resolvable URL for an object path.
func (b *Bucket) PublicURL(objectPath string) string {
	return b.baseURL + "/" + b.bucket + "/" + strings.TrimLeft(objectPath, "/")
}

func classify(err error, op string) *Error {
	resp := minio.ToErrorResponse(err)
	code := "storage/unknown"
	switch resp.Code {
	case "NoSuchKey":
		code = "storage/object-not-found"
	case "NoSuchBucket":
		code = "storage/bucket-not-found"
	case "AccessDenied":
		code = "storage/unauthorized"
	case "InvalidArgument":
		code = "storage/invalid-argument"
	case "QuotaExceeded":
		code = "storage/quota-exceeded"
	}
	return &Error{Code: code, Message: fmt.Sprintf("%s: %v", op, err), Err: err}
}
