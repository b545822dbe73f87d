// Package storage uploads profile pictures to the project's Cloud Storage bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const (
	// MaxAvatarBytes is the largest accepted avatar upload.
	MaxAvatarBytes = 5 << 20

	downloadEndpoint = "https://firebasestorage.googleapis.com/v0/b/"
)

var (
	ErrNotAnImage   = errors.New("file must be an image")
	ErrAvatarTooBig = errors.New("image must be 5MB or smaller")
	ErrEmptyUpload  = errors.New("uploaded file is empty")
)

// ValidateAvatar checks the declared content type and size of an upload.
func ValidateAvatar(contentType string, size int64) error {
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return ErrNotAnImage
	}
	if size <= 0 {
		return ErrEmptyUpload
	}
	if size > MaxAvatarBytes {
		return ErrAvatarTooBig
	}
	return nil
}

// AvatarObject is the object name for a user's avatar. Uploads overwrite the previous one.
func AvatarObject(uid string) string {
	return "avatars/" + uid + ".jpg"
}

// DownloadURL builds the token-protected public URL the web SDK hands out.
func DownloadURL(bucket, object, token string) string {
	return fmt.Sprintf("%s%s/o/%s?alt=media&token=%s",
		downloadEndpoint, bucket, url.PathEscape(object), url.QueryEscape(token))
}

// AvatarStore writes avatars into a bucket.
type AvatarStore struct {
	bucket *gcs.BucketHandle
	name   string
}

// NewAvatarStore wraps the default bucket of the Firebase app.
func NewAvatarStore(bucket *gcs.BucketHandle, bucketName string) *AvatarStore {
	return &AvatarStore{bucket: bucket, name: bucketName}
}

// Upload streams r to avatars/<uid>.jpg and returns its download URL.
func (s *AvatarStore) Upload(ctx context.Context, uid, contentType string, size int64, r io.Reader) (string, error) {
	if err := ValidateAvatar(contentType, size); err != nil {
		return "", err
	}
	object := AvatarObject(uid)
	token := uuid.NewString()

	w := s.bucket.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=3600"
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}

	// One extra byte so an understated size is still caught.
	n, err := io.Copy(w, io.LimitReader(r, MaxAvatarBytes+1))
	if err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to upload avatar for user %s: %w", uid, err)
	}
	if n > MaxAvatarBytes {
		_ = w.Close()
		return "", ErrAvatarTooBig
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalise avatar for user %s: %w", uid, err)
	}
	return DownloadURL(s.name, object, token), nil
}
