package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAvatar(t *testing.T) {
	assert.NoError(t, ValidateAvatar("image/png", 1024))
	assert.NoError(t, ValidateAvatar("IMAGE/JPEG", MaxAvatarBytes))
	assert.ErrorIs(t, ValidateAvatar("application/pdf", 1024), ErrNotAnImage)
	assert.ErrorIs(t, ValidateAvatar("image/png", 0), ErrEmptyUpload)
	assert.ErrorIs(t, ValidateAvatar("image/png", MaxAvatarBytes+1), ErrAvatarTooBig)
}

func TestAvatarObject(t *testing.T) {
	assert.Equal(t, "avatars/abc.jpg", AvatarObject("abc"))
}

func TestDownloadURLEscapesObjectPath(t *testing.T) {
	got := DownloadURL("demo.appspot.com", "avatars/abc.jpg", "tok-1")
	assert.Equal(t, "https://firebasestorage.googleapis.com/v0/b/demo.appspot.com/o/avatars%2Fabc.jpg?alt=media&token=tok-1", got)
}
