package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Uploader stores an object and returns a URL clients can load it from.
type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (publicURL string, err error)
}

var avatarExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// AvatarObjectName returns a fresh object name for a profile photo, or false
// when contentType is not an accepted image type.
func AvatarObjectName(contentType string) (string, bool) {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := avatarExt[ct]
	if !ok {
		return "", false
	}
	return path.Join("avatars", uuid.NewString()+ext), true
}
