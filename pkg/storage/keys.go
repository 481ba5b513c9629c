package storage

import (
	"fmt"
	"path"
	"strings"
)

// FolderVideos is the S3 prefix for video objects.
const FolderVideos = "videos"

// VideoKey returns the S3 object key for an upload: videos/{token}-{filename}.
// The token is fresh per attempt so concurrent uploads of same-named files
// never overwrite each other.
func VideoKey(token, filename string) string {
	return path.Join(FolderVideos, token+"-"+SanitizeFilename(filename))
}

// SanitizeFilename strips any directory components and replaces characters
// outside [A-Za-z0-9._-] so the client-supplied name is safe inside a key.
func SanitizeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "upload"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Locator returns the durable reference for a stored object: s3://{bucket}/{key}.
func Locator(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

// ParseLocator splits an s3://{bucket}/{key} locator. Returns ok=false for
// anything that does not look like one.
func ParseLocator(locator string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(locator, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
