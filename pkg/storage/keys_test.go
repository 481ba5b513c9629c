package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoKeyDistinctPerToken(t *testing.T) {
	a := VideoKey("token-a", "clip.mp4")
	b := VideoKey("token-b", "clip.mp4")
	assert.NotEqual(t, a, b, "same filename with different tokens must not collide")
	assert.Equal(t, "videos/token-a-clip.mp4", a)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"clip.mp4", "clip.mp4"},
		{"my holiday video!.mp4", "my_holiday_video_.mp4"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\clip.mp4`, "clip.mp4"},
		{"", "upload"},
		{"..", "upload"},
		{"ütf8 näme.mov", "_tf8_n_me.mov"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), "input %q", tt.in)
	}
}

func TestLocatorRoundTrip(t *testing.T) {
	loc := Locator("my-bucket", "videos/abc-clip.mp4")
	assert.Equal(t, "s3://my-bucket/videos/abc-clip.mp4", loc)

	bucket, key, ok := ParseLocator(loc)
	require.True(t, ok)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "videos/abc-clip.mp4", key)
}

func TestParseLocatorRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "http://bucket/key", "s3://", "s3://bucket", "s3://bucket/"} {
		_, _, ok := ParseLocator(in)
		assert.False(t, ok, "input %q", in)
	}
}
