package storage

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestExtensionFor_ContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/jpeg", "jpg"},
		{"image/png", "png"},
		{"image/webp", "webp"},
		{"video/mp4", "mp4"},
		{"audio/mpeg", "mp3"},
		{"IMAGE/GIF; charset=binary", "gif"},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtensionFor(tt.contentType, nil))
		})
	}
}

func TestExtensionFor_Sniffing(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, "jpg"},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A}, "png"},
		{"gif", []byte("GIF89a...."), "gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "webp"},
		{"unknown", []byte("hello world"), "png"},
		{"empty", nil, "png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtensionFor("", tt.data))
			assert.Equal(t, tt.want, ExtensionFor("application/octet-stream", tt.data))
		})
	}
}

func TestNewObjectKey_Format(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	key := NewObjectKey("shots/42", "jpg", now)

	assert.Regexp(t, regexp.MustCompile(`^shots/42/1700000000123_[0-9a-f]{16}\.jpg$`), key)
	assert.NotEqual(t, key, NewObjectKey("shots/42", "jpg", now), "random suffix must differ")
}

func TestNewObjectKey_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prefix := rapid.StringMatching(`[a-z0-9]{1,8}(/[a-z0-9]{1,8}){0,2}`).Draw(rt, "prefix")
		ext := rapid.SampledFrom([]string{"png", "jpg", "mp4", "mp3"}).Draw(rt, "ext")
		ms := rapid.Int64Range(0, 4102444800000).Draw(rt, "ms")

		key := NewObjectKey("/"+prefix+"/", ext, time.UnixMilli(ms))

		if !strings.HasPrefix(key, prefix+"/") {
			rt.Fatalf("key %q lost prefix %q", key, prefix)
		}
		if !strings.HasSuffix(key, "."+ext) {
			rt.Fatalf("key %q lost extension %q", key, ext)
		}
		if _, err := sanitizeKey(key); err != nil {
			rt.Fatalf("generated key %q is not a valid storage key: %v", key, err)
		}
	})
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/png", ContentTypeFor("png"))
	assert.Equal(t, "video/mp4", ContentTypeFor(".mp4"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("bin"))
}
