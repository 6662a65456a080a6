package base

import (
	"strings"

	"github.com/BaSui01/mediagen/media"
	"go.uber.org/zap"
)

// SingleImage returns the first input image for providers that accept one.
// Extra images are dropped with a warning.
func (b *Base) SingleImage(req *media.UnifiedGenerationRequest) string {
	if len(req.InputImages) == 0 {
		return ""
	}
	if len(req.InputImages) > 1 {
		b.logger.Warn("provider accepts a single input image, extra images ignored",
			zap.Int("received", len(req.InputImages)))
	}
	return req.InputImages[0]
}

// PrependImages puts image URLs in front of the prompt, the convention of
// providers that read references from prompt text.
func PrependImages(prompt string, images []string) string {
	var parts []string
	for _, img := range images {
		if img = strings.TrimSpace(img); img != "" {
			parts = append(parts, img)
		}
	}
	if len(parts) == 0 {
		return prompt
	}
	return strings.Join(parts, " ") + " " + prompt
}

// IsDataURI reports whether s is an inline base64 payload.
func IsDataURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:")
}
