package base

import (
	"math"
	"strconv"
	"strings"
)

// AspectRatios snaps free-form ratio or size strings to the values a
// provider accepts.
type AspectRatios struct {
	Supported []string
	// Aliases maps exact inputs (lower case) to a supported value.
	Aliases map[string]string
	Default string
}

// CommonAspectRatios covers most image and video providers.
var CommonAspectRatios = AspectRatios{
	Supported: []string{"1:1", "16:9", "9:16", "4:3", "3:4", "3:2", "2:3", "21:9"},
	Aliases: map[string]string{
		"square":    "1:1",
		"landscape": "16:9",
		"portrait":  "9:16",
		"1024x1024": "1:1",
		"1792x1024": "16:9",
		"1024x1792": "9:16",
	},
	Default: "1:1",
}

// Snap resolves input by exact lookup, then the nearest supported ratio,
// then Default. Ties keep the earlier entry in Supported.
func (a AspectRatios) Snap(input string) string {
	s := normalizeRatio(input)
	if s == "" {
		return a.fallback()
	}
	if v, ok := a.Aliases[s]; ok {
		return v
	}
	for _, sup := range a.Supported {
		if normalizeRatio(sup) == s {
			return sup
		}
	}

	target, ok := ParseRatio(s)
	if !ok {
		return a.fallback()
	}
	best, bestDiff := "", math.Inf(1)
	for _, sup := range a.Supported {
		r, ok := ParseRatio(sup)
		if !ok {
			continue
		}
		if d := math.Abs(r - target); d < bestDiff {
			best, bestDiff = sup, d
		}
	}
	if best == "" {
		return a.fallback()
	}
	return best
}

func (a AspectRatios) fallback() string {
	if a.Default != "" {
		return a.Default
	}
	return "1:1"
}

func normalizeRatio(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("×", "x", "*", "x", " ", "").Replace(s)
	return s
}

// ParseRatio parses "W:H" or "WxH" into W/H.
func ParseRatio(s string) (float64, bool) {
	s = normalizeRatio(s)
	sep := strings.IndexAny(s, ":x")
	if sep <= 0 || sep == len(s)-1 {
		return 0, false
	}
	w, err1 := strconv.ParseFloat(s[:sep], 64)
	h, err2 := strconv.ParseFloat(s[sep+1:], 64)
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, false
	}
	return w / h, true
}
