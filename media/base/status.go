package base

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/BaSui01/mediagen/media"
)

var statusWords = map[string]media.TaskState{
	"success":   media.TaskSucceeded,
	"succeeded": media.TaskSucceeded,
	"finished":  media.TaskSucceeded,
	"completed": media.TaskSucceeded,
	"done":      media.TaskSucceeded,
	"ok":        media.TaskSucceeded,

	"pending":    media.TaskProcessing,
	"processing": media.TaskProcessing,
	"running":    media.TaskProcessing,
	"queued":     media.TaskProcessing,
	"submitted":  media.TaskProcessing,
	"waiting":    media.TaskProcessing,

	"failed":   media.TaskFailed,
	"error":    media.TaskFailed,
	"timeout":  media.TaskFailed,
	"canceled": media.TaskFailed,
	"rejected": media.TaskFailed,
}

// NormalizeStatus maps a provider status word to a TaskState.
// Unknown words are treated as still processing.
func NormalizeStatus(raw string) media.TaskState {
	if st, ok := statusWords[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return st
	}
	return media.TaskProcessing
}

// ParseProgress accepts numbers or numeric strings. Integer values ("42",
// 42, json.Number("1")) are percentages; decimals ("0.42") are fractions;
// a "%" suffix always means percent. float64 cannot tell 1 from 1.0 after
// JSON decoding, so float64 values up to 1 are fractions and larger ones
// are percentages. It returns nil when v carries no number.
func ParseProgress(v any) *float64 {
	var (
		f       float64
		percent bool
	)
	switch p := v.(type) {
	case nil:
		return nil
	case float64:
		f, percent = p, p > 1
	case float32:
		f, percent = float64(p), p > 1
	case int:
		f, percent = float64(p), true
	case int64:
		f, percent = float64(p), true
	case json.Number:
		n, err := p.Float64()
		if err != nil {
			return nil
		}
		f, percent = n, isIntLiteral(string(p)) || n > 1
	case string:
		s := strings.TrimSpace(p)
		percent = strings.HasSuffix(s, "%")
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = n
		percent = percent || isIntLiteral(s) || n > 1
	default:
		return nil
	}
	if percent {
		f /= 100
	}
	return media.Progress(f)
}

func isIntLiteral(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// floatParam reads a numeric parameter that may arrive as a string.
func floatParam(req *media.UnifiedGenerationRequest, key string) (float64, bool) {
	v, ok := req.Param(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
