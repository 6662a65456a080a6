package base

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/BaSui01/mediagen/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want media.TaskState
	}{
		{"SUCCESS", media.TaskSucceeded},
		{"succeeded", media.TaskSucceeded},
		{" Completed ", media.TaskSucceeded},
		{"ok", media.TaskSucceeded},
		{"queued", media.TaskProcessing},
		{"RUNNING", media.TaskProcessing},
		{"GENERATING", media.TaskProcessing},
		{"", media.TaskProcessing},
		{"canceled", media.TaskFailed},
		{"Rejected", media.TaskFailed},
		{"timeout", media.TaskFailed},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStatus(tt.raw))
		})
	}
}

func TestNormalizeStatus_UnknownIsProcessing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[a-zA-Z_]{1,16}`).Draw(t, "status")
		if _, known := statusWords[strings.ToLower(s)]; known {
			t.Skip("known word")
		}
		if NormalizeStatus(s) != media.TaskProcessing {
			t.Fatalf("unknown status %q not treated as processing", s)
		}
	})
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"fraction string", "0.42", 0.42},
		{"percent string", "42%", 0.42},
		{"percent number", float64(42), 0.42},
		{"fraction number", 0.5, 0.5},
		{"int", 100, 1},
		{"over", "250", 1},
		{"int one is one percent", 1, 0.01},
		{"int64 one", int64(1), 0.01},
		{"int string one", "1", 0.01},
		{"decimal string one", "1.0", 1},
		{"json int", json.Number("1"), 0.01},
		{"json fraction", json.Number("0.75"), 0.75},
		{"float one is complete", float64(1), 1},
		{"percent suffix on fraction", "0.5%", 0.005},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseProgress(tt.in)
			require.NotNil(t, got)
			assert.InDelta(t, tt.want, *got, 1e-9)
		})
	}

	assert.Nil(t, ParseProgress(nil))
	assert.Nil(t, ParseProgress("n/a"))
	assert.Nil(t, ParseProgress(map[string]any{}))
}

func TestParseProgress_AlwaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := rapid.Float64Range(-1e6, 1e6).Draw(t, "f")
		p := ParseProgress(f)
		if p == nil || *p < 0 || *p > 1 {
			t.Fatalf("progress %v out of range for %v", p, f)
		}
	})
}
