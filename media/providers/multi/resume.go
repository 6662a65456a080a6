package multi

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
)

var extensionMedia = map[string]media.MediaType{
	".mp4":  media.MediaVideo,
	".mov":  media.MediaVideo,
	".webm": media.MediaVideo,
	".m3u8": media.MediaVideo,
	".mp3":  media.MediaAudio,
	".wav":  media.MediaAudio,
	".flac": media.MediaAudio,
	".m4a":  media.MediaAudio,
	".ogg":  media.MediaAudio,
}

// resume runs one status check. The task id does not carry the output
// type, so it is guessed from the first URL.
func resume(ctx context.Context, b *base.Base, checker media.TaskChecker, taskID string) *media.AdapterResponse {
	return b.Guard(ctx, "resume", func(ctx context.Context) (*media.AdapterResponse, error) {
		if strings.TrimSpace(taskID) == "" {
			return nil, media.NewInvalidRequestError("task id is required")
		}
		st, err := checker.CheckTaskStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}
		var out base.TaskOutput
		if st != nil {
			out.MediaType = guessMediaType(st.Output)
		}
		return b.Complete(ctx, taskID, st, out)
	})
}

func guessMediaType(urls []string) media.MediaType {
	if len(urls) == 0 {
		return media.MediaImage
	}
	p := urls[0]
	if u, err := url.Parse(p); err == nil {
		p = u.Path
	}
	if mt, ok := extensionMedia[strings.ToLower(path.Ext(p))]; ok {
		return mt
	}
	return media.MediaImage
}
