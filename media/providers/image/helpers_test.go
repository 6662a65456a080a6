package image

import (
	"time"

	"github.com/BaSui01/mediagen/media/base"
	"github.com/BaSui01/mediagen/media/retry"
	"github.com/BaSui01/mediagen/storage"
	"github.com/BaSui01/mediagen/testutil/fixtures"
	"go.uber.org/zap"
)

func testDeps() (base.Deps, *storage.MemoryStore) {
	svc, store := fixtures.NewMemoryStorage()
	return base.Deps{
		Storage: svc,
		Logger:  zap.NewNop(),
		RetryPolicy: &retry.RetryPolicy{
			MaxRetries:   1,
			InitialDelay: time.Millisecond,
			MaxDelay:     2 * time.Millisecond,
			Multiplier:   2,
		},
		Poll: base.PollOptions{Interval: time.Millisecond, MaxDuration: 2 * time.Second},
	}, store
}
