package service

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/mediagen/internal/database"
	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/testutil/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitAsync(t *testing.T, s *Service, endpoint string) {
	t.Helper()
	resp, err := s.Generate(context.Background(), fluxConfig(endpoint), &media.UnifiedGenerationRequest{
		Prompt: "p", Parameters: map[string]any{"async": true},
	})
	require.NoError(t, err)
	require.Equal(t, media.StatusProcessing, resp.Status, "%+v", resp.Error)
}

const fluxEnvKey = "AI_PROVIDER_FLUX_DEV_API_KEY"

func TestSweeper_ResumesWithEnvCredential(t *testing.T) {
	ms := fixtures.NewMediaServer(t)
	flux := newFakeFlux(t, ms.URL+"/image.png")
	s, repo, _ := newService(t)
	submitAsync(t, s, flux.URL)
	flux.ready.Store(true)
	t.Setenv(fluxEnvKey, "env-key")

	sw := NewSweeper(s, SweeperOptions{Workers: 2})

	n, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Eventually(t, func() bool {
		pending, err := s.ListPending(context.Background())
		return err == nil && len(pending) == 0
	}, 2*time.Second, 5*time.Millisecond)

	rec, err := repo.FindByTaskID(context.Background(), "FluxAdapter", "flux-1")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", rec.Status)
	sw.pool.Close()
}

func TestSweeper_SkipsTasksWithoutCredential(t *testing.T) {
	flux := newFakeFlux(t, "http://unused/image.png")
	s, _, _ := newService(t)
	submitAsync(t, s, flux.URL)

	t.Setenv(fluxEnvKey, "")

	sw := NewSweeper(s, SweeperOptions{})
	defer sw.pool.Close()

	n, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, _ := s.ListPending(context.Background())
	assert.Len(t, pending, 1, "entry kept for the caller's own resume")
}

func TestSweeper_MinAge(t *testing.T) {
	flux := newFakeFlux(t, "http://unused/image.png")
	s, _, _ := newService(t)
	submitAsync(t, s, flux.URL)

	t.Setenv(fluxEnvKey, "env-key")

	sw := NewSweeper(s, SweeperOptions{MinAge: time.Hour})
	defer sw.pool.Close()

	n, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	sw.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSweeper_StillProcessingStaysIndexed(t *testing.T) {
	flux := newFakeFlux(t, "http://unused/image.png")
	s, repo, _ := newService(t)
	submitAsync(t, s, flux.URL)

	t.Setenv(fluxEnvKey, "env-key")

	sw := NewSweeper(s, SweeperOptions{})
	_, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	sw.pool.Close()

	pending, _ := s.ListPending(context.Background())
	require.Len(t, pending, 1)

	recs, err := repo.List(context.Background(), database.ListFilter{Status: "PROCESSING"})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	s, _, _ := newService(t)
	sw := NewSweeper(s, SweeperOptions{Interval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
