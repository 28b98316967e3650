package idpool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaxtyson/spidercrawl/internal/logger"
)

func testLogger(t *testing.T) *logger.StyledLogger {
	_, l, cleanup, err := logger.NewWithTheme(&logger.Config{Level: "error"})
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return l
}

func TestPool_PopBlocksUntilOffered(t *testing.T) {
	p := New("", 0, 0, testLogger(t))

	resultCh := make(chan int64, 1)
	go func() {
		id, err := p.Pop(context.Background())
		assert.NoError(t, err)
		resultCh <- id
	}()

	time.Sleep(50 * time.Millisecond)
	select {
	case <-resultCh:
		t.Fatal("Pop returned before any id was offered")
	default:
	}

	p.Offer([]int64{42})

	select {
	case id := <-resultCh:
		assert.Equal(t, int64(42), id)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up after Offer")
	}
}

func TestPool_PopRespectsContextCancellation(t *testing.T) {
	p := New("", 0, 0, testLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_OfferDeduplicatesAgainstDoneAndFailed(t *testing.T) {
	p := New("", 0, 0, testLogger(t))
	p.MarkDone(1)
	p.MarkFailed(2)

	p.Offer([]int64{1, 2, 3})
	stats := p.Stats()
	assert.Equal(t, 1, stats.ToProcess)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Failed)
}

func TestPool_FrontierCapStopsAdmission(t *testing.T) {
	p := New("", 2, 0, testLogger(t))
	p.Offer([]int64{1, 2, 3, 4})
	assert.Equal(t, 2, p.Stats().ToProcess)
}

func TestPool_ScavengeOnceMovesFailedBackToProcess(t *testing.T) {
	p := New("", 0, 0, testLogger(t))
	p.MarkFailed(7)
	assert.Equal(t, 1, p.Stats().Failed)

	p.scavengeOnce()

	stats := p.Stats()
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 1, stats.ToProcess)
}

func TestPool_SnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	p := New(path, 0, 0, testLogger(t))
	p.Offer([]int64{1, 2})
	p.MarkDone(3)
	p.MarkFailed(4)

	require.NoError(t, p.dump())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.ElementsMatch(t, []int64{1, 2}, snap.ToProcess)
	assert.ElementsMatch(t, []int64{3}, snap.Processed)
	assert.ElementsMatch(t, []int64{4}, snap.Failed)

	reloaded := New(path, 0, 0, testLogger(t))
	require.NoError(t, reloaded.load())
	reloadedStats := reloaded.Stats()
	assert.Equal(t, 2, reloadedStats.ToProcess)
	assert.Equal(t, 1, reloadedStats.Processed)
	assert.Equal(t, 1, reloadedStats.Failed)
}

func TestPool_StartAndStopPersistsSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	p := New(path, 0, 0, testLogger(t))
	require.NoError(t, p.Start(context.Background()))
	p.Offer([]int64{9})
	require.NoError(t, p.Stop())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.ElementsMatch(t, []int64{9}, snap.ToProcess)
}
