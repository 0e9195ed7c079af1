package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/logger"
	"github.com/tejashwikalptaru/saavntune/internal/testutil"
)

func newTestStore(t *testing.T) *QueueStore {
	t.Helper()
	return NewQueueStore(filepath.Join(t.TempDir(), "state", "queue.yaml"), logger.NewTestLogger())
}

func testSnapshot() domain.QueueSnapshot {
	return domain.QueueSnapshot{
		Queue: []domain.Song{
			{ID: "s1", Name: "Thunder", Artists: "Imagine Dragons", Duration: 187, ImageURL: "http://img/1", StreamURL: "http://cdn/1"},
			{ID: "s2", Name: "Believer", Artists: "Imagine Dragons, Lil Wayne", Duration: 204, StreamURL: "http://cdn/2"},
		},
		CurrentIndex: 0,
	}
}

func receive(t *testing.T, ch <-chan domain.QueueSnapshot) domain.QueueSnapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "stream closed unexpectedly")
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return domain.QueueSnapshot{}
	}
}

func TestQueueStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, store.Save(ctx, testSnapshot()))

	ch, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSnapshot(), receive(t, ch))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "currentIndex: 0")
	assert.Contains(t, string(data), "streamUrl: http://cdn/1")
}

func TestQueueStore_MissingFile(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EmptySnapshot(), receive(t, ch))
}

func TestQueueStore_CorruptFile(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o755))
	require.NoError(t, os.WriteFile(store.Path(), []byte("queue: [unterminated"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EmptySnapshot(), receive(t, ch))
}

func TestQueueStore_OverwriteLeavesNoTempFiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		snapshot := testSnapshot()
		snapshot.CurrentIndex = i % 2
		require.NoError(t, store.Save(ctx, snapshot))
	}

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "queue.yaml", entries[0].Name())
}

func TestQueueStore_StreamsSavesAndClear(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EmptySnapshot(), receive(t, ch))

	require.NoError(t, store.Save(ctx, testSnapshot()))
	assert.Equal(t, testSnapshot(), receive(t, ch))

	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, domain.EmptySnapshot(), receive(t, ch))

	_, err = os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestQueueStore_SeesOtherWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.yaml")
	reader := NewQueueStore(path, logger.NewTestLogger())
	writer := NewQueueStore(path, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := reader.Load(ctx)
	require.NoError(t, err)
	receive(t, ch)

	require.NoError(t, writer.Save(ctx, testSnapshot()))
	assert.Equal(t, testSnapshot(), receive(t, ch))
}

func TestQueueStore_ClearMissingIsNoop(t *testing.T) {
	assert.NoError(t, newTestStore(t).Clear(context.Background()))
}

func TestQueueStore_NoLeaks(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := store.Load(ctx)
	require.NoError(t, err)
	receive(t, ch)

	cancel()
	for range ch {
	}
}
