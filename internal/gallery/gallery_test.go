package gallery

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photogallery/internal/store"
)

type event struct {
	kind  string
	data  string
	index int
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) ImageAppended(img Image, index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{"append", img.Data, index})
}

func (r *recorder) ImageRemoved(img Image, index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{"remove", img.Data, index})
}

func (r *recorder) snapshot() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%04d", s.n), nil
}

func data(t *testing.T, m *Model) []string {
	t.Helper()
	var out []string
	for _, img := range m.Images() {
		out = append(out, img.Data)
	}
	return out
}

func TestAppendThenReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gallery.db")

	st, err := store.OpenBolt(path, nil)
	require.NoError(t, err)
	m := New(st, nil)
	require.NoError(t, m.LoadFromStore(ctx))
	for _, d := range []string{"x", "y", "z"} {
		_, err := m.Append(ctx, d)
		require.NoError(t, err)
	}
	require.NoError(t, st.Close())

	st, err = store.OpenBolt(path, nil)
	require.NoError(t, err)
	defer st.Close()
	reloaded := New(st, nil)
	require.NoError(t, reloaded.LoadFromStore(ctx))
	assert.Equal(t, []string{"x", "y", "z"}, data(t, reloaded))
	assert.Equal(t, m.Images(), reloaded.Images())
}

func TestAppendReturnsPosition(t *testing.T) {
	ctx := context.Background()
	m := New(store.NewMemory(), nil)
	rec := &recorder{}
	m.Subscribe(rec)

	i, err := m.Append(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	i, err = m.Append(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 1, m.IndexOf("b"))
	assert.Equal(t, -1, m.IndexOf("nope"))
	assert.Equal(t, []event{{"append", "a", 0}, {"append", "b", 1}}, rec.snapshot())
}

func TestRemoveByValueIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := New(st, nil, WithIDGenerator(&seqIDs{}))
	rec := &recorder{}
	m.Subscribe(rec)

	for _, d := range []string{"a", "b", "c"} {
		_, err := m.Append(ctx, d)
		require.NoError(t, err)
	}

	removed, err := m.RemoveByValue(ctx, "b")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = m.RemoveByValue(ctx, "b")
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, []string{"a", "c"}, data(t, m))
	records, err := st.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []store.Record{{ID: "0001", Data: "a"}, {ID: "0003", Data: "c"}}, records)

	events := rec.snapshot()
	assert.Equal(t, event{"remove", "b", 1}, events[len(events)-1])
	assert.Len(t, events, 4)
}

func TestRemoveFirstDuplicateOnly(t *testing.T) {
	ctx := context.Background()
	m := New(store.NewMemory(), nil, WithIDGenerator(&seqIDs{}))
	for _, d := range []string{"a", "dup", "b", "dup"} {
		_, err := m.Append(ctx, d)
		require.NoError(t, err)
	}

	removed, err := m.RemoveByValue(ctx, "dup")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"a", "b", "dup"}, data(t, m))
	assert.Equal(t, 2, m.IndexOfID("0004"))
}

func TestRemoveByID(t *testing.T) {
	ctx := context.Background()
	m := New(store.NewMemory(), nil, WithIDGenerator(&seqIDs{}))
	_, err := m.Append(ctx, "a")
	require.NoError(t, err)

	removed, err := m.RemoveByID(ctx, "0001")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Zero(t, m.Len())
}

func TestStoreFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.Close())
	m := New(st, nil)

	err := m.LoadFromStore(ctx)
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
	assert.Zero(t, m.Len())

	i, err := m.Append(ctx, "a")
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
	assert.Equal(t, 0, i)
	assert.Equal(t, []string{"a"}, data(t, m))

	removed, err := m.RemoveByValue(ctx, "a")
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
	assert.True(t, removed)
	assert.Zero(t, m.Len())
}

func TestLoadFromStoreRunsOnce(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.Put(ctx, "0002", "second"))
	require.NoError(t, st.Put(ctx, "0001", "first"))

	m := New(st, nil)
	rec := &recorder{}
	m.Subscribe(rec)
	require.NoError(t, m.LoadFromStore(ctx))
	require.NoError(t, m.LoadFromStore(ctx))

	assert.Equal(t, []string{"first", "second"}, data(t, m))
	assert.Equal(t, []event{{"append", "first", 0}, {"append", "second", 1}}, rec.snapshot())
}

func TestIDGeneratorError(t *testing.T) {
	m := New(store.NewMemory(), nil, WithIDGenerator(failingIDs{}))
	_, err := m.Append(context.Background(), "a")
	assert.Error(t, err)
	assert.Zero(t, m.Len())
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }

func TestUnsubscribe(t *testing.T) {
	m := New(store.NewMemory(), nil)
	rec := &recorder{}
	unsubscribe := m.Subscribe(rec)
	unsubscribe()
	_, err := m.Append(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, rec.snapshot())
}

func TestConcurrentAppendsMatchStoreOrder(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	m := New(st, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Append(ctx, fmt.Sprintf("img-%02d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	reloaded := New(st, nil)
	require.NoError(t, reloaded.LoadFromStore(ctx))
	assert.Equal(t, m.Images(), reloaded.Images())
}

func TestUUIDGeneratorIsOrdered(t *testing.T) {
	var g UUIDGenerator
	prev := ""
	for i := 0; i < 1000; i++ {
		id, err := g.NewID()
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
}
