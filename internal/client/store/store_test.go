package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newwaysadmin/slipsync/internal/common"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "device.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &Project{
		ID:           "P1",
		LastModified: 100,
		OwnerName:    "nok",
		BillCount:    2,
		Payload:      []byte(`{"slipAmount": 1}`),
		Dirty:        true,
	}
	require.NoError(t, s.Upsert(ctx, p))

	got, err := s.Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, p.Payload, got.Payload)
	assert.True(t, got.Dirty)
	assert.Equal(t, 2, got.BillCount)

	// replace
	p.LastModified = 200
	p.Dirty = false
	require.NoError(t, s.Upsert(ctx, p))
	got, err = s.Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.LastModified)
	assert.False(t, got.Dirty)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStatesAndDirtyProjects(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, &Project{ID: "A", LastModified: 1, Payload: []byte(`{}`), Dirty: true}))
	require.NoError(t, s.Upsert(ctx, &Project{ID: "B", LastModified: 2, Payload: []byte(`{}`)}))

	states, err := s.States(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 2)

	dirty, err := s.DirtyProjects(ctx)
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, "A", dirty[0].ID)
	assert.Equal(t, []byte(`{}`), dirty[0].Payload)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, &Project{ID: "A", Payload: []byte(`{}`)}))
	require.NoError(t, s.Delete(ctx, "A"))
	require.NoError(t, s.Delete(ctx, "A")) // absent id is fine

	_, err := s.Get(ctx, "A")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSetBillCountOnlyRaises(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, &Project{ID: "A", BillCount: 3, Payload: []byte(`{}`)}))

	require.NoError(t, s.SetBillCount(ctx, "A", 5))
	got, err := s.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 5, got.BillCount)

	require.NoError(t, s.SetBillCount(ctx, "A", 2))
	got, err = s.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 5, got.BillCount)
}

func TestSweepClosedSkipsDirtyAndOpen(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, &Project{ID: "old-closed", LastModified: 10, IsClosed: true, Payload: []byte(`{}`)}))
	require.NoError(t, s.Upsert(ctx, &Project{ID: "old-open", LastModified: 10, Payload: []byte(`{}`)}))
	require.NoError(t, s.Upsert(ctx, &Project{ID: "old-closed-dirty", LastModified: 10, IsClosed: true, Dirty: true, Payload: []byte(`{}`)}))
	require.NoError(t, s.Upsert(ctx, &Project{ID: "new-closed", LastModified: 900, IsClosed: true, Payload: []byte(`{}`)}))

	n, err := s.SweepClosed(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	states, err := s.States(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(states))
	for _, p := range states {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"old-open", "old-closed-dirty", "new-closed"}, ids)
}

func TestSyncTimePersistence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts, err := s.SyncTime(ctx)
	require.NoError(t, err)
	assert.Zero(t, ts)

	require.NoError(t, s.SetSyncTime(ctx, 12345))
	require.NoError(t, s.SetSyncTime(ctx, 23456))

	ts, err = s.SyncTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(23456), ts)
}
