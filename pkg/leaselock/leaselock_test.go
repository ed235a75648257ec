package leaselock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	key string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.key
	return nil
}

// fakeDB keeps lock holders in a map and ignores expiry.
type fakeDB struct {
	mu      sync.Mutex
	holders map[string]string
}

func newFakeDB() *fakeDB {
	return &fakeDB{holders: make(map[string]string)}
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, token := args[0].(string), args[1].(string)
	holder, held := f.holders[key]
	switch sql {
	case tryAcquireSQL:
		if held && holder != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		f.holders[key] = token
		return fakeRow{key: key}
	case renewSQL:
		if !held || holder != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{key: key}
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, token := args[0].(string), args[1].(string)
	if f.holders[key] == token {
		delete(f.holders, key)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("DELETE 0"), nil
}

func TestGraphBuildKey(t *testing.T) {
	assert.Equal(t, "graph-build:tenant-1", GraphBuildKey("tenant-1"))
	assert.NotEqual(t, GraphBuildKey("a"), GraphBuildKey("b"))
}

func TestAcquireIsExclusivePerKey(t *testing.T) {
	ctx := context.Background()
	c := newWithConn(newFakeDB())
	opts := Options{TTL: time.Minute}

	lease, err := c.Acquire(ctx, GraphBuildKey("t1"), opts)
	require.NoError(t, err)

	_, err = c.Acquire(ctx, GraphBuildKey("t1"), opts)
	assert.ErrorIs(t, err, ErrBusy)

	other, err := c.Acquire(ctx, GraphBuildKey("t2"), opts)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	assert.Error(t, lease.Context.Err())

	again, err := c.Acquire(ctx, GraphBuildKey("t1"), opts)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestWithLeaseReleasesAfterRun(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	c := newWithConn(db)

	ran := false
	err := c.WithLease(ctx, GraphBuildKey("t1"), Options{TTL: time.Minute}, func(ctx context.Context) error {
		ran = true
		assert.NoError(t, ctx.Err())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Empty(t, db.holders)
}

func TestWaitingAcquireGivesUpWithContext(t *testing.T) {
	db := newFakeDB()
	c := newWithConn(db)

	lease, err := c.Acquire(context.Background(), "k", Options{TTL: time.Minute})
	require.NoError(t, err)
	defer lease.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Acquire(ctx, "k", Options{TTL: time.Minute, Wait: true, WaitInterval: 10 * time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquireRejectsEmptyKey(t *testing.T) {
	_, err := newWithConn(newFakeDB()).Acquire(context.Background(), "", Options{})
	assert.Error(t, err)
}
