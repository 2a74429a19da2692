package throttle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// backends runs fn against every Throttle implementation sharing one clock.
func backends(t *testing.T, fn func(t *testing.T, th Throttle, clk *clock)) {
	t.Run("memory", func(t *testing.T) {
		clk := newClock()
		fn(t, NewMemory(WithClock(clk.Now)), clk)
	})
	t.Run("redis", func(t *testing.T) {
		clk := newClock()
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		fn(t, NewRedis(rdb, WithRedisClock(clk.Now)), clk)
	})
}

func TestBlocksAfterMaxAttempts(t *testing.T) {
	backends(t, func(t *testing.T, th Throttle, clk *clock) {
		ctx := context.Background()
		for i := 1; i < MaxAttempts; i++ {
			st, err := th.RecordFailure(ctx, "a@x.io")
			require.NoError(t, err)
			assert.False(t, st.Blocked)
			assert.Equal(t, i, st.Failures)
		}

		st, err := th.RecordFailure(ctx, "a@x.io")
		require.NoError(t, err)
		assert.True(t, st.Blocked)
		assert.Equal(t, 300, st.RetryAfterSeconds())

		clk.Advance(90 * time.Second)
		st, err = th.Check(ctx, "a@x.io")
		require.NoError(t, err)
		assert.True(t, st.Blocked)
		assert.Equal(t, 210, st.RetryAfterSeconds())

		other, err := th.Check(ctx, "b@x.io")
		require.NoError(t, err)
		assert.False(t, other.Blocked)
	})
}

func TestBlockLapsesAndSuccessClears(t *testing.T) {
	backends(t, func(t *testing.T, th Throttle, clk *clock) {
		ctx := context.Background()
		for i := 0; i < MaxAttempts; i++ {
			_, err := th.RecordFailure(ctx, "a@x.io")
			require.NoError(t, err)
		}

		clk.Advance(BlockWindow + time.Second)
		st, err := th.Check(ctx, "a@x.io")
		require.NoError(t, err)
		assert.False(t, st.Blocked)

		require.NoError(t, th.RecordSuccess(ctx, "a@x.io"))

		st, err = th.RecordFailure(ctx, "a@x.io")
		require.NoError(t, err)
		assert.Equal(t, 1, st.Failures)
		assert.False(t, st.Blocked)
	})
}

func TestFailureAfterLapsedBlockReblocks(t *testing.T) {
	backends(t, func(t *testing.T, th Throttle, clk *clock) {
		ctx := context.Background()
		for i := 0; i < MaxAttempts; i++ {
			_, err := th.RecordFailure(ctx, "a@x.io")
			require.NoError(t, err)
		}
		clk.Advance(BlockWindow + time.Second)

		st, err := th.RecordFailure(ctx, "a@x.io")
		require.NoError(t, err)
		assert.True(t, st.Blocked)
		assert.Equal(t, MaxAttempts+1, st.Failures)
	})
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	assert.Equal(t, 0, Status{}.RetryAfterSeconds())
	assert.Equal(t, 1, Status{Remaining: 10 * time.Millisecond}.RetryAfterSeconds())
	assert.Equal(t, 300, Status{Remaining: BlockWindow}.RetryAfterSeconds())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "a@x.io", Key("  A@X.io "))
}

func TestMemoryPrune(t *testing.T) {
	clk := newClock()
	m := NewMemory(WithClock(clk.Now), WithIdleTTL(time.Hour))
	ctx := context.Background()

	_, err := m.RecordFailure(ctx, "idle")
	require.NoError(t, err)
	for i := 0; i < MaxAttempts; i++ {
		_, err = m.RecordFailure(ctx, "blocked")
		require.NoError(t, err)
	}

	clk.Advance(2 * time.Hour)
	_, err = m.RecordFailure(ctx, "fresh")
	require.NoError(t, err)

	// blocked has lapsed and is idle too
	assert.Equal(t, 2, m.Prune())
	assert.Equal(t, 1, m.size())
}

func TestMemoryPruneKeepsActiveBlock(t *testing.T) {
	clk := newClock()
	m := NewMemory(WithClock(clk.Now), WithIdleTTL(time.Minute))
	ctx := context.Background()
	for i := 0; i < MaxAttempts; i++ {
		_, err := m.RecordFailure(ctx, "blocked")
		require.NoError(t, err)
	}
	clk.Advance(2 * time.Minute)

	assert.Equal(t, 0, m.Prune())
	assert.Equal(t, 1, m.size())
}

func TestMemoryJanitorStopsOnCancel(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestRedisRecordExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	th := NewRedis(rdb, WithPrefix("test:"))
	ctx := context.Background()

	_, err := th.RecordFailure(ctx, "a@x.io")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:a@x.io"))
	assert.Equal(t, defaultIdleTTL, mr.TTL("test:a@x.io"))

	require.NoError(t, th.RecordSuccess(ctx, "a@x.io"))
	assert.False(t, mr.Exists("test:a@x.io"))
}

func TestRedisErrorsSurface(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	th := NewRedis(rdb)
	mr.Close()

	_, err := th.Check(context.Background(), "a@x.io")
	require.Error(t, err)
}
