package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prn-tf/inkwell/internal/repository"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestCache_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := newCache(clock.now)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	clock.t = clock.t.Add(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestCache_SetNX(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	c := newCache(clock.now)

	set, err := c.SetNX(ctx, "view", []byte("1"), time.Hour)
	require.NoError(t, err)
	require.True(t, set)

	set, err = c.SetNX(ctx, "view", []byte("2"), time.Hour)
	require.NoError(t, err)
	require.False(t, set)

	clock.t = clock.t.Add(2 * time.Hour)
	set, err = c.SetNX(ctx, "view", []byte("3"), time.Hour)
	require.NoError(t, err)
	require.True(t, set)
}

func TestCache_Expire(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := newCache(clock.now)

	require.NoError(t, c.Set(ctx, "session", []byte("u1"), time.Minute))

	// sliding: each Expire restarts the window
	for i := 0; i < 3; i++ {
		clock.t = clock.t.Add(50 * time.Second)
		require.NoError(t, c.Expire(ctx, "session", time.Minute))
		_, err := c.Get(ctx, "session")
		require.NoError(t, err)
	}

	clock.t = clock.t.Add(61 * time.Second)
	_, err := c.Get(ctx, "session")
	require.ErrorIs(t, err, repository.ErrCacheMiss)

	// an expired key is not revived
	require.NoError(t, c.Expire(ctx, "session", time.Hour))
	_, err = c.Get(ctx, "session")
	require.ErrorIs(t, err, repository.ErrCacheMiss)

	require.NoError(t, c.Expire(ctx, "missing", time.Hour))
	_, err = c.Get(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestCache_NoExpiryAndDelete(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	c := newCache(clock.now)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Expire(ctx, "k", 0))
	clock.t = clock.t.Add(24 * time.Hour)
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestCache_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := newCache(time.Now)

	value := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 'y'

	again, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), again)
}
