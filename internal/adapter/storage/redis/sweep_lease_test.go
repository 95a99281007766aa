package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepLease_ExclusiveAcquire(t *testing.T) {
	_, client := newTestClient(t)
	lease := NewSweepLease(client)
	ctx := context.Background()

	ok, err := lease.Acquire(ctx, "replica-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lease.Acquire(ctx, "replica-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second owner must not take a held lease")
}

func TestSweepLease_ReleaseByOwnerOnly(t *testing.T) {
	s, client := newTestClient(t)
	lease := NewSweepLease(client)
	ctx := context.Background()

	ok, err := lease.Acquire(ctx, "replica-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lease.Release(ctx, "replica-b"))
	assert.True(t, s.Exists("amethyst:lease:payment-sweep"), "foreign release must not drop the lease")

	require.NoError(t, lease.Release(ctx, "replica-a"))
	assert.False(t, s.Exists("amethyst:lease:payment-sweep"))

	ok, err = lease.Acquire(ctx, "replica-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSweepLease_Expires(t *testing.T) {
	s, client := newTestClient(t)
	lease := NewSweepLease(client)
	ctx := context.Background()

	ok, err := lease.Acquire(ctx, "replica-a", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	s.FastForward(31 * time.Second)

	ok, err = lease.Acquire(ctx, "replica-b", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSweepLease_ReleaseWithoutLease(t *testing.T) {
	_, client := newTestClient(t)
	lease := NewSweepLease(client)
	assert.NoError(t, lease.Release(context.Background(), "nobody"))
}
