// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore_RoundTripOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte(`{"data":[1]}`), time.Hour))
	require.NoError(t, s.Close())

	reopened, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	val, found, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"data":[1]}`, string(val))
	assert.Equal(t, 1, reopened.Stats().CurrentSize)
}

func TestBadgerStore_InMemoryMissAndExpiry(t *testing.T) {
	s, err := OpenBadgerStore("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	_, found, err := s.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, found)

	// badger TTLs have second granularity.
	require.NoError(t, s.Set(ctx, "short", []byte("v"), time.Second))
	require.Eventually(t, func() bool {
		_, found, _ := s.Get(ctx, "short")
		return !found
	}, 5*time.Second, 100*time.Millisecond)

	require.NoError(t, s.HealthCheck(ctx))
}
