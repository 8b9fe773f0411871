package instance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	settings Settings
	err      error
	calls    int
}

func (l *countingLoader) Load(ctx context.Context) (Settings, error) {
	l.calls++
	return l.settings, l.err
}

func TestCacheServesRepeatedFetchesFromMemory(t *testing.T) {
	l := &countingLoader{settings: Settings{LocalDriveCapacityMB: 100, RemoteDriveCapacityMB: 8}}
	c := NewCache(l, Settings{}, time.Minute)

	for i := 0; i < 3; i++ {
		s, err := c.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(8*1024*1024), s.RemoteCapacityBytes())
	}
	assert.Equal(t, 1, l.calls)
}

func TestCacheFallsBackToDefaults(t *testing.T) {
	l := &countingLoader{err: ErrNoSettings}
	c := NewCache(l, Settings{LocalDriveCapacityMB: 1, RemoteDriveCapacityMB: 2}, time.Minute)

	s, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1024*1024), s.LocalCapacityBytes())
	assert.Equal(t, int64(2), s.RemoteDriveCapacityMB)
}

func TestCachePropagatesLoadErrors(t *testing.T) {
	l := &countingLoader{err: errors.New("db down")}
	c := NewCache(l, Settings{}, time.Minute)

	_, err := c.Fetch(context.Background())
	require.Error(t, err)

	// failures are not cached
	_, _ = c.Fetch(context.Background())
	assert.Equal(t, 2, l.calls)
}
