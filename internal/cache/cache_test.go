package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/rewards/internal/monitoring"
	"github.com/taskforge/rewards/internal/types"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache(time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("key", []byte("value"))
	got, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	c.Delete("key")
	_, ok = c.Get("key")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	c.Set("key", []byte("value"))

	time.Sleep(20 * time.Millisecond)
	_, ok := c.Get("key")
	assert.False(t, ok)
}

type countingSource struct {
	calls  int
	roster []types.Participant
}

func (s *countingSource) Collaborators(_ context.Context, _ string) ([]types.Participant, error) {
	s.calls++
	return s.roster, nil
}

func TestCollaboratorCacheHitsAfterFirstFetch(t *testing.T) {
	source := &countingSource{roster: []types.Participant{{ID: 1, Handle: "alice"}}}
	c := NewCollaboratorCache(source, time.Minute, monitoring.NewLogger())

	for i := 0; i < 3; i++ {
		roster, err := c.Collaborators(context.Background(), "acme/widgets")
		require.NoError(t, err)
		assert.Equal(t, source.roster, roster)
	}
	assert.Equal(t, 1, source.calls)
}

func TestCollaboratorCacheKeyedByRepo(t *testing.T) {
	source := &countingSource{roster: []types.Participant{{ID: 1, Handle: "alice"}}}
	c := NewCollaboratorCache(source, time.Minute, monitoring.NewLogger())

	_, err := c.Collaborators(context.Background(), "acme/widgets")
	require.NoError(t, err)
	_, err = c.Collaborators(context.Background(), "acme/gadgets")
	require.NoError(t, err)

	assert.Equal(t, 2, source.calls)
}

func TestSettledMarkerDisabledWithoutRedis(t *testing.T) {
	m := NewSettledMarker("")
	assert.False(t, m.IsSettled(context.Background(), "acme/widgets", 7))
	m.MarkSettled(context.Background(), "acme/widgets", 7, []string{"p1"})
	assert.NoError(t, m.Close())
}
