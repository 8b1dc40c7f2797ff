package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/rewards/internal/money"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreWallet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	addr, err := store.Wallet(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, addr)

	require.NoError(t, store.SetWallet(ctx, 1, "0xalice"))
	addr, err = store.Wallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "0xalice", addr)

	// Upsert replaces the address.
	require.NoError(t, store.SetWallet(ctx, 1, "0xalice2"))
	addr, err = store.Wallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "0xalice2", addr)
}

func TestStoreMultiplier(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m, err := store.Multiplier(ctx, 1, "acme/widgets")
	require.NoError(t, err)
	assert.Nil(t, m)

	require.NoError(t, store.SetMultiplier(ctx, 1, "acme/widgets", money.MustParse("1.5"), "priority work"))

	m, err = store.Multiplier(ctx, 1, "acme/widgets")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 0, m.Value.Cmp(money.MustParse("1.5")))
	assert.Equal(t, "priority work", m.Reason)

	// Multipliers are scoped per repository.
	m, err = store.Multiplier(ctx, 1, "acme/gadgets")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestStorePenaltyClearance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.Penalty(ctx, 1, "acme/widgets", "USD")
	require.NoError(t, err)
	assert.True(t, p.IsZero())

	require.NoError(t, store.SetPenalty(ctx, 1, "acme/widgets", "USD", money.FromInt(150)))

	// Partial clearance leaves the remainder outstanding.
	require.NoError(t, store.ClearPenalty(ctx, 1, "acme/widgets", "USD", money.FromInt(100)))
	p, err = store.Penalty(ctx, 1, "acme/widgets", "USD")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Cmp(money.FromInt(50)))

	// Full clearance deletes the row.
	require.NoError(t, store.ClearPenalty(ctx, 1, "acme/widgets", "USD", money.FromInt(50)))
	p, err = store.Penalty(ctx, 1, "acme/widgets", "USD")
	require.NoError(t, err)
	assert.True(t, p.IsZero())
}

func TestStorePenaltyScopedByCurrency(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetPenalty(ctx, 1, "acme/widgets", "USD", money.FromInt(40)))
	require.NoError(t, store.SetPenalty(ctx, 1, "acme/widgets", "EUR", money.FromInt(10)))

	usd, err := store.Penalty(ctx, 1, "acme/widgets", "USD")
	require.NoError(t, err)
	assert.Equal(t, 0, usd.Cmp(money.FromInt(40)))

	require.NoError(t, store.ClearPenalty(ctx, 1, "acme/widgets", "USD", money.FromInt(40)))

	eur, err := store.Penalty(ctx, 1, "acme/widgets", "EUR")
	require.NoError(t, err)
	assert.Equal(t, 0, eur.Cmp(money.FromInt(10)))
}
