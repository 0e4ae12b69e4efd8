package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewop/brewboard/internal/slot"
	"github.com/brewop/brewboard/pkg/ledger"
)

// setupEngine creates an order engine against a miniredis instance with a
// pinned clock. Tests move time by reassigning e.now.
func setupEngine(t *testing.T) (*Engine, *ledger.Client) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	store, err := ledger.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	e := NewEngine(store, slot.DefaultBoundaries(), time.UTC, 0)
	e.now = func() time.Time { return time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC) }
	return e, store
}

func alice() User {
	return User{ID: "alice", Email: "alice@example.com", DisplayName: "Alice"}
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("first order of the day creates the aggregate", func(t *testing.T) {
		e, store := setupEngine(t)

		result, err := e.PlaceOrder(ctx, alice(), ledger.KindTea)
		require.NoError(t, err)
		assert.Equal(t, slot.Morning, result.Slot)
		assert.Equal(t, ledger.Counts{Tea: 1}, result.Counts)
		assert.Equal(t, "Alice", result.Order.UserName)
		assert.Equal(t, "2026-08-29", result.Order.Date)

		aggregate, err := store.GetDailyAggregate(ctx, "2026-08-29")
		require.NoError(t, err)
		assert.NoError(t, aggregate.Validate())
		require.Len(t, aggregate.Stamps, 1)
		assert.Equal(t, "alice", aggregate.Stamps[0].UserID)

		got, err := store.GetOrder(ctx, result.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.KindTea, got.Kind)
	})

	t.Run("second order in the same slot is rejected", func(t *testing.T) {
		e, store := setupEngine(t)

		_, err := e.PlaceOrder(ctx, alice(), ledger.KindTea)
		require.NoError(t, err)

		// Switching kinds does not help; the slot is spent.
		e.now = func() time.Time { return time.Date(2026, 8, 29, 9, 45, 0, 0, time.UTC) }
		_, err = e.PlaceOrder(ctx, alice(), ledger.KindCoffee)
		assert.ErrorIs(t, err, ErrAlreadyOrderedThisSlot)

		aggregate, err := store.GetDailyAggregate(ctx, "2026-08-29")
		require.NoError(t, err)
		assert.Equal(t, ledger.Counts{Tea: 1}, aggregate.Counts)
		assert.Len(t, aggregate.Stamps, 1)
	})

	t.Run("evening order is allowed after a morning order", func(t *testing.T) {
		e, store := setupEngine(t)

		_, err := e.PlaceOrder(ctx, alice(), ledger.KindTea)
		require.NoError(t, err)

		e.now = func() time.Time { return time.Date(2026, 8, 29, 16, 0, 0, 0, time.UTC) }
		result, err := e.PlaceOrder(ctx, alice(), ledger.KindCoffee)
		require.NoError(t, err)
		assert.Equal(t, slot.Evening, result.Slot)

		aggregate, err := store.GetDailyAggregate(ctx, "2026-08-29")
		require.NoError(t, err)
		assert.Equal(t, ledger.Counts{Tea: 1, Coffee: 1}, aggregate.Counts)
		assert.NoError(t, aggregate.Validate())
	})

	t.Run("outside any window fails without touching the store", func(t *testing.T) {
		e, store := setupEngine(t)
		e.now = func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) }

		_, err := e.PlaceOrder(ctx, alice(), ledger.KindTea)
		assert.ErrorIs(t, err, ErrOutsideOrderingWindow)

		_, err = store.GetDailyAggregate(ctx, "2026-08-29")
		assert.True(t, ledger.IsNotFound(err))
	})

	t.Run("a new day starts a fresh aggregate", func(t *testing.T) {
		e, store := setupEngine(t)

		_, err := e.PlaceOrder(ctx, alice(), ledger.KindTea)
		require.NoError(t, err)

		e.now = func() time.Time { return time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC) }
		_, err = e.PlaceOrder(ctx, alice(), ledger.KindJuice)
		require.NoError(t, err)

		aggregate, err := store.GetDailyAggregate(ctx, "2026-08-30")
		require.NoError(t, err)
		assert.Equal(t, ledger.Counts{Juice: 1}, aggregate.Counts)
	})

	t.Run("rejects invalid input before the window check", func(t *testing.T) {
		e, _ := setupEngine(t)

		_, err := e.PlaceOrder(ctx, alice(), "soda")
		assert.Error(t, err)

		_, err = e.PlaceOrder(ctx, User{Email: "x@example.com"}, ledger.KindTea)
		assert.Error(t, err)
	})

	t.Run("display name falls back to email", func(t *testing.T) {
		e, _ := setupEngine(t)

		result, err := e.PlaceOrder(ctx, User{ID: "bob", Email: "bob@example.com"}, ledger.KindTea)
		require.NoError(t, err)
		assert.Equal(t, "bob@example.com", result.Order.UserName)
	})
}

// Fifty concurrent submissions by one user must resolve to exactly one
// committed order, with every loser told why.
func TestPlaceOrderConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	e, store := setupEngine(t)

	const racers = 50
	results := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.PlaceOrder(ctx, alice(), ledger.KindTea)
			results[i] = err
		}(i)
	}
	wg.Wait()

	wins, duplicates := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, ErrAlreadyOrderedThisSlot):
			duplicates++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, duplicates)

	aggregate, err := store.GetDailyAggregate(ctx, "2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, ledger.Counts{Tea: 1}, aggregate.Counts)
	assert.Len(t, aggregate.Stamps, 1)
	assert.NoError(t, aggregate.Validate())

	orders, err := store.OrdersByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

// Distinct users racing must each land exactly one order, with the shared
// counters agreeing with the stamp list afterwards.
func TestPlaceOrderConcurrentDistinctUsers(t *testing.T) {
	ctx := context.Background()
	e, store := setupEngine(t)

	users := []struct {
		user User
		kind ledger.BeverageKind
	}{
		{User{ID: "u1", Email: "u1@example.com"}, ledger.KindTea},
		{User{ID: "u2", Email: "u2@example.com"}, ledger.KindTea},
		{User{ID: "u3", Email: "u3@example.com"}, ledger.KindCoffee},
		{User{ID: "u4", Email: "u4@example.com"}, ledger.KindJuice},
		{User{ID: "u5", Email: "u5@example.com"}, ledger.KindCoffee},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(users))
	for i, u := range users {
		wg.Add(1)
		go func(i int, user User, kind ledger.BeverageKind) {
			defer wg.Done()
			_, errs[i] = e.PlaceOrder(ctx, user, kind)
		}(i, u.user, u.kind)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "user %d", i)
	}

	aggregate, err := store.GetDailyAggregate(ctx, "2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, ledger.Counts{Tea: 2, Coffee: 2, Juice: 1}, aggregate.Counts)
	assert.Len(t, aggregate.Stamps, len(users))
	assert.NoError(t, aggregate.Validate())
}

func TestOrdersToday(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEngine(t)

	// An order from yesterday must not leak into today's view.
	e.now = func() time.Time { return time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC) }
	_, err := e.PlaceOrder(ctx, alice(), ledger.KindCoffee)
	require.NoError(t, err)

	e.now = func() time.Time { return time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC) }
	today, err := e.PlaceOrder(ctx, alice(), ledger.KindTea)
	require.NoError(t, err)

	got, err := e.OrdersToday(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, today.Order.ID, got[0].ID)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEngine(t)

	// Five days of alternating orders, one per morning.
	kinds := []ledger.BeverageKind{
		ledger.KindTea, ledger.KindCoffee, ledger.KindTea, ledger.KindJuice, ledger.KindTea,
	}
	for i, kind := range kinds {
		day := 25 + i
		e.now = func() time.Time { return time.Date(2026, 8, day, 9, 0, 0, 0, time.UTC) }
		_, err := e.PlaceOrder(ctx, alice(), kind)
		require.NoError(t, err)
	}

	t.Run("paginates newest first", func(t *testing.T) {
		page, err := e.History(ctx, "alice", HistoryOptions{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		assert.True(t, page.HasMore)
		require.Len(t, page.Orders, 2)
		assert.Equal(t, "2026-08-29", page.Orders[0].Date)
		assert.Equal(t, "2026-08-28", page.Orders[1].Date)

		page, err = e.History(ctx, "alice", HistoryOptions{Limit: 2, Offset: 4})
		require.NoError(t, err)
		assert.False(t, page.HasMore)
		require.Len(t, page.Orders, 1)
		assert.Equal(t, "2026-08-25", page.Orders[0].Date)
	})

	t.Run("filters by kind before paginating", func(t *testing.T) {
		page, err := e.History(ctx, "alice", HistoryOptions{Kind: ledger.KindTea})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		require.Len(t, page.Orders, 3)
		for _, o := range page.Orders {
			assert.Equal(t, ledger.KindTea, o.Kind)
		}
	})

	t.Run("offset past the end yields empty page", func(t *testing.T) {
		page, err := e.History(ctx, "alice", HistoryOptions{Offset: 100})
		require.NoError(t, err)
		assert.Empty(t, page.Orders)
		assert.Equal(t, 5, page.Total)
		assert.False(t, page.HasMore)
	})

	t.Run("rejects unknown kind filter", func(t *testing.T) {
		_, err := e.History(ctx, "alice", HistoryOptions{Kind: "soda"})
		assert.Error(t, err)
	})

	t.Run("empty history", func(t *testing.T) {
		page, err := e.History(ctx, "nobody", HistoryOptions{})
		require.NoError(t, err)
		assert.Zero(t, page.Total)
		assert.Empty(t, page.Orders)
	})
}

func TestUserStats(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEngine(t)

	t.Run("no orders means no favorite", func(t *testing.T) {
		stats, err := e.UserStats(ctx, "alice")
		require.NoError(t, err)
		assert.Zero(t, stats.TotalOrders)
		assert.Empty(t, stats.Favorite)
	})

	days := []struct {
		day  int
		kind ledger.BeverageKind
	}{
		{24, ledger.KindCoffee},
		{25, ledger.KindCoffee},
		{26, ledger.KindTea},
		{27, ledger.KindJuice},
	}
	for _, d := range days {
		day := d.day
		e.now = func() time.Time { return time.Date(2026, 8, day, 9, 0, 0, 0, time.UTC) }
		_, err := e.PlaceOrder(ctx, alice(), d.kind)
		require.NoError(t, err)
	}

	t.Run("favorite is the most ordered kind", func(t *testing.T) {
		stats, err := e.UserStats(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 4, stats.TotalOrders)
		assert.Equal(t, ledger.Counts{Tea: 1, Coffee: 2, Juice: 1}, stats.Counts)
		assert.Equal(t, ledger.KindCoffee, stats.Favorite)
	})
}

func TestResetToday(t *testing.T) {
	ctx := context.Background()
	e, store := setupEngine(t)

	_, err := e.PlaceOrder(ctx, alice(), ledger.KindTea)
	require.NoError(t, err)

	require.NoError(t, e.ResetToday(ctx))

	aggregate, err := store.GetDailyAggregate(ctx, "2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, ledger.Counts{}, aggregate.Counts)
	assert.Empty(t, aggregate.Stamps)

	// The stamp is gone, so the same user may order again in the same slot.
	_, err = e.PlaceOrder(ctx, alice(), ledger.KindCoffee)
	require.NoError(t, err)

	// Order records survive the reset.
	orders, err := store.OrdersByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestWindow(t *testing.T) {
	e, _ := setupEngine(t)

	r := e.Window()
	assert.True(t, r.Active)
	assert.Equal(t, slot.Morning, r.Name)

	e.now = func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) }
	r = e.Window()
	assert.False(t, r.Active)
	assert.Equal(t, slot.Evening, r.NextName)
}
