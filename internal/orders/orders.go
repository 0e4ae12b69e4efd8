// Package orders implements the order ledger: at most one beverage order per
// user per daily slot, with the shared aggregate counters and the normalized
// per-order records kept consistent under concurrent submissions.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/brewop/brewboard/internal/slot"
	"github.com/brewop/brewboard/pkg/ledger"
)

// PlaceOrder's failure taxonomy is strictly three-way. The two sentinels below
// are permanent business-rule failures established inside a single attempt;
// ledger.ErrTransientConflict is the third kind and means the whole action may
// be retried by the caller.
var (
	// ErrOutsideOrderingWindow means no slot is currently open. No transaction
	// is attempted. Use Engine.Window to tell callers when the next one opens.
	ErrOutsideOrderingWindow = errors.New("orders are only accepted during an open slot")

	// ErrAlreadyOrderedThisSlot means the user already has an order in the
	// current slot today, established by this attempt's own read.
	ErrAlreadyOrderedThisSlot = errors.New("an order was already placed for this slot")
)

// User identifies the already-authenticated caller placing an order.
// Verification happens upstream; the engine trusts these fields.
type User struct {
	ID          string
	Email       string
	DisplayName string // optional, falls back to Email
}

// PlaceResult carries the outcome of a successful order.
type PlaceResult struct {
	Order  *ledger.OrderRecord
	Slot   slot.Name
	Counts ledger.Counts // aggregate counts as committed by this order
}

// Stats aggregates a user's full order history.
type Stats struct {
	TotalOrders int
	Counts      ledger.Counts
	// Favorite is the most-ordered kind, or empty when the user never ordered.
	// Ties resolve in Kinds() order.
	Favorite ledger.BeverageKind
}

// HistoryOptions control History pagination and filtering.
type HistoryOptions struct {
	Limit  int                 // page size, default 20
	Offset int
	Kind   ledger.BeverageKind // optional filter, empty for all kinds
}

// HistoryPage is one page of a user's order history, newest first.
type HistoryPage struct {
	Orders  []*ledger.OrderRecord
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

// Engine enforces the order ledger's invariants. It holds no locks and keeps
// no mutable state: correctness under concurrent PlaceOrder calls comes
// entirely from the ledger's optimistic transactions, so any number of Engine
// instances in any number of processes can run against one store.
type Engine struct {
	store    *ledger.Client
	bounds   slot.Boundaries
	loc      *time.Location
	attempts int
	now      func() time.Time
}

// NewEngine creates an order engine on top of a ledger client.
// attempts is the transaction retry budget; values < 1 use the ledger default.
func NewEngine(store *ledger.Client, bounds slot.Boundaries, loc *time.Location, attempts int) *Engine {
	return &Engine{
		store:    store,
		bounds:   bounds,
		loc:      loc,
		attempts: attempts,
		now:      time.Now,
	}
}

// Window classifies the current instant against the ordering windows, for
// callers that need to render "open until"/"opens at" state.
func (e *Engine) Window() slot.Result {
	return e.bounds.Classify(e.now().In(e.loc))
}

// PlaceOrder places one order for the current slot.
//
// Outside any window it fails with ErrOutsideOrderingWindow before touching
// the store. Otherwise one transaction reads today's aggregate, scans the
// embedded stamps for an order by the same user in the current slot
// (ErrAlreadyOrderedThisSlot), and on success atomically increments the
// kind's counter, appends a stamp and creates the normalized order record.
// Conflicting attempts are retried by the ledger; exhaustion surfaces
// ledger.ErrTransientConflict.
func (e *Engine) PlaceOrder(ctx context.Context, user User, kind ledger.BeverageKind) (*PlaceResult, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}

	now := e.now().In(e.loc)
	window := e.bounds.Classify(now)
	if !window.Active {
		return nil, ErrOutsideOrderingWindow
	}
	current := window.Name

	date := ledger.FormatDate(now)
	dailyKey := ledger.DailyKey(e.store.InstanceName(), date)

	var result *PlaceResult
	err := e.store.RunTransaction(ctx, e.attempts, []string{dailyKey}, func(tx *ledger.Tx) error {
		aggregate, err := tx.GetDailyAggregate(date)
		if ledger.IsNotFound(err) {
			aggregate = ledger.NewDailyAggregate(date)
		} else if err != nil {
			return err
		}

		inCurrentSlot := func(ts time.Time) bool {
			return e.bounds.BelongsTo(ts.In(e.loc), current)
		}
		if aggregate.FindStamp(user.ID, inCurrentSlot) != nil {
			return ErrAlreadyOrderedThisSlot
		}

		aggregate.Counts.Add(kind, 1)
		aggregate.Stamps = append(aggregate.Stamps, ledger.OrderStamp{
			UserID:    user.ID,
			Kind:      kind,
			Timestamp: now,
		})
		aggregate.LastUpdated = now
		if err := tx.SetDailyAggregate(aggregate); err != nil {
			return err
		}

		order := &ledger.OrderRecord{
			ID:        uuid.New().String(),
			UserID:    user.ID,
			Email:     user.Email,
			UserName:  user.DisplayName,
			Kind:      kind,
			Timestamp: now,
			Date:      date,
		}
		if order.UserName == "" {
			order.UserName = user.Email
		}
		if err := tx.CreateOrder(order); err != nil {
			return err
		}

		result = &PlaceResult{Order: order, Slot: current, Counts: aggregate.Counts}
		return nil
	})
	if err != nil {
		if errors.Is(err, ledger.ErrTransientConflict) {
			log.Printf("[Orders] PlaceOrder for user %s gave up after retries: %v", user.ID, err)
		}
		return nil, err
	}

	return result, nil
}

// OrdersToday returns the user's orders since local midnight, newest first.
// Read-only and untransacted, but reflects every committed PlaceOrder.
func (e *Engine) OrdersToday(ctx context.Context, userID string) ([]*ledger.OrderRecord, error) {
	now := e.now().In(e.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
	return e.store.OrdersByUserSince(ctx, userID, midnight)
}

// History returns one page of the user's full order history, newest first,
// optionally filtered to one beverage kind. Pagination applies after the
// filter.
func (e *Engine) History(ctx context.Context, userID string, opts HistoryOptions) (*HistoryPage, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Kind != "" {
		if err := opts.Kind.Validate(); err != nil {
			return nil, err
		}
	}

	all, err := e.store.OrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	filtered := all
	if opts.Kind != "" {
		filtered = make([]*ledger.OrderRecord, 0, len(all))
		for _, o := range all {
			if o.Kind == opts.Kind {
				filtered = append(filtered, o)
			}
		}
	}

	page := &HistoryPage{
		Orders: []*ledger.OrderRecord{},
		Total:  len(filtered),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	if opts.Offset < len(filtered) {
		end := opts.Offset + opts.Limit
		if end > len(filtered) {
			end = len(filtered)
		}
		page.Orders = filtered[opts.Offset:end]
	}
	page.HasMore = len(filtered) > opts.Offset+opts.Limit

	return page, nil
}

// UserStats aggregates total and per-kind order counts and the user's
// favorite beverage across their entire history.
func (e *Engine) UserStats(ctx context.Context, userID string) (*Stats, error) {
	all, err := e.store.OrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalOrders: len(all)}
	for _, o := range all {
		stats.Counts.Add(o.Kind, 1)
	}

	max := 0
	for _, kind := range ledger.Kinds() {
		if n := stats.Counts.Of(kind); n > max {
			max = n
			stats.Favorite = kind
		}
	}

	return stats, nil
}

// ResetToday unconditionally overwrites today's aggregate with zero counters
// and an empty stamp list. Destructive and deliberately non-transactional: a
// PlaceOrder racing the reset is resolved last-writer-wins. Order records and
// user indexes are retained.
func (e *Engine) ResetToday(ctx context.Context) error {
	now := e.now().In(e.loc)
	aggregate := ledger.NewDailyAggregate(ledger.FormatDate(now))
	aggregate.LastUpdated = now

	if err := e.store.OverwriteDailyAggregate(ctx, aggregate); err != nil {
		return err
	}

	log.Printf("[Orders] daily aggregate %s reset to zero", aggregate.Date)
	return nil
}
