package ledger

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Tx is the handle given to a RunTransaction work function.
//
// Reads go through the watched connection, so every read in one attempt
// observes state no newer than the commit point: if any watched document
// changes before EXEC, the whole attempt aborts and is retried. Writes are
// deferred: they are serialized when declared and queued into a single
// MULTI/EXEC that commits atomically together.
//
// A Tx is only valid for the duration of its work function.
type Tx struct {
	ctx          context.Context
	rtx          *redis.Tx
	instanceName string
	writes       []func(pipe redis.Pipeliner)
}

// GetDailyAggregate reads the aggregate for a date key inside the transaction.
// Returns (nil, redis.Nil) if it doesn't exist yet.
func (t *Tx) GetDailyAggregate(date string) (*DailyAggregate, error) {
	key := DailyKey(t.instanceName, date)

	hashData, err := t.rtx.HGetAll(t.ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read daily aggregate in transaction: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	return HashToAggregate(hashData)
}

// GetNotice reads a notice inside the transaction.
// Returns (nil, redis.Nil) if the notice doesn't exist.
func (t *Tx) GetNotice(noticeID string) (*Notice, error) {
	key := NoticeKey(t.instanceName, noticeID)

	hashData, err := t.rtx.HGetAll(t.ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read notice in transaction: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	return HashToNotice(hashData)
}

// SetDailyAggregate declares a deferred write of the aggregate document.
// The document is validated and serialized immediately; the write commits
// with the transaction.
func (t *Tx) SetDailyAggregate(a *DailyAggregate) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid daily aggregate: %w", err)
	}

	hash, err := AggregateToHash(a)
	if err != nil {
		return fmt.Errorf("failed to serialize daily aggregate: %w", err)
	}

	key := DailyKey(t.instanceName, a.Date)
	t.writes = append(t.writes, func(pipe redis.Pipeliner) {
		pipe.HSet(t.ctx, key, hash)
	})

	return nil
}

// SetNotice declares a deferred write of a notice document.
func (t *Tx) SetNotice(n *Notice) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid notice: %w", err)
	}

	hash, err := NoticeToHash(n)
	if err != nil {
		return fmt.Errorf("failed to serialize notice: %w", err)
	}

	key := NoticeKey(t.instanceName, n.ID)
	t.writes = append(t.writes, func(pipe redis.Pipeliner) {
		pipe.HSet(t.ctx, key, hash)
	})

	return nil
}

// CreateOrder declares a deferred write of a new order record and its
// user-index entry. Order records are write-once: this is the only path that
// creates them, and nothing mutates them afterwards.
func (t *Tx) CreateOrder(o *OrderRecord) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("invalid order: %w", err)
	}

	hash := OrderToHash(o)
	orderKey := OrderKey(t.instanceName, o.ID)
	indexKey := UserOrdersKey(t.instanceName, o.UserID)
	entry := redis.Z{
		Score:  float64(o.Timestamp.UnixNano()),
		Member: o.ID,
	}

	t.writes = append(t.writes, func(pipe redis.Pipeliner) {
		pipe.HSet(t.ctx, orderKey, hash)
		pipe.ZAdd(t.ctx, indexKey, entry)
	})

	return nil
}
