package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// DefaultTxAttempts is the transaction retry budget used when the caller does
// not configure one. Conflicts past this budget surface ErrTransientConflict.
const DefaultTxAttempts = 5

// ErrTransientConflict is returned by RunTransaction when every attempt lost
// an optimistic-concurrency race. The whole user action may be retried; the
// ledger does not retry further on its own.
var ErrTransientConflict = errors.New("transaction aborted by concurrent writes after all retry attempts")

// Client provides instance-scoped Redis operations for the ledger.
// All keys are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
//
// DailyAggregate and Notice documents are mutated exclusively through
// RunTransaction; the only sanctioned direct writes are the admin operations
// (OverwriteDailyAggregate, PutNotice, DeleteNotice) documented below.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new ledger client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: brewboard instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// InstanceName returns the instance this client is namespaced to.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// RunTransaction executes work as one optimistic transaction over the given
// document keys.
//
// The work function receives a *Tx exposing snapshot reads of the watched
// documents and deferred writes. All declared writes commit atomically
// together, or not at all: if any watched key was modified by another
// committed transaction first, the attempt aborts and the whole work body is
// retried from scratch with exponential backoff, up to attempts tries.
//
// An error returned from work is a business-rule failure: the attempt aborts
// with no partial write and the error is returned verbatim, unretried.
// Exhausting the retry budget returns ErrTransientConflict. Any other error
// is an infrastructure failure and propagates unretried.
func (c *Client) RunTransaction(ctx context.Context, attempts int, keys []string, work func(tx *Tx) error) error {
	if attempts < 1 {
		attempts = DefaultTxAttempts
	}

	attempt := func() error {
		err := c.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &Tx{ctx: ctx, rtx: rtx, instanceName: c.instanceName}

			if err := work(tx); err != nil {
				return err
			}

			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, write := range tx.writes {
					write(pipe)
				}
				return nil
			})
			return err
		}, keys...)

		if err != nil && !errors.Is(err, redis.TxFailedErr) {
			// Business or infrastructure failure: stop retrying.
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(attempt, backoff.WithContext(
		backoff.WithMaxRetries(newTxBackOff(), uint64(attempts-1)), ctx))
	if errors.Is(err, redis.TxFailedErr) {
		return ErrTransientConflict
	}
	return err
}

// newTxBackOff returns the per-attempt backoff for conflicting transactions.
// Intervals stay small: conflicts resolve as soon as the winning commit lands.
func newTxBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = 0 // bounded by attempt count, not wall clock
	return bo
}

// GetDailyAggregate retrieves the aggregate for a date key.
// Returns (nil, redis.Nil) if no order has been placed that day.
func (c *Client) GetDailyAggregate(ctx context.Context, date string) (*DailyAggregate, error) {
	key := DailyKey(c.instanceName, date)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read daily aggregate from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	return HashToAggregate(hashData)
}

// DailyAggregates bulk-reads the aggregates for a set of date keys in one
// pipelined round-trip. Dates with no aggregate are absent from the result
// map; callers synthesize zero-filled records as needed. This read is not
// transactional: it can interleave with commits, but never observes a
// half-committed document.
func (c *Client) DailyAggregates(ctx context.Context, dates []string) (map[string]*DailyAggregate, error) {
	pipe := c.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(dates))
	for _, date := range dates {
		cmds[date] = pipe.HGetAll(ctx, DailyKey(c.instanceName, date))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to bulk-read daily aggregates: %w", err)
	}

	result := make(map[string]*DailyAggregate, len(dates))
	for date, cmd := range cmds {
		hashData := cmd.Val()
		if len(hashData) == 0 {
			continue
		}
		aggregate, err := HashToAggregate(hashData)
		if err != nil {
			return nil, fmt.Errorf("corrupt daily aggregate for %s: %w", date, err)
		}
		result[date] = aggregate
	}

	return result, nil
}

// OverwriteDailyAggregate unconditionally replaces the aggregate for the
// document's date. This is the destructive admin reset path: it bypasses the
// transaction mechanism, so a PlaceOrder racing it is resolved last-writer-wins.
func (c *Client) OverwriteDailyAggregate(ctx context.Context, a *DailyAggregate) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid daily aggregate: %w", err)
	}

	hash, err := AggregateToHash(a)
	if err != nil {
		return fmt.Errorf("failed to serialize daily aggregate: %w", err)
	}

	key := DailyKey(c.instanceName, a.Date)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to overwrite daily aggregate in Redis: %w", err)
	}

	return nil
}

// GetOrder retrieves an order record by ID.
// Returns (nil, redis.Nil) if the order doesn't exist.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*OrderRecord, error) {
	key := OrderKey(c.instanceName, orderID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read order from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	return HashToOrder(hashData)
}

// OrdersByUser retrieves all of a user's orders, newest first.
// Returns an empty slice when the user has never ordered.
func (c *Client) OrdersByUser(ctx context.Context, userID string) ([]*OrderRecord, error) {
	key := UserOrdersKey(c.instanceName, userID)

	ids, err := c.rdb.ZRevRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read user order index: %w", err)
	}

	return c.loadOrders(ctx, ids)
}

// OrdersByUserSince retrieves a user's orders with timestamps at or after
// since, newest first.
func (c *Client) OrdersByUserSince(ctx context.Context, userID string, since time.Time) ([]*OrderRecord, error) {
	key := UserOrdersKey(c.instanceName, userID)

	ids, err := c.rdb.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.UnixNano()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read user order index: %w", err)
	}

	return c.loadOrders(ctx, ids)
}

// loadOrders fetches order documents for an ID list in one pipelined
// round-trip, preserving the input order.
func (c *Client) loadOrders(ctx context.Context, ids []string) ([]*OrderRecord, error) {
	if len(ids) == 0 {
		return []*OrderRecord{}, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, OrderKey(c.instanceName, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to bulk-read orders: %w", err)
	}

	orders := make([]*OrderRecord, 0, len(ids))
	for i, cmd := range cmds {
		hashData := cmd.Val()
		if len(hashData) == 0 {
			return nil, fmt.Errorf("order %s is indexed but missing", ids[i])
		}
		order, err := HashToOrder(hashData)
		if err != nil {
			return nil, fmt.Errorf("corrupt order %s: %w", ids[i], err)
		}
		orders = append(orders, order)
	}

	return orders, nil
}

// GetNotice retrieves a notice by ID.
// Returns (nil, redis.Nil) if the notice doesn't exist.
func (c *Client) GetNotice(ctx context.Context, noticeID string) (*Notice, error) {
	key := NoticeKey(c.instanceName, noticeID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read notice from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	return HashToNotice(hashData)
}

// ListNotices retrieves a page of notices ordered newest first.
func (c *Client) ListNotices(ctx context.Context, offset, limit int64) ([]*Notice, error) {
	if limit <= 0 {
		return []*Notice{}, nil
	}

	indexKey := NoticesIndexKey(c.instanceName)
	ids, err := c.rdb.ZRevRange(ctx, indexKey, offset, offset+limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read notice index: %w", err)
	}
	if len(ids) == 0 {
		return []*Notice{}, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, NoticeKey(c.instanceName, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to bulk-read notices: %w", err)
	}

	notices := make([]*Notice, 0, len(ids))
	for i, cmd := range cmds {
		hashData := cmd.Val()
		if len(hashData) == 0 {
			// Deleted between index read and fetch; skip.
			continue
		}
		notice, err := HashToNotice(hashData)
		if err != nil {
			return nil, fmt.Errorf("corrupt notice %s: %w", ids[i], err)
		}
		notices = append(notices, notice)
	}

	return notices, nil
}

// PutNotice writes a notice document and its listing index entry.
// This is the admin create/edit path; vote-bearing fields must only change
// through RunTransaction.
func (c *Client) PutNotice(ctx context.Context, n *Notice) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid notice: %w", err)
	}

	hash, err := NoticeToHash(n)
	if err != nil {
		return fmt.Errorf("failed to serialize notice: %w", err)
	}

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, NoticeKey(c.instanceName, n.ID), hash)
	pipe.ZAdd(ctx, NoticesIndexKey(c.instanceName), redis.Z{
		Score:  float64(n.Timestamp.UnixNano()),
		Member: n.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write notice to Redis: %w", err)
	}

	return nil
}

// DeleteNotice removes a notice document and its index entry.
// Returns redis.Nil if the notice doesn't exist.
func (c *Client) DeleteNotice(ctx context.Context, noticeID string) error {
	pipe := c.rdb.Pipeline()
	delCmd := pipe.Del(ctx, NoticeKey(c.instanceName, noticeID))
	pipe.ZRem(ctx, NoticesIndexKey(c.instanceName), noticeID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete notice from Redis: %w", err)
	}

	if delCmd.Val() == 0 {
		return redis.Nil
	}
	return nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
// Use this to check if GetDailyAggregate, GetOrder, or GetNotice returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
