// Package ledger provides type-safe Go definitions and Redis schema patterns
// for the brewboard ledger.
//
// # Overview
//
// The ledger is the shared state system underneath brewboard: the order
// engine, the poll tally, the reports and the CLI all interact through
// well-defined documents stored in Redis. Three document kinds exist:
//
// DailyAggregate: one per calendar date, holding per-kind beverage counters
// and an embedded list of lightweight order stamps used for the
// one-order-per-slot duplicate check. Created lazily on the first order of a
// day; never deleted (the admin reset overwrites it in place).
//
// OrderRecord: one per successful order, write-once, in its own keyspace with
// a per-user ZSET index so history and stats queries never scan aggregate
// stamp lists.
//
// Notice: one per announcement or poll. Poll notices carry per-option
// tallies, a per-voter choice map and a derived legacy voter list that stays
// a projection of the choice map's keys.
//
// # Concurrency
//
// DailyAggregate and Notice are contended documents: many request handlers in
// many processes race to update them. The only safe mutation path is
// Client.RunTransaction, which wraps Redis WATCH/MULTI/EXEC optimistic
// concurrency: reads observe committed state, writes are queued and committed
// atomically, and a concurrent commit to a watched key aborts the attempt for
// a bounded backoff-retry. No in-process locking is used anywhere, so
// correctness holds across process instances.
//
// Business-rule failures inside a transaction body abort the attempt with no
// partial write and propagate verbatim. Exhausting the conflict-retry budget
// surfaces ErrTransientConflict.
//
// # Usage Example
//
//	client, err := ledger.NewClient(&redis.Options{Addr: "localhost:6379"}, "office")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	date := ledger.FormatDate(time.Now())
//	err = client.RunTransaction(ctx, ledger.DefaultTxAttempts,
//		[]string{ledger.DailyKey(client.InstanceName(), date)},
//		func(tx *ledger.Tx) error {
//			aggregate, err := tx.GetDailyAggregate(date)
//			if ledger.IsNotFound(err) {
//				aggregate = ledger.NewDailyAggregate(date)
//			} else if err != nil {
//				return err
//			}
//			aggregate.Counts.Add(ledger.KindTea, 1)
//			aggregate.Stamps = append(aggregate.Stamps, stamp)
//			return tx.SetDailyAggregate(aggregate)
//		})
//
// # Redis Schema
//
// All Redis keys follow the pattern: brewboard:{instance_name}:{entity}:{id}
//
// Daily aggregates: brewboard:{instance_name}:daily:{YYYY-MM-DD}
// Orders: brewboard:{instance_name}:order:{order_id}
// User order index: brewboard:{instance_name}:user_orders:{user_id} (ZSET, score = unix nanos)
// Notices: brewboard:{instance_name}:notice:{notice_id}
// Notice index: brewboard:{instance_name}:notices (ZSET, score = unix nanos)
//
// # Design Principles
//
// - Type Safety: all documents have strong typing with validation methods
// - Atomicity: contended documents change only inside one MULTI/EXEC
// - Isolation: instance namespacing prevents cross-instance interference
// - Compatibility: legacy vote-value shapes normalize through VoteChoice
package ledger
