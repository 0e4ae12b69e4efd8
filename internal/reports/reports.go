// Package reports builds read-only rollups over the daily aggregates for the
// admin dashboard. It has no write path: reads are batched but not
// transactional, which is safe because aggregates only ever change through
// atomically committed transactions.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/brewop/brewboard/pkg/ledger"
)

// DailyTotals is one day's beverage totals. Days with no aggregate report zeros.
type DailyTotals struct {
	Date   string `json:"date"`
	Tea    int    `json:"tea"`
	Coffee int    `json:"coffee"`
	Juice  int    `json:"juice"`
	Total  int    `json:"total"`
}

// Reporter reads aggregate rollups.
type Reporter struct {
	store *ledger.Client
	loc   *time.Location
	now   func() time.Time
}

// NewReporter creates a reporter on top of a ledger client.
func NewReporter(store *ledger.Client, loc *time.Location) *Reporter {
	return &Reporter{
		store: store,
		loc:   loc,
		now:   time.Now,
	}
}

// LastNDays returns totals for the last n calendar days including today,
// oldest first, in one batched read. Missing dates are zero-filled.
func (r *Reporter) LastNDays(ctx context.Context, n int) ([]DailyTotals, error) {
	if n < 1 {
		return nil, fmt.Errorf("day count must be >= 1, got %d", n)
	}

	today := r.now().In(r.loc)
	dates := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		dates = append(dates, ledger.FormatDate(today.AddDate(0, 0, -i)))
	}

	aggregates, err := r.store.DailyAggregates(ctx, dates)
	if err != nil {
		return nil, err
	}

	totals := make([]DailyTotals, 0, n)
	for _, date := range dates {
		day := DailyTotals{Date: date}
		if a, ok := aggregates[date]; ok {
			day.Tea = a.Counts.Tea
			day.Coffee = a.Counts.Coffee
			day.Juice = a.Counts.Juice
			day.Total = a.Counts.Total()
		}
		totals = append(totals, day)
	}

	return totals, nil
}

// Today returns today's counters, zeros when no order has been placed yet.
func (r *Reporter) Today(ctx context.Context) (ledger.Counts, error) {
	date := ledger.FormatDate(r.now().In(r.loc))

	aggregate, err := r.store.GetDailyAggregate(ctx, date)
	if ledger.IsNotFound(err) {
		return ledger.Counts{}, nil
	} else if err != nil {
		return ledger.Counts{}, err
	}

	return aggregate.Counts, nil
}
