package ledger

import (
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateSerialization(t *testing.T) {
	t.Run("counters land in their own hash fields", func(t *testing.T) {
		ts := time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC)
		a := NewDailyAggregate("2026-08-29")
		a.Counts = Counts{Tea: 2, Juice: 1}
		a.Stamps = []OrderStamp{
			{UserID: "u1", Kind: KindTea, Timestamp: ts},
			{UserID: "u2", Kind: KindTea, Timestamp: ts},
			{UserID: "u3", Kind: KindJuice, Timestamp: ts},
		}
		a.LastUpdated = ts

		hash, err := AggregateToHash(a)
		require.NoError(t, err)
		assert.Equal(t, 2, hash["tea"])
		assert.Equal(t, 0, hash["coffee"])
		assert.Equal(t, 1, hash["juice"])
		assert.Contains(t, hash["orders"], `"user_id":"u1"`)
	})

	t.Run("legacy hash with missing counter fields reads as zero", func(t *testing.T) {
		a, err := HashToAggregate(map[string]string{
			"date": "2026-08-29",
			"tea":  "3",
		})
		require.NoError(t, err)
		assert.Equal(t, Counts{Tea: 3}, a.Counts)
		assert.NotNil(t, a.Stamps)
		assert.Empty(t, a.Stamps)
	})

	t.Run("rejects non-numeric counters", func(t *testing.T) {
		_, err := HashToAggregate(map[string]string{"date": "2026-08-29", "coffee": "lots"})
		assert.Error(t, err)
	})

	t.Run("rejects corrupt stamp JSON", func(t *testing.T) {
		_, err := HashToAggregate(map[string]string{"date": "2026-08-29", "orders": "{"})
		assert.Error(t, err)
	})
}

func TestNoticeSerialization(t *testing.T) {
	base := &Notice{
		ID:         uuid.New().String(),
		Title:      "Friday poll",
		Message:    "Vote now",
		Author:     "admin@example.com",
		AuthorName: "Admin",
		Type:       "poll",
		IsPinned:   true,
		Timestamp:  time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2026, 8, 29, 8, 5, 0, 0, time.UTC),
	}

	t.Run("plain announcement omits poll fields", func(t *testing.T) {
		n := *base
		hash, err := NoticeToHash(&n)
		require.NoError(t, err)
		assert.NotContains(t, hash, "votes")
		assert.NotContains(t, hash, "poll_options")

		got, err := HashToNotice(toStringHash(t, hash))
		require.NoError(t, err)
		assert.False(t, got.IsPoll)
		assert.True(t, got.IsPinned)
		assert.Nil(t, got.Votes)
	})

	t.Run("poll round-trips mixed legacy vote shapes", func(t *testing.T) {
		n := *base
		n.IsPoll = true
		n.AllowMultiple = true
		n.Options = []PollOption{{Text: "A", Votes: 2}, {Text: "B", Votes: 1}, {Text: "C"}}
		n.Votes = map[string]VoteChoice{
			"u1": SingleChoice(0), // legacy bare number
			"u2": MultiChoice(0, 1),
			"u3": MultiChoice(),
		}
		n.SyncVoters()

		hash, err := NoticeToHash(&n)
		require.NoError(t, err)

		got, err := HashToNotice(toStringHash(t, hash))
		require.NoError(t, err)
		assert.True(t, got.AllowMultiple)
		require.Len(t, got.Options, 3)
		assert.Equal(t, 2, got.Options[0].Votes)

		single, ok := got.Votes["u1"].Single()
		require.True(t, ok)
		assert.Equal(t, 0, single)
		assert.True(t, got.Votes["u2"].IsMulti())
		assert.Equal(t, []int{0, 1}, got.Votes["u2"].Indices())
		assert.True(t, got.Votes["u3"].Empty())
		assert.Equal(t, []string{"u1", "u2", "u3"}, got.Voters)
	})

	t.Run("nil poll maps serialize as empty", func(t *testing.T) {
		n := *base
		n.IsPoll = true
		n.Options = []PollOption{{Text: "A"}, {Text: "B"}}

		hash, err := NoticeToHash(&n)
		require.NoError(t, err)
		assert.Equal(t, "{}", hash["votes"])
		assert.Equal(t, "[]", hash["voters"])
	})
}

func TestOrderSerialization(t *testing.T) {
	ts := time.Date(2026, 8, 29, 16, 45, 0, 123456789, time.UTC)
	o := &OrderRecord{
		ID:        uuid.New().String(),
		UserID:    "u1",
		Email:     "u1@example.com",
		UserName:  "U One",
		Kind:      KindJuice,
		Timestamp: ts,
		Date:      "2026-08-29",
	}

	got, err := HashToOrder(toStringHash(t, OrderToHash(o)))
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, KindJuice, got.Kind)
	// Sub-second precision survives the hash layout.
	assert.True(t, got.Timestamp.Equal(ts))

	_, err = HashToOrder(map[string]string{"id": o.ID, "timestamp": "yesterday"})
	assert.Error(t, err)
}

// toStringHash mimics what HGetAll returns for a hash written with HSet.
func toStringHash(t *testing.T, hash map[string]interface{}) map[string]string {
	t.Helper()
	out := make(map[string]string, len(hash))
	for k, v := range hash {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int:
			out[k] = strconv.Itoa(val)
		default:
			t.Fatalf("unexpected hash value type %T for field %s", v, k)
		}
	}
	return out
}
