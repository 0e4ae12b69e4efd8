// Package ledger provides type-safe Go definitions and Redis schema patterns
// for the brewboard ledger. The ledger is the shared state system where all
// brewboard components (order ledger, poll tally, reports, CLI) interact via
// well-defined documents stored in Redis.
//
// All Redis keys are namespaced by instance name to enable multiple brewboard
// instances to safely coexist on a single Redis server.
package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DateFormat is the calendar-date layout used as the DailyAggregate partition key.
const DateFormat = "2006-01-02"

// FormatDate renders an instant as a DailyAggregate date key in the instant's location.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// BeverageKind identifies one of the orderable beverages.
type BeverageKind string

const (
	KindTea    BeverageKind = "tea"
	KindCoffee BeverageKind = "coffee"
	KindJuice  BeverageKind = "juice"
)

// Kinds returns all beverage kinds in stable display order.
func Kinds() []BeverageKind {
	return []BeverageKind{KindTea, KindCoffee, KindJuice}
}

// Validate checks if the BeverageKind is a valid enum value.
func (k BeverageKind) Validate() error {
	switch k {
	case KindTea, KindCoffee, KindJuice:
		return nil
	default:
		return fmt.Errorf("unknown beverage kind: %q", k)
	}
}

// Counts holds the per-kind running totals of a DailyAggregate.
type Counts struct {
	Tea    int `json:"tea"`
	Coffee int `json:"coffee"`
	Juice  int `json:"juice"`
}

// Of returns the count for one beverage kind.
func (c Counts) Of(kind BeverageKind) int {
	switch kind {
	case KindTea:
		return c.Tea
	case KindCoffee:
		return c.Coffee
	case KindJuice:
		return c.Juice
	}
	return 0
}

// Add increments the count for one beverage kind by n.
func (c *Counts) Add(kind BeverageKind, n int) {
	switch kind {
	case KindTea:
		c.Tea += n
	case KindCoffee:
		c.Coffee += n
	case KindJuice:
		c.Juice += n
	}
}

// Total returns the sum across all kinds.
func (c Counts) Total() int {
	return c.Tea + c.Coffee + c.Juice
}

// OrderStamp is the lightweight order marker embedded in a DailyAggregate.
// Stamps exist for the duplicate check and the admin dashboard; the full
// order lives in its own OrderRecord document.
type OrderStamp struct {
	UserID    string       `json:"user_id"`
	Kind      BeverageKind `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
}

// DailyAggregate is the per-date document holding running totals and the
// embedded stamp list. One exists per calendar date, created lazily on the
// first order of the day. It is only ever mutated through a Client transaction,
// except for the explicit admin overwrite.
type DailyAggregate struct {
	Date        string       `json:"date"` // YYYY-MM-DD partition key
	Counts      Counts       `json:"counts"`
	Stamps      []OrderStamp `json:"stamps"`
	LastUpdated time.Time    `json:"last_updated"`
}

// NewDailyAggregate returns an empty aggregate for the given date key.
func NewDailyAggregate(date string) *DailyAggregate {
	return &DailyAggregate{Date: date, Stamps: []OrderStamp{}}
}

// FindStamp returns the first embedded stamp for userID whose timestamp
// satisfies the predicate, or nil.
func (a *DailyAggregate) FindStamp(userID string, pred func(time.Time) bool) *OrderStamp {
	for i := range a.Stamps {
		if a.Stamps[i].UserID == userID && pred(a.Stamps[i].Timestamp) {
			return &a.Stamps[i]
		}
	}
	return nil
}

// Validate checks if the DailyAggregate has valid field values, including the
// counter/stamp agreement invariant.
func (a *DailyAggregate) Validate() error {
	if _, err := time.Parse(DateFormat, a.Date); err != nil {
		return fmt.Errorf("invalid date key %q: %w", a.Date, err)
	}

	if a.Counts.Tea < 0 || a.Counts.Coffee < 0 || a.Counts.Juice < 0 {
		return fmt.Errorf("counts must be non-negative, got %+v", a.Counts)
	}

	var tally Counts
	for i, s := range a.Stamps {
		if s.UserID == "" {
			return fmt.Errorf("stamp %d: user ID cannot be empty", i)
		}
		if err := s.Kind.Validate(); err != nil {
			return fmt.Errorf("stamp %d: %w", i, err)
		}
		tally.Add(s.Kind, 1)
	}

	if tally != a.Counts {
		return fmt.Errorf("counts %+v do not match embedded stamps %+v", a.Counts, tally)
	}

	return nil
}

// OrderRecord is the normalized per-order document. Write-once: created in the
// same transaction as its DailyAggregate stamp and never mutated afterwards.
type OrderRecord struct {
	ID        string       `json:"id"` // UUID
	UserID    string       `json:"user_id"`
	Email     string       `json:"email"`
	UserName  string       `json:"user_name"`
	Kind      BeverageKind `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
	Date      string       `json:"date"` // YYYY-MM-DD, denormalized for date-scoped queries
}

// Validate checks if the OrderRecord has valid field values.
func (o *OrderRecord) Validate() error {
	if !isValidUUID(o.ID) {
		return fmt.Errorf("invalid order ID: not a valid UUID")
	}

	if o.UserID == "" {
		return fmt.Errorf("order user ID cannot be empty")
	}

	if err := o.Kind.Validate(); err != nil {
		return fmt.Errorf("invalid order kind: %w", err)
	}

	if _, err := time.Parse(DateFormat, o.Date); err != nil {
		return fmt.Errorf("invalid order date %q: %w", o.Date, err)
	}

	return nil
}

// PollOption is one votable option on a poll notice, with its running tally.
type PollOption struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// VoteChoice is a voter's recorded choice on a poll: either a single option
// index (single-select polls) or a set of indices (multi-select polls).
//
// Historical data stored single choices as bare numbers and multi choices as
// arrays; both shapes normalize through this one type at the serialization
// boundary, so read and write paths never inspect raw JSON shapes themselves.
type VoteChoice struct {
	multi   bool
	indices []int
}

// SingleChoice returns a single-select choice for one option index.
func SingleChoice(index int) VoteChoice {
	return VoteChoice{indices: []int{index}}
}

// MultiChoice returns a multi-select choice for a set of option indices.
func MultiChoice(indices ...int) VoteChoice {
	set := make([]int, len(indices))
	copy(set, indices)
	return VoteChoice{multi: true, indices: set}
}

// IsMulti reports whether the choice is a set rather than a single index.
func (v VoteChoice) IsMulti() bool {
	return v.multi
}

// Single returns the single-select index. ok is false for multi-select or
// empty choices.
func (v VoteChoice) Single() (index int, ok bool) {
	if v.multi || len(v.indices) != 1 {
		return 0, false
	}
	return v.indices[0], true
}

// Indices returns a copy of all chosen option indices, regardless of mode.
func (v VoteChoice) Indices() []int {
	out := make([]int, len(v.indices))
	copy(out, v.indices)
	return out
}

// Contains reports whether the choice includes the given option index.
func (v VoteChoice) Contains(index int) bool {
	for _, i := range v.indices {
		if i == index {
			return true
		}
	}
	return false
}

// Empty reports whether the choice holds no indices. An empty choice is
// treated identically to an absent one everywhere this data is read.
func (v VoteChoice) Empty() bool {
	return len(v.indices) == 0
}

// AsMulti normalizes the choice to multi-select form. Legacy single-select
// values migrate to a one-element set; multi values are returned as-is.
func (v VoteChoice) AsMulti() VoteChoice {
	return MultiChoice(v.indices...)
}

// MarshalJSON writes single choices as bare numbers and multi choices as
// arrays, preserving the legacy storage shape.
func (v VoteChoice) MarshalJSON() ([]byte, error) {
	if !v.multi {
		if idx, ok := v.Single(); ok {
			return json.Marshal(idx)
		}
	}
	return json.Marshal(v.indices)
}

// UnmarshalJSON accepts both legacy shapes: a bare number (single) or an
// array of numbers (multi).
func (v *VoteChoice) UnmarshalJSON(data []byte) error {
	var single int
	if err := json.Unmarshal(data, &single); err == nil {
		*v = SingleChoice(single)
		return nil
	}

	var set []int
	if err := json.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("vote choice must be a number or an array of numbers: %w", err)
	}
	*v = MultiChoice(set...)
	return nil
}

// Notice is an announcement document, optionally carrying a poll. Poll fields
// (Options, Votes, Voters, AllowMultiple) are only meaningful when IsPoll is
// set. Vote-bearing fields are mutated exclusively through Client transactions.
type Notice struct {
	ID         string    `json:"id"` // UUID
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Author     string    `json:"author"`      // author's email
	AuthorName string    `json:"author_name"` // display name, falls back to email
	Type       string    `json:"type"`        // user-defined category, defaults to "general"
	IsPinned   bool      `json:"is_pinned"`
	Timestamp  time.Time `json:"timestamp"`
	UpdatedAt  time.Time `json:"updated_at"`

	IsPoll        bool                  `json:"is_poll"`
	AllowMultiple bool                  `json:"allow_multiple"`
	Options       []PollOption          `json:"poll_options,omitempty"`
	Votes         map[string]VoteChoice `json:"votes,omitempty"`
	// Voters is a derived projection: the key set of Votes, kept in sync on
	// every committed vote for backward read-compatibility.
	Voters []string `json:"voters,omitempty"`
}

// SyncVoters recomputes the legacy Voters projection from the Votes key set.
// The result is sorted for deterministic serialization.
func (n *Notice) SyncVoters() {
	voters := make([]string, 0, len(n.Votes))
	for userID := range n.Votes {
		voters = append(voters, userID)
	}
	sort.Strings(voters)
	n.Voters = voters
}

// Validate checks if the Notice has valid field values.
func (n *Notice) Validate() error {
	if !isValidUUID(n.ID) {
		return fmt.Errorf("invalid notice ID: not a valid UUID")
	}

	if n.Title == "" {
		return fmt.Errorf("notice title cannot be empty")
	}

	if n.IsPoll {
		if len(n.Options) < 2 {
			return fmt.Errorf("poll must have at least 2 options, got %d", len(n.Options))
		}
		for i, opt := range n.Options {
			if opt.Votes < 0 {
				return fmt.Errorf("option %d: votes must be non-negative, got %d", i, opt.Votes)
			}
		}
		for userID, choice := range n.Votes {
			for _, idx := range choice.Indices() {
				if idx < 0 || idx >= len(n.Options) {
					return fmt.Errorf("vote for %q references option %d out of range", userID, idx)
				}
			}
		}
	}

	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
