// Package polls implements the notice board and its poll tally: per-option
// vote counts and per-voter choices on a shared notice document, kept
// consistent under concurrent toggle-style voting.
package polls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brewop/brewboard/pkg/ledger"
)

// Permanent caller errors. None of these leave a partial write behind.
var (
	// ErrNotFound means the notice ID references nothing.
	ErrNotFound = errors.New("notice not found")

	// ErrNotAPoll means the notice exists but carries no poll.
	ErrNotAPoll = errors.New("notice is not a poll")

	// ErrInvalidOption means the option index is missing where required, or
	// outside the poll's option range.
	ErrInvalidOption = errors.New("invalid option index")
)

// VoteResult carries the committed poll state after a vote.
type VoteResult struct {
	NoticeID string
	Options  []ledger.PollOption
	// Choice is the caller's recorded choice after this vote; Empty means no
	// recorded vote remains.
	Choice ledger.VoteChoice
}

// Draft is the input for creating a notice. Providing two or more PollOptions
// makes the notice a poll; fewer are ignored and a plain announcement is
// created.
type Draft struct {
	Title         string
	Message       string
	Author        string // author's email
	AuthorName    string // optional, falls back to Author
	Type          string // optional, defaults to "general"
	PollOptions   []string
	AllowMultiple bool
}

// Patch is a partial admin edit of a notice. Nil fields are left unchanged.
// Vote-bearing fields are not editable: they change only through Vote.
type Patch struct {
	Title    *string
	Message  *string
	Type     *string
	IsPinned *bool
}

// Engine owns the notice lifecycle and the vote operation. Like the order
// engine it is stateless and lock-free; vote consistency comes from the
// ledger's optimistic transactions.
type Engine struct {
	store    *ledger.Client
	attempts int
	now      func() time.Time
}

// NewEngine creates a poll engine on top of a ledger client.
// attempts is the transaction retry budget; values < 1 use the ledger default.
func NewEngine(store *ledger.Client, attempts int) *Engine {
	return &Engine{
		store:    store,
		attempts: attempts,
		now:      time.Now,
	}
}

// Vote records, changes or removes one user's vote on a poll, inside one
// transaction against the notice document.
//
// Multi-select polls toggle the given index: voting an already-held option
// removes it, otherwise it is added. option must not be nil.
//
// Single-select polls move the vote: any previous choice is decremented
// first. Voting the currently-held option again deselects it (a deliberate
// toggle, not a no-op), and a nil option is an explicit removal.
//
// Tallies floor at zero, and the legacy voter list is recomputed from the
// votes map in the same commit.
func (e *Engine) Vote(ctx context.Context, noticeID, userID string, option *int) (*VoteResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}

	noticeKey := ledger.NoticeKey(e.store.InstanceName(), noticeID)

	var result *VoteResult
	err := e.store.RunTransaction(ctx, e.attempts, []string{noticeKey}, func(tx *ledger.Tx) error {
		notice, err := tx.GetNotice(noticeID)
		if ledger.IsNotFound(err) {
			return ErrNotFound
		} else if err != nil {
			return err
		}

		if !notice.IsPoll || len(notice.Options) == 0 {
			return ErrNotAPoll
		}
		if option != nil && (*option < 0 || *option >= len(notice.Options)) {
			return ErrInvalidOption
		}

		if notice.Votes == nil {
			notice.Votes = map[string]ledger.VoteChoice{}
		}
		previous := notice.Votes[userID]

		if notice.AllowMultiple {
			if option == nil {
				return ErrInvalidOption
			}
			e.voteMulti(notice, userID, previous, *option)
		} else {
			e.voteSingle(notice, userID, previous, option)
		}

		notice.SyncVoters()
		if err := tx.SetNotice(notice); err != nil {
			return err
		}

		result = &VoteResult{
			NoticeID: noticeID,
			Options:  notice.Options,
			Choice:   notice.Votes[userID],
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// voteMulti toggles option membership in the user's choice set. Legacy single
// values migrate to a one-element set first.
func (e *Engine) voteMulti(notice *ledger.Notice, userID string, previous ledger.VoteChoice, option int) {
	indices := previous.AsMulti().Indices()

	pos := -1
	for i, idx := range indices {
		if idx == option {
			pos = i
			break
		}
	}

	if pos >= 0 {
		// Toggle off.
		indices = append(indices[:pos], indices[pos+1:]...)
		decrement(notice, option)
	} else {
		// Toggle on.
		indices = append(indices, option)
		notice.Options[option].Votes++
	}

	// The key stays present with an empty set after the last toggle-off;
	// readers treat that identically to no entry.
	notice.Votes[userID] = ledger.MultiChoice(indices...)
}

// voteSingle moves, removes or toggles off the user's single choice. A stray
// multi-shaped previous value (from a poll whose mode changed) is cleared
// entirely before the new vote applies.
func (e *Engine) voteSingle(notice *ledger.Notice, userID string, previous ledger.VoteChoice, option *int) {
	for _, idx := range previous.Indices() {
		if idx >= 0 && idx < len(notice.Options) {
			decrement(notice, idx)
		}
	}

	if option == nil {
		// Explicit removal.
		delete(notice.Votes, userID)
		return
	}

	if prev, ok := previous.Single(); ok && prev == *option {
		// Same option again: deselect.
		delete(notice.Votes, userID)
		return
	}

	notice.Options[*option].Votes++
	notice.Votes[userID] = ledger.SingleChoice(*option)
}

func decrement(notice *ledger.Notice, option int) {
	if notice.Options[option].Votes > 0 {
		notice.Options[option].Votes--
	}
}

// Create posts a new notice. With two or more poll options it becomes a poll
// with zeroed tallies and no votes.
func (e *Engine) Create(ctx context.Context, draft Draft) (*ledger.Notice, error) {
	now := e.now()

	notice := &ledger.Notice{
		ID:         uuid.New().String(),
		Title:      draft.Title,
		Message:    draft.Message,
		Author:     draft.Author,
		AuthorName: draft.AuthorName,
		Type:       draft.Type,
		Timestamp:  now,
		UpdatedAt:  now,
	}
	if notice.AuthorName == "" {
		notice.AuthorName = draft.Author
	}
	if notice.Type == "" {
		notice.Type = "general"
	}

	if len(draft.PollOptions) >= 2 {
		notice.IsPoll = true
		notice.AllowMultiple = draft.AllowMultiple
		notice.Options = make([]ledger.PollOption, len(draft.PollOptions))
		for i, text := range draft.PollOptions {
			notice.Options[i] = ledger.PollOption{Text: text}
		}
		notice.Votes = map[string]ledger.VoteChoice{}
		notice.Voters = []string{}
	}

	if err := e.store.PutNotice(ctx, notice); err != nil {
		return nil, err
	}

	return notice, nil
}

// Update applies an admin edit to a notice. It runs as a transaction on the
// notice document so a concurrent vote is never clobbered by the full-document
// rewrite.
func (e *Engine) Update(ctx context.Context, noticeID string, patch Patch) (*ledger.Notice, error) {
	noticeKey := ledger.NoticeKey(e.store.InstanceName(), noticeID)

	var updated *ledger.Notice
	err := e.store.RunTransaction(ctx, e.attempts, []string{noticeKey}, func(tx *ledger.Tx) error {
		notice, err := tx.GetNotice(noticeID)
		if ledger.IsNotFound(err) {
			return ErrNotFound
		} else if err != nil {
			return err
		}

		if patch.Title != nil {
			notice.Title = *patch.Title
		}
		if patch.Message != nil {
			notice.Message = *patch.Message
		}
		if patch.Type != nil {
			notice.Type = *patch.Type
		}
		if patch.IsPinned != nil {
			notice.IsPinned = *patch.IsPinned
		}
		notice.UpdatedAt = e.now()

		if err := tx.SetNotice(notice); err != nil {
			return err
		}

		updated = notice
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes a notice and its listing entry.
func (e *Engine) Delete(ctx context.Context, noticeID string) error {
	err := e.store.DeleteNotice(ctx, noticeID)
	if ledger.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

// List returns a page of notices, newest first. limit defaults to 5.
func (e *Engine) List(ctx context.Context, offset, limit int64) ([]*ledger.Notice, error) {
	if limit <= 0 {
		limit = 5
	}
	if offset < 0 {
		offset = 0
	}
	return e.store.ListNotices(ctx, offset, limit)
}
