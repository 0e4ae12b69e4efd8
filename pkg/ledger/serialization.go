package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Complex fields like the
// stamp list or the votes map are JSON-encoded into single hash fields. This
// provides a balance between queryability (individual counter fields) and
// flexibility (nested structures).

const timeLayout = time.RFC3339Nano

// AggregateToHash converts a DailyAggregate to Redis hash format.
// The stamp list is JSON-encoded into the "orders" field.
func AggregateToHash(a *DailyAggregate) (map[string]interface{}, error) {
	stampsJSON, err := json.Marshal(a.Stamps)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order stamps: %w", err)
	}

	hash := map[string]interface{}{
		"date":         a.Date,
		"tea":          a.Counts.Tea,
		"coffee":       a.Counts.Coffee,
		"juice":        a.Counts.Juice,
		"orders":       string(stampsJSON),
		"last_updated": a.LastUpdated.Format(timeLayout),
	}

	return hash, nil
}

// HashToAggregate converts a Redis hash to a DailyAggregate.
func HashToAggregate(hash map[string]string) (*DailyAggregate, error) {
	tea, err := parseCount(hash["tea"])
	if err != nil {
		return nil, fmt.Errorf("invalid tea count: %w", err)
	}
	coffee, err := parseCount(hash["coffee"])
	if err != nil {
		return nil, fmt.Errorf("invalid coffee count: %w", err)
	}
	juice, err := parseCount(hash["juice"])
	if err != nil {
		return nil, fmt.Errorf("invalid juice count: %w", err)
	}

	var stamps []OrderStamp
	if stampsJSON := hash["orders"]; stampsJSON != "" {
		if err := json.Unmarshal([]byte(stampsJSON), &stamps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order stamps: %w", err)
		}
	}
	if stamps == nil {
		stamps = []OrderStamp{}
	}

	lastUpdated, _ := time.Parse(timeLayout, hash["last_updated"])

	return &DailyAggregate{
		Date:        hash["date"],
		Counts:      Counts{Tea: tea, Coffee: coffee, Juice: juice},
		Stamps:      stamps,
		LastUpdated: lastUpdated,
	}, nil
}

// OrderToHash converts an OrderRecord to Redis hash format.
func OrderToHash(o *OrderRecord) map[string]interface{} {
	return map[string]interface{}{
		"id":        o.ID,
		"user_id":   o.UserID,
		"email":     o.Email,
		"user_name": o.UserName,
		"kind":      string(o.Kind),
		"timestamp": o.Timestamp.Format(timeLayout),
		"date":      o.Date,
	}
}

// HashToOrder converts a Redis hash to an OrderRecord.
func HashToOrder(hash map[string]string) (*OrderRecord, error) {
	timestamp, err := time.Parse(timeLayout, hash["timestamp"])
	if err != nil {
		return nil, fmt.Errorf("invalid order timestamp: %w", err)
	}

	return &OrderRecord{
		ID:        hash["id"],
		UserID:    hash["user_id"],
		Email:     hash["email"],
		UserName:  hash["user_name"],
		Kind:      BeverageKind(hash["kind"]),
		Timestamp: timestamp,
		Date:      hash["date"],
	}, nil
}

// NoticeToHash converts a Notice to Redis hash format.
// Poll fields (options, votes, voters) are JSON-encoded; the votes map keeps
// the legacy value shapes (bare number for single, array for multi) via
// VoteChoice's custom JSON encoding.
func NoticeToHash(n *Notice) (map[string]interface{}, error) {
	hash := map[string]interface{}{
		"id":          n.ID,
		"title":       n.Title,
		"message":     n.Message,
		"author":      n.Author,
		"author_name": n.AuthorName,
		"type":        n.Type,
		"is_pinned":   strconv.FormatBool(n.IsPinned),
		"timestamp":   n.Timestamp.Format(timeLayout),
		"updated_at":  n.UpdatedAt.Format(timeLayout),
		"is_poll":     strconv.FormatBool(n.IsPoll),
	}

	if n.IsPoll {
		optionsJSON, err := json.Marshal(n.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal poll options: %w", err)
		}

		votes := n.Votes
		if votes == nil {
			votes = map[string]VoteChoice{}
		}
		votesJSON, err := json.Marshal(votes)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal votes: %w", err)
		}

		voters := n.Voters
		if voters == nil {
			voters = []string{}
		}
		votersJSON, err := json.Marshal(voters)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal voters: %w", err)
		}

		hash["allow_multiple"] = strconv.FormatBool(n.AllowMultiple)
		hash["poll_options"] = string(optionsJSON)
		hash["votes"] = string(votesJSON)
		hash["voters"] = string(votersJSON)
	}

	return hash, nil
}

// HashToNotice converts a Redis hash to a Notice.
func HashToNotice(hash map[string]string) (*Notice, error) {
	timestamp, err := time.Parse(timeLayout, hash["timestamp"])
	if err != nil {
		return nil, fmt.Errorf("invalid notice timestamp: %w", err)
	}
	updatedAt, _ := time.Parse(timeLayout, hash["updated_at"])

	isPinned, _ := strconv.ParseBool(hash["is_pinned"])
	isPoll, _ := strconv.ParseBool(hash["is_poll"])

	notice := &Notice{
		ID:         hash["id"],
		Title:      hash["title"],
		Message:    hash["message"],
		Author:     hash["author"],
		AuthorName: hash["author_name"],
		Type:       hash["type"],
		IsPinned:   isPinned,
		Timestamp:  timestamp,
		UpdatedAt:  updatedAt,
		IsPoll:     isPoll,
	}

	if !isPoll {
		return notice, nil
	}

	notice.AllowMultiple, _ = strconv.ParseBool(hash["allow_multiple"])

	if optionsJSON := hash["poll_options"]; optionsJSON != "" {
		if err := json.Unmarshal([]byte(optionsJSON), &notice.Options); err != nil {
			return nil, fmt.Errorf("failed to unmarshal poll options: %w", err)
		}
	}

	notice.Votes = map[string]VoteChoice{}
	if votesJSON := hash["votes"]; votesJSON != "" {
		if err := json.Unmarshal([]byte(votesJSON), &notice.Votes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal votes: %w", err)
		}
	}

	notice.Voters = []string{}
	if votersJSON := hash["voters"]; votersJSON != "" {
		if err := json.Unmarshal([]byte(votersJSON), &notice.Voters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal voters: %w", err)
		}
	}

	return notice, nil
}

// parseCount parses a non-negative counter field. Empty strings count as zero
// so partially-initialized legacy documents stay readable.
func parseCount(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return n, nil
}
