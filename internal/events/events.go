// Package events publishes loan lifecycle events to a Redis stream.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type Type string

const (
	LoanCreated       Type = "loan.created"
	LoanStatusChanged Type = "loan.status_changed"
	LoanUpdated       Type = "loan.updated"
	LoanDeleted       Type = "loan.deleted"
)

type LoanEvent struct {
	Type   Type      `json:"type"`
	LoanID string    `json:"loan_id"`
	Owner  string    `json:"owner"`
	Actor  string    `json:"actor"`
	Status string    `json:"status,omitempty"`
	At     time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev LoanEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, LoanEvent) error { return nil }

// StreamPublisher appends events to a capped Redis stream.
type StreamPublisher struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(rdb *redis.Client, stream string, maxLen int64) *StreamPublisher {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &StreamPublisher{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) Publish(ctx context.Context, ev LoanEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":    string(ev.Type),
			"payload": string(b),
		},
	}).Err()
}

// Decode reads an event back from stream message values.
func Decode(values map[string]any) (LoanEvent, error) {
	raw, _ := values["payload"].(string)
	if raw == "" {
		return LoanEvent{}, errors.New("event payload missing")
	}
	var ev LoanEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return LoanEvent{}, err
	}
	return ev, nil
}
