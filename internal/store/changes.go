package store

import (
	"context"
	"time"
)

// Op names the kind of cache mutation carried by a Change.
type Op string

const (
	OpCreate   Op = "create"
	OpUpdate   Op = "update"
	OpMarkRead Op = "mark_read"
)

// Change describes one successful mutation.
type Change struct {
	Entity   Entity    `json:"entity"`
	Op       Op        `json:"op"`
	UserID   string    `json:"userId"`
	RecordID string    `json:"recordId,omitempty"`
	At       time.Time `json:"at"`
}

// ChangePublisher receives a Change after each successful mutation.
type ChangePublisher interface {
	PublishChange(ctx context.Context, change Change) error
}

type noopPublisher struct{}

func (noopPublisher) PublishChange(context.Context, Change) error { return nil }

func (s *Store) publish(ctx context.Context, e Entity, op Op, userID, recordID string) {
	change := Change{Entity: e, Op: op, UserID: userID, RecordID: recordID, At: s.nowFn().UTC()}
	if err := s.events.PublishChange(ctx, change); err != nil {
		s.logger.Warn("publish change failed", "entity", e, "op", op, "userId", userID, "error", err)
	}
}
