package domain

import (
	"time"
)

// ChangeEvent records one persisted content mutation as reported by the
// editor layer. Events are immutable once created and are consumed exactly
// once by the deploy queue (either directly or merged into a pending batch).
type ChangeEvent struct {
	OccurredAt  time.Time
	AuthorName  string
	AuthorEmail string
	Message     string
	Scope       Scope
	Urgent      bool
}

// BuildRequest is a frozen pending batch handed to the bake pipeline. It is
// read-only for the duration of one build+deploy cycle.
type BuildRequest struct {
	Scope              Scope
	Messages           []string
	Authors            []string
	EarliestOccurredAt time.Time
	LatestOccurredAt   time.Time
}

// CommitMessage joins the coalesced messages into a single deploy annotation,
// preserving arrival order.
func (r BuildRequest) CommitMessage() string {
	switch len(r.Messages) {
	case 0:
		return ""
	case 1:
		return r.Messages[0]
	}
	joined := r.Messages[0]
	for _, msg := range r.Messages[1:] {
		joined += "\n" + msg
	}
	return joined
}
