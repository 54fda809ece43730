package deploycmd

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/goliatone/go-baker/internal/commands"
	"github.com/goliatone/go-baker/internal/deployqueue"
	"github.com/goliatone/go-baker/internal/domain"
	"github.com/goliatone/go-baker/pkg/interfaces"
)

const (
	enqueueChangeMessageType = "baker.deploy.enqueue_change"
	bakeSiteMessageType      = "baker.deploy.bake_site"
)

// Queue is the slice of the deploy coordinator the command layer needs.
// *deployqueue.Coordinator satisfies it.
type Queue interface {
	EnqueueChange(event domain.ChangeEvent)
	TriggerNow(ctx context.Context, event domain.ChangeEvent) (*deployqueue.RunResult, error)
}

// EnqueueChangeCommand reports one persisted content mutation to the deploy
// queue. The build starts later, after the debounce window.
type EnqueueChangeCommand struct {
	Kind        interfaces.EntityKind `json:"kind,omitempty"`
	EntityID    uuid.UUID             `json:"entity_id,omitempty"`
	Slug        string                `json:"slug,omitempty"`
	FullSite    bool                  `json:"full_site,omitempty"`
	Message     string                `json:"message,omitempty"`
	AuthorName  string                `json:"author_name,omitempty"`
	AuthorEmail string                `json:"author_email,omitempty"`
	Urgent      bool                  `json:"urgent,omitempty"`
	OccurredAt  time.Time             `json:"occurred_at,omitempty"`
}

// Type implements command.Message.
func (EnqueueChangeCommand) Type() string { return enqueueChangeMessageType }

// Validate ensures entity-scoped events name a real entity. Full-site events
// need no entity fields.
func (m EnqueueChangeCommand) Validate() error {
	if m.FullSite {
		return nil
	}
	errs := validation.Errors{}
	if !m.Kind.Valid() {
		errs["kind"] = validation.NewError("baker.deploy.enqueue_change.kind_invalid", "kind must name a known entity family")
	}
	if m.EntityID == uuid.Nil {
		errs["entity_id"] = validation.NewError("baker.deploy.enqueue_change.entity_id_required", "entity_id is required for entity-scoped events")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (m EnqueueChangeCommand) event() domain.ChangeEvent {
	scope := domain.FullSiteScope()
	if !m.FullSite {
		scope = domain.EntityScope(interfaces.EntityRef{
			Kind: m.Kind,
			ID:   m.EntityID,
			Slug: m.Slug,
		})
	}
	occurred := m.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return domain.ChangeEvent{
		OccurredAt:  occurred,
		AuthorName:  m.AuthorName,
		AuthorEmail: m.AuthorEmail,
		Message:     m.Message,
		Scope:       scope,
		Urgent:      m.Urgent,
	}
}

// EnqueueChangeHandler feeds change events into the deploy queue using the
// shared command handler foundation.
type EnqueueChangeHandler struct {
	inner *commands.Handler[EnqueueChangeCommand]
}

// NewEnqueueChangeHandler constructs a handler wired to the provided queue.
func NewEnqueueChangeHandler(queue Queue, logger interfaces.Logger, opts ...commands.HandlerOption[EnqueueChangeCommand]) *EnqueueChangeHandler {
	exec := func(ctx context.Context, msg EnqueueChangeCommand) error {
		queue.EnqueueChange(msg.event())
		return nil
	}

	handlerOpts := []commands.HandlerOption[EnqueueChangeCommand]{
		commands.WithLogger[EnqueueChangeCommand](logger),
		commands.WithOperation[EnqueueChangeCommand]("deploy.enqueue_change"),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &EnqueueChangeHandler{
		inner: commands.NewHandler[EnqueueChangeCommand](exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[EnqueueChangeCommand].Execute.
func (h *EnqueueChangeHandler) Execute(ctx context.Context, msg EnqueueChangeCommand) error {
	return h.inner.Execute(ctx, msg)
}

// BakeSiteCommand requests an urgent full-site rebuild and waits for the
// cycle that incorporates it, surfacing that cycle's outcome as the error.
type BakeSiteCommand struct {
	Message    string `json:"message,omitempty"`
	AuthorName string `json:"author_name,omitempty"`
}

// Type implements command.Message.
func (BakeSiteCommand) Type() string { return bakeSiteMessageType }

// Validate implements command.Message. Every field is optional.
func (BakeSiteCommand) Validate() error { return nil }

// BakeSiteHandler triggers synchronous full-site rebuilds via the deploy queue.
type BakeSiteHandler struct {
	inner *commands.Handler[BakeSiteCommand]
}

// NewBakeSiteHandler constructs a handler wired to the provided queue. Builds
// can take minutes, so callers usually pair it with commands.WithTimeout to
// match their build timeout.
func NewBakeSiteHandler(queue Queue, logger interfaces.Logger, opts ...commands.HandlerOption[BakeSiteCommand]) *BakeSiteHandler {
	exec := func(ctx context.Context, msg BakeSiteCommand) error {
		result, err := queue.TriggerNow(ctx, domain.ChangeEvent{
			OccurredAt: time.Now(),
			AuthorName: msg.AuthorName,
			Message:    msg.Message,
			Scope:      domain.FullSiteScope(),
		})
		if err != nil {
			return err
		}
		if result.Err != nil {
			return fmt.Errorf("bake run %s failed: %w", result.RunID, result.Err)
		}
		return nil
	}

	handlerOpts := []commands.HandlerOption[BakeSiteCommand]{
		commands.WithLogger[BakeSiteCommand](logger),
		commands.WithOperation[BakeSiteCommand]("deploy.bake_site"),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &BakeSiteHandler{
		inner: commands.NewHandler[BakeSiteCommand](exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[BakeSiteCommand].Execute.
func (h *BakeSiteHandler) Execute(ctx context.Context, msg BakeSiteCommand) error {
	return h.inner.Execute(ctx, msg)
}
