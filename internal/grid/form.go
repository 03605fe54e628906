package grid

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/metrics"
	"github.com/DukeRupert/fazenda/internal/notify"
)

// FormConfig describes how a resource creates new rows.
type FormConfig[T any] struct {
	Resource string
	Noun     string
	Columns  []Column[T]
	Defaults func(ctx context.Context) (T, error)
	Prepare  func(ctx context.Context, draft *T) error // optional; resolves references before validation
	Validate func(T) error
	Payload  func(T) any
}

// Form is the transient new-row draft of a grid.
type Form[T any] struct {
	mu         sync.Mutex
	cfg        FormConfig[T]
	gateway    Gateway[T]
	store      Store[T]
	sink       notify.Sink
	logger     *slog.Logger
	key        uuid.UUID
	draft      *T
	submitting bool
	closed     bool
}

// NewForm creates a closed form.
func NewForm[T any](cfg FormConfig[T], gateway Gateway[T], store Store[T], sink notify.Sink, logger *slog.Logger) *Form[T] {
	if cfg.Noun == "" {
		cfg.Noun = "Row"
	}
	return &Form[T]{
		cfg:     cfg,
		gateway: gateway,
		store:   store,
		sink:    sink,
		logger:  logger.With("resource", cfg.Resource, "component", "form"),
	}
}

// Columns returns the columns the form edits.
func (f *Form[T]) Columns() []Column[T] {
	return f.cfg.Columns
}

// Open starts a draft from the resource defaults. An open form keeps its
// current draft.
func (f *Form[T]) Open(ctx context.Context) error {
	f.mu.Lock()
	if f.draft != nil {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	var draft T
	if f.cfg.Defaults != nil {
		d, err := f.cfg.Defaults(ctx)
		if err != nil {
			f.sink.Error(domain.ErrorMessage(err))
			return err
		}
		draft = d
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draft == nil {
		f.draft = &draft
		f.key = uuid.New()
	}
	return nil
}

// OpenWith starts a draft from draft, replacing any open one.
func (f *Form[T]) OpenWith(draft T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = &draft
	f.key = uuid.New()
}

// IsOpen reports whether a draft exists.
func (f *Form[T]) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft != nil
}

// Key identifies the current draft. It changes every time a form opens, so
// stale form posts can be told apart.
func (f *Form[T]) Key() uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key
}

// Draft returns a copy of the draft.
func (f *Form[T]) Draft() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draft == nil {
		var zero T
		return zero, false
	}
	return *f.draft, true
}

// Submitting reports whether a create call is in flight.
func (f *Form[T]) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// SetField writes one input value into the draft.
func (f *Form[T]) SetField(field, value string) error {
	const op = "form.set_field"
	err := f.Update(func(draft *T) error {
		for _, c := range f.cfg.Columns {
			if c.Field.Name != field {
				continue
			}
			if c.Set == nil {
				return domain.Invalid(op, fmt.Sprintf("%s cannot be set here", c.Field.Label))
			}
			if err := c.Set(draft, value); err != nil {
				return domain.NewValidationError(op, field, fmt.Sprintf("%s: %v", c.Field.Label, err))
			}
			return nil
		}
		return domain.Invalid(op, fmt.Sprintf("unknown field %q", field))
	})
	if err != nil {
		f.sink.Error(domain.ErrorMessage(err))
	}
	return err
}

// Update applies fn to the draft. The draft is unchanged when fn fails.
func (f *Form[T]) Update(fn func(*T) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draft == nil {
		return domain.Invalid("form.update", "No new row is open")
	}
	draft := *f.draft
	if err := fn(&draft); err != nil {
		return err
	}
	f.draft = &draft
	return nil
}

// Submit validates the draft and creates it. On success the form closes
// and the store is invalidated; on failure the draft is kept.
func (f *Form[T]) Submit(ctx context.Context) (T, error) {
	const op = "form.submit"
	var zero T

	f.mu.Lock()
	if f.draft == nil {
		f.mu.Unlock()
		return zero, domain.Invalid(op, "No new row is open")
	}
	if f.submitting {
		f.mu.Unlock()
		return zero, domain.Errorf(domain.EBUSY, op, "%s is already being saved", f.cfg.Noun)
	}
	draft := *f.draft
	key := f.key
	f.submitting = true
	f.mu.Unlock()

	// The create outlives the request that asked for it.
	created, err := f.submit(context.WithoutCancel(ctx), op, draft, key)

	f.mu.Lock()
	f.submitting = false
	f.mu.Unlock()
	return created, err
}

func (f *Form[T]) submit(ctx context.Context, op string, draft T, key uuid.UUID) (T, error) {
	var zero T

	if f.cfg.Prepare != nil {
		if err := f.cfg.Prepare(ctx, &draft); err != nil {
			f.sink.Error(domain.ErrorMessage(err))
			return zero, err
		}
		f.mu.Lock()
		if f.draft != nil && f.key == key {
			resolved := draft
			f.draft = &resolved
		}
		f.mu.Unlock()
	}
	if f.cfg.Validate != nil {
		if err := f.cfg.Validate(draft); err != nil {
			f.sink.Error(domain.ErrorMessage(err))
			return zero, err
		}
	}

	created, err := f.gateway.Create(ctx, f.cfg.Payload(draft))
	metrics.GridMutation(f.cfg.Resource, "create", err)

	f.mu.Lock()
	closed := f.closed
	if err == nil && f.key == key {
		f.draft = nil
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.Warn("create failed", "op", op, "error", err)
		if !closed {
			f.sink.Error(domain.ErrorMessage(err))
		}
		return zero, err
	}

	f.logger.Info("row created", "op", op)
	if rerr := f.store.Invalidate(ctx); rerr != nil {
		f.logger.Warn("reload after create failed", "error", rerr)
		if !closed {
			f.sink.Error("Saved, but the list could not be reloaded: " + domain.ErrorMessage(rerr))
		}
	}
	if !closed {
		f.sink.Success(f.cfg.Noun + " created")
	}
	return created, nil
}

// Discard closes the form without any network call.
func (f *Form[T]) Discard() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = nil
}

// Close detaches the form; late responses no longer reach its sink.
func (f *Form[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
