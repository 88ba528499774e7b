// Package confirm implements the delete confirmation dialog: it holds the
// entity pending deletion and sends the delete only when the user confirms.
package confirm

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"store_admin/internal/events"
	"store_admin/internal/form"
	"store_admin/internal/gateway"
	"store_admin/internal/models"
	"store_admin/internal/pkg/apierr"
	"store_admin/internal/pkg/logger"
)

// State is what the dialog shows.
type State struct {
	Open       bool   `json:"open"`
	Resource   string `json:"resource,omitempty"`
	EntityID   string `json:"entityId,omitempty"`
	Label      string `json:"label,omitempty"`
	Submitting bool   `json:"submitting"`
	Error      string `json:"error,omitempty"`
}

// Dialog is a single confirmation slot; opening it again replaces the target.
type Dialog struct {
	mutator   form.Mutator
	publisher events.Publisher
	log       *logger.Logger

	mu         sync.Mutex
	target     models.Entity
	generation uint64
	submitting bool
	err        error
}

func New(mutator form.Mutator, publisher events.Publisher, log *logger.Logger) *Dialog {
	return &Dialog{mutator: mutator, publisher: publisher, log: log.Component("confirm")}
}

// Open asks for confirmation to delete entity.
func (d *Dialog) Open(entity models.Entity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	d.target = entity
	d.submitting = false
	d.err = nil
}

// Confirm sends DELETE /admin/{resource}/{id}. Success closes the dialog and
// invalidates the collection; any other outcome leaves it open with the error.
func (d *Dialog) Confirm(ctx context.Context) error {
	d.mu.Lock()
	target := d.target
	if target == nil {
		d.mu.Unlock()
		return apierr.ClientInputErr("Nothing to delete.", nil)
	}
	if d.submitting {
		d.mu.Unlock()
		return apierr.ClientInputErr("The delete is already in progress.", nil)
	}
	gen := d.generation
	d.submitting = true
	d.err = nil
	d.mu.Unlock()

	_, err := d.mutator.Mutate(ctx, gateway.Delete(target.Resource(), target.Key()))

	d.mu.Lock()
	current := gen == d.generation
	if current {
		d.submitting = false
	}
	switch {
	case apierr.IsAuth(err):
		d.mu.Unlock()
		return err
	case err != nil:
		if current {
			d.err = err
		}
		d.mu.Unlock()
		d.log.Info("delete rejected", zap.String("resource", target.Resource()), zap.String("id", target.Key()), zap.Error(err))
		return err
	}
	if current {
		d.generation++
		d.target = nil
	}
	d.mu.Unlock()

	d.publisher.Publish(events.ResourceChanged{Resource: target.Resource()})
	return nil
}

// Cancel closes the dialog without deleting anything.
func (d *Dialog) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	d.target = nil
	d.submitting = false
	d.err = nil
}

func (d *Dialog) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.target == nil {
		return State{}
	}
	s := State{
		Open:       true,
		Resource:   d.target.Resource(),
		EntityID:   d.target.Key(),
		Label:      d.target.Label(),
		Submitting: d.submitting,
	}
	if d.err != nil {
		s.Error = apierr.PublicMessage(d.err)
	}
	return s
}
