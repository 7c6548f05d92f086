// Package booking turns validated booking requests into persisted
// appointments, guarding the local overlap invariant and consulting the
// external calendar when a link exists.
package booking

import (
	"context"
	"sync"

	"agenda-service/internal/model"
)

// Reserver combines the overlap check and the insert into one atomic
// operation against the durable store.
type Reserver interface {
	InsertIfFree(ctx context.Context, a *model.Appointment) error
}

// Guard serializes reserve operations per professional so two racing
// requests for the same slot cannot both pass the overlap check. The
// database's exclusion constraint backstops writers in other processes.
// Operations on distinct professionals never contend for the same lock.
type Guard struct {
	store Reserver

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGuard(store Reserver) *Guard {
	return &Guard{store: store, locks: make(map[string]*sync.Mutex)}
}

func (g *Guard) lockFor(professionalID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[professionalID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[professionalID] = l
	}
	return l
}

// Reserve inserts the appointment if its interval is free. The
// per-professional lock covers exactly the reserve-and-insert and nothing
// else; no external call happens while it is held. Returns
// apperr.ErrSlotTaken when the interval is occupied.
func (g *Guard) Reserve(ctx context.Context, a *model.Appointment) error {
	l := g.lockFor(a.ProfessionalID)
	l.Lock()
	defer l.Unlock()
	return g.store.InsertIfFree(ctx, a)
}
