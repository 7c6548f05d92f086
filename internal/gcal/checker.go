package gcal

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"agenda-service/internal/model"
	"agenda-service/internal/timeslot"
)

// Strategy selects how the remote calendar is queried for busy time.
type Strategy string

const (
	// StrategyEvents lists events over the slot's window and discards
	// cancelled and all-day entries before the overlap test.
	StrategyEvents Strategy = "events"
	// StrategyFreeBusy asks the provider for aggregated busy intervals.
	StrategyFreeBusy Strategy = "freebusy"
)

// defaultParallelism bounds concurrent calendar calls per check request.
const defaultParallelism = 4

// SlotCheck is the independent outcome for one candidate slot. Err set
// means the slot's availability is unknown, never that it is available.
type SlotCheck struct {
	Slot           timeslot.Interval
	Available      bool
	ConflictDetail string
	Err            error
}

// Checker answers "is the remote calendar busy during this interval" for
// batches of candidate slots.
type Checker struct {
	clients  Clients
	parallel int
}

func NewChecker(clients Clients) *Checker {
	return &Checker{clients: clients, parallel: defaultParallelism}
}

// CheckSlots evaluates the candidate slots concurrently with bounded
// parallelism. A failing slot does not fail its siblings; results come
// back in input order.
func (c *Checker) CheckSlots(ctx context.Context, link *model.CalendarLink, slots []timeslot.Interval, strategy Strategy) []SlotCheck {
	results := make([]SlotCheck, len(slots))

	api, err := c.clients.For(ctx, link)
	if err != nil {
		for i, slot := range slots {
			results[i] = SlotCheck{Slot: slot, Err: err}
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallel)
	for i, slot := range slots {
		g.Go(func() error {
			results[i] = c.checkOne(gctx, api, link.CalendarID, slot, strategy)
			return nil
		})
	}
	g.Wait()
	return results
}

// CheckSlot is the single-slot convenience wrapper.
func (c *Checker) CheckSlot(ctx context.Context, link *model.CalendarLink, slot timeslot.Interval, strategy Strategy) SlotCheck {
	return c.CheckSlots(ctx, link, []timeslot.Interval{slot}, strategy)[0]
}

func (c *Checker) checkOne(ctx context.Context, api API, calendarID string, slot timeslot.Interval, strategy Strategy) SlotCheck {
	busy, err := c.busyIntervals(ctx, api, calendarID, slot, strategy)
	if err != nil {
		return SlotCheck{Slot: slot, Err: err}
	}
	for _, b := range busy {
		if slot.Overlaps(b) {
			return SlotCheck{
				Slot:           slot,
				ConflictDetail: fmt.Sprintf("calendar busy %s", b),
			}
		}
	}
	return SlotCheck{Slot: slot, Available: true}
}

// busyIntervals produces the busy set for the slot's window. Both
// strategies feed the same overlap predicate, so they must agree on
// availability for identical calendar state.
func (c *Checker) busyIntervals(ctx context.Context, api API, calendarID string, slot timeslot.Interval, strategy Strategy) ([]timeslot.Interval, error) {
	switch strategy {
	case StrategyFreeBusy:
		return api.FreeBusy(ctx, calendarID, slot)
	case StrategyEvents, "":
		events, err := api.ListEvents(ctx, calendarID, slot)
		if err != nil {
			return nil, err
		}
		var busy []timeslot.Interval
		for _, ev := range events {
			if ev.Canceled() || ev.AllDay {
				continue
			}
			busy = append(busy, ev.Interval())
		}
		return busy, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
}
