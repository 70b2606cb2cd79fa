package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/delivery-dispatch/internal/models"
)

var (
	// ErrInvalidTransition rejects a target status that is not reachable
	// from the order's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrOrderFinalized rejects any transition on a delivered or
	// cancelled order.
	ErrOrderFinalized = errors.New("order already finalized")
)

// happyNext maps each status to its successor on the happy path.
// Cancellation is handled separately: it is legal from any non-terminal
// status.
var happyNext = map[models.OrderStatus]models.OrderStatus{
	models.StatusPending:   models.StatusConfirmed,
	models.StatusConfirmed: models.StatusPreparing,
	models.StatusPreparing: models.StatusReady,
	models.StatusReady:     models.StatusPickedUp,
	models.StatusPickedUp:  models.StatusOnTheWay,
	models.StatusOnTheWay:  models.StatusDelivered,
}

// Terminal reports whether s forbids further transitions.
func Terminal(s models.OrderStatus) bool {
	return s == models.StatusDelivered || s == models.StatusCancelled
}

// CanTransition reports whether from→to is a legal move.
func CanTransition(from, to models.OrderStatus) bool {
	if Terminal(from) {
		return false
	}
	if to == models.StatusCancelled {
		return true
	}
	return happyNext[from] == to
}

// Apply moves the order to target and appends a history entry. The history
// log is append-only; earlier entries are never touched. The order is left
// unmodified on error.
func Apply(o *models.Order, target models.OrderStatus, actorID string, now time.Time) error {
	if Terminal(o.Status) {
		return fmt.Errorf("%w: order %s is %s", ErrOrderFinalized, o.Number, o.Status)
	}
	if !CanTransition(o.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}
	o.Status = target
	o.History = append(o.History, models.StatusChange{Status: target, ActorID: actorID, Timestamp: now})
	return nil
}
