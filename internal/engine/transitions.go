package engine

import "clubsched/internal/model"

// transitions lists the permitted status changes. Cancellation is terminal
// only in the sense that the row survives; reactivation back to pending or
// confirmed is allowed but re-validated as a fresh booking attempt.
var transitions = map[string][]string{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCancelled},
	model.StatusCancelled: {model.StatusPending, model.StatusConfirmed},
}

// canTransition checks if a status change is allowed.
func canTransition(from, to string) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
