package service

import (
	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
	"github.com/cellarcount/cellarcount-backend/pkg/errors"
)

// allowedTransitions is the complete count lifecycle. APPROVED is terminal.
var allowedTransitions = map[repository.CountStatus][]repository.CountStatus{
	repository.CountDraft:      {repository.CountInProgress},
	repository.CountInProgress: {repository.CountCompleted},
	repository.CountCompleted:  {repository.CountInProgress, repository.CountApproved},
}

// transition is the only place a count status may change. It returns
// CountLocked for any change out of APPROVED.
func transition(countID string, from, to repository.CountStatus) error {
	if from == repository.CountApproved {
		return errors.CountLocked(countID)
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return nil
		}
	}
	return errors.InvalidTransition(string(from), string(to))
}

// ensureMutable rejects child mutations of an approved count.
func ensureMutable(c *repository.InventoryCount) error {
	if c.Status == repository.CountApproved {
		return errors.CountLocked(c.ID)
	}
	return nil
}
