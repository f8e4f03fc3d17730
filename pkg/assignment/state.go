package assignment

import (
	"fmt"

	"github.com/arnavshah/readiness-api-go/pkg/database"
	"github.com/arnavshah/readiness-api-go/pkg/models"
)

// transitions lists the only edges of the lifecycle. Every other state is terminal.
var transitions = map[models.Status][]models.Status{
	models.StatusPending: {models.StatusCompleted, models.StatusOverdue, models.StatusCancelled},
}

// CanTransition checks an edge without regard to who drives it
func CanTransition(from, to models.Status) error {
	if from.Terminal() {
		return fmt.Errorf("%w: status is %s", ErrImmutableRecord, from)
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Authorize checks that actor may drive a to the target status
func Authorize(actor models.Actor, a *database.Assignment, to models.Status) error {
	switch to {
	case models.StatusCompleted:
		if actor.Role == models.RoleWorker && actor.UserID == a.WorkerID {
			return nil
		}
		return fmt.Errorf("%w: only the assigned worker may complete an assignment", ErrForbidden)
	case models.StatusCancelled:
		if actor.Role == models.RoleAdmin ||
			(actor.Role == models.RoleTeamLeader && actor.UserID == a.SupervisorID) {
			return nil
		}
		return fmt.Errorf("%w: only the assigning supervisor or an administrator may cancel", ErrForbidden)
	case models.StatusOverdue:
		if actor.Role == models.RoleSystem {
			return nil
		}
		return fmt.Errorf("%w: assignments become overdue only through the sweeper", ErrForbidden)
	}
	return fmt.Errorf("%w: cannot move to %s", ErrInvalidTransition, to)
}

// CanView reports whether actor may read a
func CanView(actor models.Actor, a *database.Assignment) bool {
	switch actor.Role {
	case models.RoleAdmin, models.RoleSystem:
		return true
	case models.RoleTeamLeader:
		return a.SupervisorID == actor.UserID || (actor.Team != "" && a.Team == actor.Team)
	case models.RoleWorker:
		return a.WorkerID == actor.UserID
	}
	return false
}
