package assignment

import (
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/database"
	"github.com/arnavshah/readiness-api-go/pkg/models"
)

// WorkerState is what the checker needs to know about one candidate
type WorkerState struct {
	WorkerID string
	// Found is false when no user exists with this id
	Found bool
	Team  string
	// Assignments holds the worker's pending, completed and overdue rows on any date
	Assignments []database.Assignment
	// OpenCase is true when an open unselected case exists with the assigning supervisor
	OpenCase bool
}

// BoundaryFunc returns the instant after which an overdue record no longer
// waits for a new shift
type BoundaryFunc func(a database.Assignment) time.Time

// EligibilityRequest is one batch to check
type EligibilityRequest struct {
	Team       string
	TargetDate string
	Now        time.Time
	Workers    []WorkerState
	// Unselected are workers excluded from the batch; they only need to be on the team
	Unselected []WorkerState
	Boundary   BoundaryFunc
}

// Eligibility is the outcome of a successful check
type Eligibility struct {
	Eligible []string
	// Superseded lists expired pending assignments on other dates that the
	// new batch replaces
	Superseded []database.Assignment
}

// CheckEligibility returns every candidate as eligible or fails the whole
// batch with an *EligibilityError naming each blocked worker.
func CheckEligibility(req EligibilityRequest) (*Eligibility, error) {
	var mismatched []Block
	for _, group := range [][]WorkerState{req.Workers, req.Unselected} {
		for _, w := range group {
			if !w.Found || w.Team != req.Team {
				mismatched = append(mismatched, Block{WorkerID: w.WorkerID, Reason: models.BlockTeamMismatch})
			}
		}
	}
	if len(mismatched) > 0 {
		return nil, &EligibilityError{Blocks: mismatched}
	}

	out := &Eligibility{}
	var blocks []Block
	for _, w := range req.Workers {
		block, superseded := checkWorker(req, w)
		if block != nil {
			blocks = append(blocks, *block)
			continue
		}
		out.Eligible = append(out.Eligible, w.WorkerID)
		out.Superseded = append(out.Superseded, superseded...)
	}
	if len(blocks) > 0 {
		return nil, &EligibilityError{Blocks: blocks}
	}
	return out, nil
}

// checkWorker applies the per-worker rules. When several rules match, the
// one listed first wins: open case, completed today, pending not yet due,
// overdue waiting for the next shift, overdue after the shift boundary.
func checkWorker(req EligibilityRequest, w WorkerState) (*Block, []database.Assignment) {
	if w.OpenCase {
		return &Block{WorkerID: w.WorkerID, Reason: models.BlockOpenCase}, nil
	}

	var found *Block
	rank := func(b Block) {
		if found == nil || precedence[b.Reason] < precedence[found.Reason] {
			found = &b
		}
	}

	var superseded []database.Assignment
	for _, a := range w.Assignments {
		sameDay := a.AssignedDate == req.TargetDate
		switch a.Status {
		case models.StatusCompleted:
			if sameDay {
				rank(Block{WorkerID: w.WorkerID, Reason: models.BlockDuplicateCompleted, AssignmentID: a.ID})
			}
		case models.StatusPending:
			if a.DueAt.After(req.Now) {
				rank(Block{WorkerID: w.WorkerID, Reason: models.BlockPendingNotDue, AssignmentID: a.ID})
			} else if sameDay {
				// expired but not yet swept: it is already overdue in substance
				rank(overdueBlock(req, w.WorkerID, a))
			} else {
				superseded = append(superseded, a)
			}
		case models.StatusOverdue:
			if sameDay {
				rank(overdueBlock(req, w.WorkerID, a))
			}
		}
	}
	if found != nil {
		return found, nil
	}
	return nil, superseded
}

// overdueBlock keeps the record as a permanent mark. Before the next shift
// starts the worker must wait; after it the date itself is taken. A fresh
// shift only unlocks later dates, never the overdue record's own date.
func overdueBlock(req EligibilityRequest, workerID string, a database.Assignment) Block {
	boundary := a.DueAt
	if req.Boundary != nil {
		boundary = req.Boundary(a)
	}
	if req.Now.Before(boundary) {
		return Block{WorkerID: workerID, Reason: models.BlockOverdueNotReassignable, AssignmentID: a.ID}
	}
	return Block{WorkerID: workerID, Reason: models.BlockDuplicateAssignment, AssignmentID: a.ID}
}

var precedence = map[models.BlockReason]int{
	models.BlockOpenCase:               0,
	models.BlockDuplicateCompleted:     1,
	models.BlockPendingNotDue:          2,
	models.BlockOverdueNotReassignable: 3,
	models.BlockDuplicateAssignment:    4,
}
