package assignment

import (
	"errors"
	"testing"
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/database"
	"github.com/arnavshah/readiness-api-go/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const target = "2025-03-10"

func row(id, date string, status models.Status, due time.Time) database.Assignment {
	return database.Assignment{ID: id, AssignedDate: date, Status: status, DueAt: due}
}

func worker(id string, assignments ...database.Assignment) WorkerState {
	return WorkerState{WorkerID: id, Found: true, Team: "alpha", Assignments: assignments}
}

func eligibilityRequest(now time.Time, workers ...WorkerState) EligibilityRequest {
	return EligibilityRequest{Team: "alpha", TargetDate: target, Now: now, Workers: workers}
}

func blocksOf(t *testing.T, err error) []Block {
	t.Helper()
	var eerr *EligibilityError
	require.ErrorAs(t, err, &eerr)
	assert.True(t, errors.Is(err, ErrNotEligible))
	return eerr.Blocks
}

func TestCheckEligibility_AllEligible(t *testing.T) {
	now := utc("2025-03-10T09:00:00Z")
	got, err := CheckEligibility(eligibilityRequest(now,
		worker("w1"),
		worker("w2", row("a1", "2025-03-09", models.StatusCompleted, utc("2025-03-09T16:00:00Z"))),
		worker("w3", row("a2", "2025-03-08", models.StatusOverdue, utc("2025-03-08T16:00:00Z"))),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"w1", "w2", "w3"}, got.Eligible)
	assert.Empty(t, got.Superseded)
}

func TestCheckEligibility_Reasons(t *testing.T) {
	now := utc("2025-03-10T18:00:00Z")
	nextShift := utc("2025-03-11T08:00:00Z")

	tests := []struct {
		name   string
		state  WorkerState
		now    time.Time
		reason models.BlockReason
	}{
		{
			name:   "open case",
			state:  WorkerState{WorkerID: "w", Found: true, Team: "alpha", OpenCase: true},
			now:    now,
			reason: models.BlockOpenCase,
		},
		{
			name:   "completed on the target date",
			state:  worker("w", row("a", target, models.StatusCompleted, utc("2025-03-10T16:00:00Z"))),
			now:    now,
			reason: models.BlockDuplicateCompleted,
		},
		{
			name:   "pending not yet due on another date",
			state:  worker("w", row("a", "2025-03-09", models.StatusPending, utc("2025-03-11T00:00:00Z"))),
			now:    now,
			reason: models.BlockPendingNotDue,
		},
		{
			name:   "pending not yet due on the target date",
			state:  worker("w", row("a", target, models.StatusPending, utc("2025-03-10T20:00:00Z"))),
			now:    now,
			reason: models.BlockPendingNotDue,
		},
		{
			name:   "overdue before the next shift",
			state:  worker("w", row("a", target, models.StatusOverdue, utc("2025-03-10T16:00:00Z"))),
			now:    now,
			reason: models.BlockOverdueNotReassignable,
		},
		{
			name:   "expired pending on the target date counts as overdue",
			state:  worker("w", row("a", target, models.StatusPending, utc("2025-03-10T16:00:00Z"))),
			now:    now,
			reason: models.BlockOverdueNotReassignable,
		},
		{
			name:   "overdue after the next shift started",
			state:  worker("w", row("a", target, models.StatusOverdue, utc("2025-03-10T16:00:00Z"))),
			now:    nextShift.Add(time.Minute),
			reason: models.BlockDuplicateAssignment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := eligibilityRequest(tt.now, tt.state)
			req.Boundary = func(database.Assignment) time.Time { return nextShift }
			_, err := CheckEligibility(req)
			blocks := blocksOf(t, err)
			require.Len(t, blocks, 1)
			assert.Equal(t, "w", blocks[0].WorkerID)
			assert.Equal(t, tt.reason, blocks[0].Reason)
		})
	}
}

func TestCheckEligibility_Precedence(t *testing.T) {
	now := utc("2025-03-10T18:00:00Z")

	// open case outranks everything on the record
	w := worker("w",
		row("a1", target, models.StatusCompleted, utc("2025-03-10T16:00:00Z")),
		row("a2", "2025-03-11", models.StatusPending, utc("2025-03-11T16:00:00Z")),
	)
	w.OpenCase = true
	_, err := CheckEligibility(eligibilityRequest(now, w))
	assert.Equal(t, models.BlockOpenCase, blocksOf(t, err)[0].Reason)

	// completed outranks a pending assignment on another date
	w.OpenCase = false
	_, err = CheckEligibility(eligibilityRequest(now, w))
	blocks := blocksOf(t, err)
	assert.Equal(t, models.BlockDuplicateCompleted, blocks[0].Reason)
	assert.Equal(t, "a1", blocks[0].AssignmentID)
}

func TestCheckEligibility_AllOrNothing(t *testing.T) {
	now := utc("2025-03-10T09:00:00Z")
	got, err := CheckEligibility(eligibilityRequest(now,
		worker("w1"),
		WorkerState{WorkerID: "w2", Found: true, Team: "alpha", OpenCase: true},
		worker("w3"),
	))
	assert.Nil(t, got)
	blocks := blocksOf(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "w2", blocks[0].WorkerID)
}

func TestCheckEligibility_TeamMismatchRejectsFirst(t *testing.T) {
	now := utc("2025-03-10T09:00:00Z")
	req := eligibilityRequest(now,
		WorkerState{WorkerID: "w1", Found: true, Team: "alpha", OpenCase: true},
		WorkerState{WorkerID: "x1", Found: true, Team: "beta"},
		WorkerState{WorkerID: "ghost"},
	)
	req.Unselected = []WorkerState{{WorkerID: "x2", Found: true, Team: "beta"}}

	_, err := CheckEligibility(req)
	var eerr *EligibilityError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, map[models.BlockReason][]string{
		models.BlockTeamMismatch: {"x1", "ghost", "x2"},
	}, eerr.Reasons())
}

func TestCheckEligibility_SupersedesExpiredPending(t *testing.T) {
	now := utc("2025-03-10T09:00:00Z")
	stale := row("old", "2025-03-08", models.StatusPending, utc("2025-03-08T16:00:00Z"))

	got, err := CheckEligibility(eligibilityRequest(now, worker("w1", stale)))
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, got.Eligible)
	require.Len(t, got.Superseded, 1)
	assert.Equal(t, "old", got.Superseded[0].ID)
}

func TestCheckEligibility_IgnoresCancelled(t *testing.T) {
	now := utc("2025-03-10T09:00:00Z")
	got, err := CheckEligibility(eligibilityRequest(now,
		worker("w1", row("c", target, models.StatusCancelled, utc("2025-03-10T16:00:00Z"))),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, got.Eligible)
}

func TestEligibilityError_Message(t *testing.T) {
	err := &EligibilityError{Blocks: []Block{
		{WorkerID: "w2", Reason: models.BlockPendingNotDue},
		{WorkerID: "w1", Reason: models.BlockOpenCase},
	}}
	assert.Equal(t, "2 worker(s) not eligible: OPEN_CASE [w1]; PENDING_NOT_DUE [w2]", err.Error())
	assert.Equal(t, models.BlockPendingNotDue, err.Reason())
}
