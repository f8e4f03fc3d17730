package store

import (
	"context"
	"testing"
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/database"
	"github.com/arnavshah/readiness-api-go/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(database.Options{DataPath: ":memory:", Silent: true})
	require.NoError(t, err)
	return New(db)
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func pending(id, workerID, date string, due time.Time) *database.Assignment {
	return &database.Assignment{
		ID: id, WorkerID: workerID, SupervisorID: "lead", Team: "alpha",
		AssignedDate: date, DueAt: due, Status: models.StatusPending,
	}
}

func TestCreateAssignment_OnePerWorkerPerDate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	due := at("2025-03-10T16:00:00Z")

	require.NoError(t, s.CreateAssignment(ctx, pending("a1", "w1", "2025-03-10", due)))
	assert.ErrorIs(t, s.CreateAssignment(ctx, pending("a2", "w1", "2025-03-10", due)), ErrDuplicate)
	require.NoError(t, s.CreateAssignment(ctx, pending("a3", "w2", "2025-03-10", due)))
	require.NoError(t, s.CreateAssignment(ctx, pending("a4", "w1", "2025-03-11", due)))

	// cancelled rows do not hold the date
	ok, err := s.CancelIfPending(ctx, "a1", due)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.CreateAssignment(ctx, pending("a5", "w1", "2025-03-10", due)))
}

func TestConditionalUpdates(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	due := at("2025-03-10T10:00:00Z")
	require.NoError(t, s.CreateAssignment(ctx, pending("a1", "w1", "2025-03-10", due)))

	// not yet due
	ok, err := s.MarkOverdueIfPending(ctx, "a1", at("2025-03-10T09:59:59Z"))
	require.NoError(t, err)
	assert.False(t, ok)

	// due_at itself is still on time
	ok, err = s.MarkOverdueIfPending(ctx, "a1", due)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.MarkOverdueIfPending(ctx, "a1", at("2025-03-10T10:00:01Z"))
	require.NoError(t, err)
	assert.True(t, ok)

	// the loser of a race sees zero rows affected, not an error
	ok, err = s.CompleteIfPending(ctx, "a1", "w1", nil, nil, at("2025-03-10T10:00:02Z"))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.MarkOverdueIfPending(ctx, "a1", at("2025-03-10T10:00:03Z"))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.CancelIfPending(ctx, "a1", at("2025-03-10T10:00:03Z"))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.UpdateNotesIfPending(ctx, "a1", "late", at("2025-03-10T10:00:03Z"))
	require.NoError(t, err)
	assert.False(t, ok)

	a, err := s.Assignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOverdue, a.Status)
	assert.Nil(t, a.CompletedAt)
	assert.Empty(t, a.Notes)
}

func TestCompleteIfPending_ChecksWorker(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAssignment(ctx, pending("a1", "w1", "2025-03-10", at("2025-03-10T16:00:00Z"))))

	ok, err := s.CompleteIfPending(ctx, "a1", "w2", nil, nil, at("2025-03-10T12:00:00Z"))
	require.NoError(t, err)
	assert.False(t, ok)

	sub := "sub-9"
	ok, err = s.CompleteIfPending(ctx, "a1", "w1", &sub, nil, at("2025-03-10T12:00:00Z"))
	require.NoError(t, err)
	assert.True(t, ok)

	a, err := s.Assignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, a.Status)
	require.NotNil(t, a.LinkedSubmissionID)
	assert.Equal(t, "sub-9", *a.LinkedSubmissionID)
	assert.True(t, at("2025-03-10T12:00:00Z").Equal(*a.CompletedAt))
}

func TestExpiredPendingIDs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAssignment(ctx, pending("late2", "w1", "2025-03-09", at("2025-03-09T16:00:00Z"))))
	require.NoError(t, s.CreateAssignment(ctx, pending("late1", "w2", "2025-03-08", at("2025-03-08T16:00:00Z"))))
	require.NoError(t, s.CreateAssignment(ctx, pending("fresh", "w3", "2025-03-10", at("2025-03-10T16:00:00Z"))))

	ids, err := s.ExpiredPendingIDs(ctx, at("2025-03-10T09:00:00Z"), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"late1", "late2"}, ids)

	ids, err = s.ExpiredPendingIDs(ctx, at("2025-03-10T09:00:00Z"), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"late1"}, ids)
}

func TestCurrentShift(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	end := "2025-02-28"
	require.NoError(t, s.DB().Create(&database.Shift{SupervisorID: "lead", StartTime: "06:00", EndTime: "14:00", EffectiveDate: "2025-01-01", EndDate: &end}).Error)
	require.NoError(t, s.DB().Create(&database.Shift{SupervisorID: "lead", StartTime: "22:00", EndTime: "06:00", EffectiveDate: "2025-03-01"}).Error)

	sh, err := s.CurrentShift(ctx, "lead", "2025-02-15")
	require.NoError(t, err)
	require.NotNil(t, sh)
	assert.Equal(t, "06:00", sh.StartTime)

	sh, err = s.CurrentShift(ctx, "lead", "2025-03-10")
	require.NoError(t, err)
	require.NotNil(t, sh)
	assert.Equal(t, "22:00", sh.StartTime)

	sh, err = s.CurrentShift(ctx, "lead", "2024-12-31")
	require.NoError(t, err)
	assert.Nil(t, sh)

	sh, err = s.CurrentShift(ctx, "other", "2025-03-10")
	require.NoError(t, err)
	assert.Nil(t, sh)
}

func TestInTx_RollsBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	due := at("2025-03-10T16:00:00Z")

	err := s.InTx(ctx, func(tx *Store) error {
		if err := tx.CreateAssignment(ctx, pending("a1", "w1", "2025-03-10", due)); err != nil {
			return err
		}
		return tx.CreateAssignment(ctx, pending("a2", "w1", "2025-03-10", due))
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.Assignment(ctx, "a1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountByStatusAndWindow(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	due := at("2025-03-10T16:00:00Z")
	require.NoError(t, s.CreateAssignment(ctx, pending("a1", "w1", "2025-03-01", due)))
	require.NoError(t, s.CreateAssignment(ctx, pending("a2", "w2", "2025-03-15", due)))
	require.NoError(t, s.CreateAssignment(ctx, pending("a3", "w3", "2025-03-31", due)))
	require.NoError(t, s.CreateAssignment(ctx, pending("a4", "w1", "2025-04-01", due)))
	_, err := s.CancelIfPending(ctx, "a2", due)
	require.NoError(t, err)
	_, err = s.CompleteIfPending(ctx, "a3", "w3", nil, nil, due)
	require.NoError(t, err)

	counts, err := s.CountByStatus(ctx, "lead", "2025-03-01", "2025-03-31")
	require.NoError(t, err)
	assert.Equal(t, map[models.Status]int64{
		models.StatusPending:   1,
		models.StatusCancelled: 1,
		models.StatusCompleted: 1,
	}, counts)

	rows, err := s.AssignmentsInWindow(ctx, "lead", nil, "2025-03-01", "2025-03-31")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a1", rows[0].ID)
	assert.Equal(t, "a3", rows[1].ID)

	rows, err = s.AssignmentsInWindow(ctx, "", []string{"w1"}, "2025-03-01", "2025-04-30")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCloseCase_Once(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	c := &database.UnselectedCase{
		ID: "c1", WorkerID: "w1", SupervisorID: "lead", AssignedDate: "2025-03-10",
		Reason: models.ReasonInjured, CaseStatus: models.CaseOpen,
	}
	require.NoError(t, s.CreateCase(ctx, c))

	open, err := s.OpenCasesForWorkers(ctx, "lead", []string{"w1", "w2"})
	require.NoError(t, err)
	assert.Len(t, open, 1)

	ok, err := s.CloseCase(ctx, c, "lead", "cleared", at("2025-03-11T09:00:00Z"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CloseCase(ctx, c, "lead", "again", at("2025-03-11T10:00:00Z"))
	require.NoError(t, err)
	assert.False(t, ok)

	open, err = s.OpenCasesForWorkers(ctx, "lead", []string{"w1"})
	require.NoError(t, err)
	assert.Empty(t, open)

	var archived int64
	require.NoError(t, s.DB().Model(&database.ClosedCase{}).Count(&archived).Error)
	assert.Equal(t, int64(1), archived)
}

func TestRecordSweep_Upserts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordSweep(ctx, "2025-03-10", 3))
	require.NoError(t, s.RecordSweep(ctx, "2025-03-10", 0))
	require.NoError(t, s.RecordSweep(ctx, "2025-03-11", 2))

	stats, err := s.SweepStats(ctx, 30)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "2025-03-11", stats[0].Date)
	assert.Equal(t, 1, stats[0].Runs)
	assert.Equal(t, "2025-03-10", stats[1].Date)
	assert.Equal(t, 2, stats[1].Runs)
	assert.Equal(t, 3, stats[1].Transitioned)
}

func TestUsers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, u := range []database.User{
		{ID: "w1", Username: "ana", Role: models.RoleWorker, Team: "alpha"},
		{ID: "w2", Username: "ben", Role: models.RoleWorker, Team: "beta"},
		{ID: "l1", Username: "cal", Role: models.RoleTeamLeader, Team: "alpha"},
	} {
		u.PasswordHash = "hash"
		require.NoError(t, s.CreateUser(ctx, &u))
	}

	dup := database.User{ID: "w3", Username: "ana", PasswordHash: "hash", Role: models.RoleWorker}
	assert.ErrorIs(t, s.CreateUser(ctx, &dup), ErrDuplicate)

	team, err := s.TeamWorkers(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, team, 1)
	assert.Equal(t, "w1", team[0].ID)

	u, err := s.UserByUsername(ctx, "cal")
	require.NoError(t, err)
	assert.Equal(t, "l1", u.ID)

	_, err = s.User(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestSubmissions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.DB().Create(&[]database.Submission{
		{ID: "s1", WorkerID: "w1", SubmittedAt: at("2025-03-01T08:00:00Z"), QualityScore: 70},
		{ID: "s2", WorkerID: "w1", SubmittedAt: at("2025-03-05T08:00:00Z"), QualityScore: 90},
		{ID: "s3", WorkerID: "w2", SubmittedAt: at("2025-03-05T08:00:00Z"), QualityScore: 50},
	}).Error)

	q, err := s.QualityOf(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 90.0, q)

	_, err = s.QualityOf(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	times, err := s.SubmissionTimes(ctx, "w1", at("2025-03-02T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, times, 1)
	assert.True(t, at("2025-03-05T08:00:00Z").Equal(times[0]))
}

func TestSubmissionLinkedElsewhere(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.DB().Create(&database.Submission{ID: "s1", WorkerID: "w1", SubmittedAt: at("2025-03-10T08:00:00Z")}).Error)
	require.NoError(t, s.CreateAssignment(ctx, pending("a1", "w1", "2025-03-10", at("2025-03-10T16:00:00Z"))))
	require.NoError(t, s.CreateAssignment(ctx, pending("a2", "w1", "2025-03-11", at("2025-03-11T16:00:00Z"))))

	sub, err := s.Submission(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "w1", sub.WorkerID)
	_, err = s.Submission(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	linked, err := s.SubmissionLinkedElsewhere(ctx, "s1", "a2")
	require.NoError(t, err)
	assert.False(t, linked)

	id := "s1"
	ok, err := s.CompleteIfPending(ctx, "a1", "w1", &id, nil, at("2025-03-10T12:00:00Z"))
	require.NoError(t, err)
	require.True(t, ok)

	linked, err = s.SubmissionLinkedElsewhere(ctx, "s1", "a2")
	require.NoError(t, err)
	assert.True(t, linked)
	linked, err = s.SubmissionLinkedElsewhere(ctx, "s1", "a1")
	require.NoError(t, err)
	assert.False(t, linked)

	// the index holds even if the check is skipped
	_, err = s.CompleteIfPending(ctx, "a2", "w1", &id, nil, at("2025-03-11T12:00:00Z"))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestWorkersWithOpenCases(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	for _, c := range []database.UnselectedCase{
		{ID: "c1", WorkerID: "w1", SupervisorID: "lead", AssignedDate: "2025-03-10", Reason: models.ReasonSick, CaseStatus: models.CaseOpen},
		{ID: "c2", WorkerID: "w1", SupervisorID: "lead2", AssignedDate: "2025-03-10", Reason: models.ReasonSick, CaseStatus: models.CaseOpen},
		{ID: "c3", WorkerID: "w2", SupervisorID: "lead2", AssignedDate: "2025-03-10", Reason: models.ReasonSick, CaseStatus: models.CaseOpen},
		{ID: "c4", WorkerID: "w3", SupervisorID: "lead", AssignedDate: "2025-03-10", Reason: models.ReasonSick, CaseStatus: models.CaseClosed},
	} {
		require.NoError(t, s.CreateCase(ctx, &c))
	}

	ids, err := s.WorkersWithOpenCases(ctx, []string{"w1", "w2", "w3", "w4"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"w1", "w2"}, ids)

	// the per-supervisor lookup still only sees its own cases
	own, err := s.OpenCasesForWorkers(ctx, "lead", []string{"w1", "w2"})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "c1", own[0].ID)
}
