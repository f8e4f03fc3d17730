package store

import (
	"context"
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/database"
	"github.com/arnavshah/readiness-api-go/pkg/models"
)

// Assignment fetches one assignment
func (s *Store) Assignment(ctx context.Context, id string) (*database.Assignment, error) {
	var a database.Assignment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// ActiveAssignmentsForWorkers returns every pending, completed or overdue
// assignment of the given workers, on any date
func (s *Store) ActiveAssignmentsForWorkers(ctx context.Context, workerIDs []string) ([]database.Assignment, error) {
	var out []database.Assignment
	if len(workerIDs) == 0 {
		return out, nil
	}
	err := s.db.WithContext(ctx).
		Where("worker_id IN ? AND status IN ?", workerIDs, models.ActiveStatuses).
		Order("assigned_date asc").
		Find(&out).Error
	return out, err
}

// CreateAssignment inserts one row; a uniqueness violation maps to ErrDuplicate
func (s *Store) CreateAssignment(ctx context.Context, a *database.Assignment) error {
	a.DueAt = stamp(a.DueAt)
	return translate(s.db.WithContext(ctx).Create(a).Error)
}

// ListAssignments returns assignments matching the filter, newest date first
func (s *Store) ListAssignments(ctx context.Context, f models.AssignmentFilter) ([]database.Assignment, error) {
	q := s.db.WithContext(ctx).Model(&database.Assignment{})
	if f.SupervisorID != "" {
		q = q.Where("supervisor_id = ?", f.SupervisorID)
	}
	if f.WorkerID != "" {
		q = q.Where("worker_id = ?", f.WorkerID)
	}
	if f.Team != "" {
		q = q.Where("team = ?", f.Team)
	}
	if f.Date != "" {
		q = q.Where("assigned_date = ?", f.Date)
	}
	if f.From != "" {
		q = q.Where("assigned_date >= ?", f.From)
	}
	if f.To != "" {
		q = q.Where("assigned_date <= ?", f.To)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var out []database.Assignment
	err := q.Order("assigned_date desc, worker_id asc").Find(&out).Error
	return out, err
}

// TodayAssignment returns the worker's non-cancelled assignment for date, or nil
func (s *Store) TodayAssignment(ctx context.Context, workerID, date string) (*database.Assignment, error) {
	var out []database.Assignment
	err := s.db.WithContext(ctx).
		Where("worker_id = ? AND assigned_date = ? AND status <> ?", workerID, date, models.StatusCancelled).
		Limit(1).
		Find(&out).Error
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

// LatestPending returns the worker's most recent pending assignment, or nil
func (s *Store) LatestPending(ctx context.Context, workerID string) (*database.Assignment, error) {
	var out []database.Assignment
	err := s.db.WithContext(ctx).
		Where("worker_id = ? AND status = ?", workerID, models.StatusPending).
		Order("assigned_date desc").
		Limit(1).
		Find(&out).Error
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

// The conditional updates below only touch rows that are still pending.
// RowsAffected == 0 means another writer got there first.

// CompleteIfPending moves a worker's pending assignment to completed
func (s *Store) CompleteIfPending(ctx context.Context, id, workerID string, submissionID *string, notes *string, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":               models.StatusCompleted,
		"completed_at":         stamp(at),
		"linked_submission_id": submissionID,
		"updated_at":           stamp(at),
	}
	if notes != nil {
		updates["notes"] = *notes
	}
	res := s.db.WithContext(ctx).Model(&database.Assignment{}).
		Where("id = ? AND worker_id = ? AND status = ?", id, workerID, models.StatusPending).
		Updates(updates)
	return res.RowsAffected == 1, translate(res.Error)
}

// CancelIfPending moves a pending assignment to cancelled
func (s *Store) CancelIfPending(ctx context.Context, id string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&database.Assignment{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]any{
			"status":     models.StatusCancelled,
			"updated_at": stamp(at),
		})
	return res.RowsAffected == 1, res.Error
}

// MarkOverdueIfPending moves a pending assignment whose deadline has passed to overdue
func (s *Store) MarkOverdueIfPending(ctx context.Context, id string, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&database.Assignment{}).
		Where("id = ? AND status = ? AND due_at < ?", id, models.StatusPending, stamp(now)).
		Updates(map[string]any{
			"status":     models.StatusOverdue,
			"updated_at": stamp(now),
		})
	return res.RowsAffected == 1, res.Error
}

// UpdateNotesIfPending rewrites the notes of a pending assignment
func (s *Store) UpdateNotesIfPending(ctx context.Context, id, notes string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&database.Assignment{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]any{
			"notes":      notes,
			"updated_at": stamp(at),
		})
	return res.RowsAffected == 1, res.Error
}

// ExpiredPendingIDs selects up to limit pending assignments with due_at < now
func (s *Store) ExpiredPendingIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&database.Assignment{}).
		Where("status = ? AND due_at < ?", models.StatusPending, stamp(now)).
		Order("due_at asc").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// AssignmentsInWindow returns non-cancelled assignments dated within [from, to].
// Either supervisorID or workerIDs (or both) narrow the result.
func (s *Store) AssignmentsInWindow(ctx context.Context, supervisorID string, workerIDs []string, from, to string) ([]database.Assignment, error) {
	q := s.db.WithContext(ctx).
		Where("assigned_date >= ? AND assigned_date <= ? AND status <> ?", from, to, models.StatusCancelled)
	if supervisorID != "" {
		q = q.Where("supervisor_id = ?", supervisorID)
	}
	if workerIDs != nil {
		q = q.Where("worker_id IN ?", workerIDs)
	}
	var out []database.Assignment
	err := q.Order("worker_id asc, assigned_date asc").Find(&out).Error
	return out, err
}

// StatusCount is one row of a grouped status count
type StatusCount struct {
	Status models.Status
	Count  int64
}

// CountByStatus counts a supervisor's assignments per status over [from, to]
func (s *Store) CountByStatus(ctx context.Context, supervisorID, from, to string) (map[models.Status]int64, error) {
	var rows []StatusCount
	err := s.db.WithContext(ctx).Model(&database.Assignment{}).
		Select("status, count(*) as count").
		Where("supervisor_id = ? AND assigned_date >= ? AND assigned_date <= ?", supervisorID, from, to).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.Status]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
