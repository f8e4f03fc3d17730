package store

import (
	"context"
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/database"
	"github.com/arnavshah/readiness-api-go/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OpenCasesForWorkers returns open unselected cases of the workers with this supervisor
func (s *Store) OpenCasesForWorkers(ctx context.Context, supervisorID string, workerIDs []string) ([]database.UnselectedCase, error) {
	var out []database.UnselectedCase
	if len(workerIDs) == 0 {
		return out, nil
	}
	err := s.db.WithContext(ctx).
		Where("supervisor_id = ? AND worker_id IN ? AND case_status = ?", supervisorID, workerIDs, models.CaseOpen).
		Find(&out).Error
	return out, err
}

// WorkersWithOpenCases returns the subset of workerIDs that have an open
// unselected case raised by any supervisor
func (s *Store) WorkersWithOpenCases(ctx context.Context, workerIDs []string) ([]string, error) {
	var out []string
	if len(workerIDs) == 0 {
		return out, nil
	}
	err := s.db.WithContext(ctx).Model(&database.UnselectedCase{}).
		Where("worker_id IN ? AND case_status = ?", workerIDs, models.CaseOpen).
		Distinct().Pluck("worker_id", &out).Error
	return out, err
}

// CreateCase inserts an unselected case
func (s *Store) CreateCase(ctx context.Context, c *database.UnselectedCase) error {
	return translate(s.db.WithContext(ctx).Create(c).Error)
}

// Case fetches one unselected case
func (s *Store) Case(ctx context.Context, id string) (*database.UnselectedCase, error) {
	var c database.UnselectedCase
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// ListCases lists a supervisor's cases; an empty supervisorID lists all
func (s *Store) ListCases(ctx context.Context, supervisorID string, status models.CaseStatus) ([]database.UnselectedCase, error) {
	q := s.db.WithContext(ctx).Model(&database.UnselectedCase{})
	if supervisorID != "" {
		q = q.Where("supervisor_id = ?", supervisorID)
	}
	if status != "" {
		q = q.Where("case_status = ?", status)
	}
	var out []database.UnselectedCase
	err := q.Order("assigned_date desc").Find(&out).Error
	return out, err
}

// CloseCase closes an open case and archives it. Returns false when the case was not open.
func (s *Store) CloseCase(ctx context.Context, c *database.UnselectedCase, closedBy, notes string, at time.Time) (bool, error) {
	closed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&database.UnselectedCase{}).
			Where("id = ? AND case_status = ?", c.ID, models.CaseOpen).
			Updates(map[string]any{
				"case_status": models.CaseClosed,
				"updated_at":  stamp(at),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		closed = true
		return tx.Create(&database.ClosedCase{
			CaseID:       c.ID,
			WorkerID:     c.WorkerID,
			SupervisorID: c.SupervisorID,
			AssignedDate: c.AssignedDate,
			Reason:       c.Reason,
			ClosedBy:     closedBy,
			ClosedAt:     stamp(at),
			Notes:        notes,
		}).Error
	})
	return closed, translate(err)
}

// RecordSweep bumps today's sweep counters with a single-query upsert
func (s *Store) RecordSweep(ctx context.Context, date string, transitioned int) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"runs":         gorm.Expr("runs + ?", 1),
			"transitioned": gorm.Expr("transitioned + ?", transitioned),
		}),
	}).Create(&database.SweepStat{
		Date:         date,
		Runs:         1,
		Transitioned: transitioned,
	}).Error
}

// SweepStats returns the most recent daily sweep counters
func (s *Store) SweepStats(ctx context.Context, limit int) ([]database.SweepStat, error) {
	var out []database.SweepStat
	err := s.db.WithContext(ctx).Order("date desc").Limit(limit).Find(&out).Error
	return out, err
}
