package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/database"
	"github.com/arnavshah/readiness-api-go/pkg/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a looked-up row does not exist
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a write violates a unique index
var ErrDuplicate = errors.New("duplicate record")

// Store is the gorm-backed persistence layer
type Store struct {
	db *gorm.DB
}

// New wraps an open gorm connection
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

// InTx runs fn inside a transaction. Every call made through the Store passed
// to fn joins the transaction; returning an error rolls everything back.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(err.Error(), "UNIQUE constraint failed"),
		strings.Contains(err.Error(), "duplicate key"):
		return ErrDuplicate
	}
	return err
}

// --- users ---

// UsersByID returns the users among ids that exist
func (s *Store) UsersByID(ctx context.Context, ids []string) ([]database.User, error) {
	var users []database.User
	if len(ids) == 0 {
		return users, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

// User fetches one user
func (s *Store) User(ctx context.Context, id string) (*database.User, error) {
	var u database.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// UserByUsername fetches one user by login name
func (s *Store) UserByUsername(ctx context.Context, username string) (*database.User, error) {
	var u database.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// TeamWorkers lists the workers on a team
func (s *Store) TeamWorkers(ctx context.Context, team string) ([]database.User, error) {
	var users []database.User
	err := s.db.WithContext(ctx).
		Where("team = ? AND role = ?", team, models.RoleWorker).
		Order("id").
		Find(&users).Error
	return users, err
}

// CreateUser inserts a user
func (s *Store) CreateUser(ctx context.Context, u *database.User) error {
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

// CountUsers counts all accounts
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&database.User{}).Count(&count).Error
	return count, err
}

// --- shifts ---

// CurrentShift returns the supervisor's shift effective on date, or nil when none is configured
func (s *Store) CurrentShift(ctx context.Context, supervisorID, date string) (*database.Shift, error) {
	var sh database.Shift
	err := s.db.WithContext(ctx).
		Where("supervisor_id = ? AND effective_date <= ?", supervisorID, date).
		Where("(end_date IS NULL OR end_date >= ?)", date).
		Order("effective_date desc, id desc").
		First(&sh).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// --- submissions ---

// QualityOf returns the 0-100 quality score of a submission
func (s *Store) QualityOf(ctx context.Context, submissionID string) (float64, error) {
	var sub database.Submission
	if err := s.db.WithContext(ctx).Where("id = ?", submissionID).First(&sub).Error; err != nil {
		return 0, translate(err)
	}
	return sub.QualityScore, nil
}

// Submission fetches one submission
func (s *Store) Submission(ctx context.Context, id string) (*database.Submission, error) {
	var sub database.Submission
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

// SubmissionLinkedElsewhere reports whether an assignment other than
// assignmentID already references the submission
func (s *Store) SubmissionLinkedElsewhere(ctx context.Context, submissionID, assignmentID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&database.Assignment{}).
		Where("linked_submission_id = ? AND id <> ?", submissionID, assignmentID).
		Count(&n).Error
	return n > 0, err
}

// SubmissionTimes returns a worker's submission instants since the given time, oldest first
func (s *Store) SubmissionTimes(ctx context.Context, workerID string, since time.Time) ([]time.Time, error) {
	var subs []database.Submission
	err := s.db.WithContext(ctx).
		Where("worker_id = ? AND submitted_at >= ?", workerID, stamp(since)).
		Order("submitted_at asc").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub.SubmittedAt)
	}
	return out, nil
}
