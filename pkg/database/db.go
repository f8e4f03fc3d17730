package database

import (
	"fmt"
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Assignment represents the assignments table. At most one non-cancelled row
// may exist per (worker_id, assigned_date).
type Assignment struct {
	ID                 string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	WorkerID           string        `gorm:"type:varchar(36);not null;uniqueIndex:idx_assignments_worker_date,where:status <> 'cancelled';index:idx_assignments_worker_status" json:"worker_id"`
	SupervisorID       string        `gorm:"type:varchar(36);not null;index" json:"supervisor_id"`
	Team               string        `gorm:"not null;index" json:"team"`
	AssignedDate       string        `gorm:"type:varchar(10);not null;uniqueIndex:idx_assignments_worker_date,where:status <> 'cancelled';index" json:"assigned_date"`
	DueAt              time.Time     `gorm:"not null;index:idx_assignments_status_due" json:"due_at"`
	Status             models.Status `gorm:"type:varchar(16);not null;default:'pending';index:idx_assignments_status_due;index:idx_assignments_worker_status" json:"status"`
	CompletedAt        *time.Time    `json:"completed_at"`
	LinkedSubmissionID *string       `gorm:"type:varchar(36);uniqueIndex" json:"linked_submission_id"`
	DeadlineSource     string        `gorm:"type:varchar(16)" json:"deadline_source"`
	Notes              string        `json:"notes"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// UnselectedCase represents the unselected_cases table
type UnselectedCase struct {
	ID           string                  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	WorkerID     string                  `gorm:"type:varchar(36);not null;index:idx_cases_worker_status" json:"worker_id"`
	SupervisorID string                  `gorm:"type:varchar(36);not null;index" json:"supervisor_id"`
	AssignedDate string                  `gorm:"type:varchar(10);not null" json:"assigned_date"`
	Reason       models.UnselectedReason `gorm:"type:varchar(20);not null" json:"reason"`
	CaseStatus   models.CaseStatus       `gorm:"type:varchar(10);not null;default:'open';index:idx_cases_worker_status" json:"case_status"`
	Notes        string                  `json:"notes"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

// ClosedCase is the archive row written when an unselected case is closed
type ClosedCase struct {
	ID           uint                    `gorm:"primaryKey" json:"id"`
	CaseID       string                  `gorm:"type:varchar(36);uniqueIndex;not null" json:"case_id"`
	WorkerID     string                  `gorm:"type:varchar(36);not null;index" json:"worker_id"`
	SupervisorID string                  `gorm:"type:varchar(36);not null" json:"supervisor_id"`
	AssignedDate string                  `gorm:"type:varchar(10);not null" json:"assigned_date"`
	Reason       models.UnselectedReason `gorm:"type:varchar(20);not null" json:"reason"`
	ClosedBy     string                  `gorm:"type:varchar(36);not null" json:"closed_by"`
	ClosedAt     time.Time               `gorm:"not null" json:"closed_at"`
	Notes        string                  `json:"notes"`
}

// Shift represents a supervisor's shift. Owned by the rostering system; read-only here.
type Shift struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	SupervisorID  string  `gorm:"type:varchar(36);not null;index" json:"supervisor_id"`
	StartTime     string  `gorm:"type:varchar(8);not null" json:"start_time"`
	EndTime       string  `gorm:"type:varchar(8);not null" json:"end_time"`
	Timezone      string  `json:"timezone"`
	EffectiveDate string  `gorm:"type:varchar(10);not null" json:"effective_date"`
	EndDate       *string `gorm:"type:varchar(10)" json:"end_date"`
}

// Submission is a worker's attestation. Written by the attestation service; read-only here.
type Submission struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	WorkerID     string    `gorm:"type:varchar(36);not null;index" json:"worker_id"`
	SubmittedAt  time.Time `gorm:"not null" json:"submitted_at"`
	QualityScore float64   `gorm:"not null;default:0" json:"quality_score"`
}

// User represents the users table
type User struct {
	ID           string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username     string      `gorm:"unique;not null" json:"username"`
	PasswordHash string      `gorm:"not null" json:"-"`
	Role         models.Role `gorm:"type:varchar(16);not null" json:"role"`
	Team         string      `gorm:"index" json:"team"`
	DisplayName  string      `json:"display_name"`
	CreatedAt    time.Time   `json:"created_at"`
}

// SweepStat represents the sweep_stats table, one row per day
type SweepStat struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Date         string `gorm:"uniqueIndex;not null" json:"date"`
	Runs         int    `gorm:"default:0" json:"runs"`
	Transitioned int    `gorm:"default:0" json:"transitioned"`
}

// Options selects and tunes the backing database
type Options struct {
	DatabaseURL string
	DataPath    string
	Silent      bool
}

// Open connects to postgres when DatabaseURL is set, sqlite otherwise, and migrates the schema
func Open(opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true}
	if opts.Silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	var db *gorm.DB
	var err error
	if opts.DatabaseURL != "" {
		cfg.PrepareStmt = false
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  opts.DatabaseURL,
			PreferSimpleProtocol: true,
		}), cfg)
	} else {
		dbPath := opts.DataPath
		if dbPath == "" {
			dbPath = "readiness.db"
		}
		db, err = gorm.Open(sqlite.Open(dbPath), cfg)
		if err == nil {
			// sqlite serialises writers; a single connection also keeps :memory: databases intact
			sqlDB, derr := db.DB()
			if derr != nil {
				return nil, derr
			}
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table this service reads or writes
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&User{},
		&Shift{},
		&Submission{},
		&Assignment{},
		&UnselectedCase{},
		&ClosedCase{},
		&SweepStat{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
