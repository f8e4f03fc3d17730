package models

import "time"

// Status is the lifecycle state of an assignment
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// ActiveStatuses are the statuses that count toward the one-per-worker-per-date rule
var ActiveStatuses = []Status{StatusPending, StatusCompleted, StatusOverdue}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusOverdue || s == StatusCancelled
}

// Role is the caller's role for authorization
type Role string

const (
	RoleWorker     Role = "worker"
	RoleTeamLeader Role = "team_leader"
	RoleAdmin      Role = "admin"
	// RoleService is held by HMAC service keys (cron callers)
	RoleService Role = "service"
	// RoleSystem is the in-process sweeper
	RoleSystem Role = "system"
)

// Valid reports whether r can be stored on a user account
func (r Role) Valid() bool {
	return r == RoleWorker || r == RoleTeamLeader || r == RoleAdmin
}

// Actor identifies who is driving an operation
type Actor struct {
	UserID string
	Role   Role
	Team   string
}

// UnselectedReason is why a worker was left out of a batch
type UnselectedReason string

const (
	ReasonSick        UnselectedReason = "sick"
	ReasonOnLeave     UnselectedReason = "on_leave"
	ReasonTransferred UnselectedReason = "transferred"
	ReasonInjured     UnselectedReason = "injured"
	ReasonNotRostered UnselectedReason = "not_rostered"
)

// Valid reports whether r is part of the closed reason set
func (r UnselectedReason) Valid() bool {
	switch r {
	case ReasonSick, ReasonOnLeave, ReasonTransferred, ReasonInjured, ReasonNotRostered:
		return true
	}
	return false
}

// CaseStatus is the state of an unselected case
type CaseStatus string

const (
	CaseOpen   CaseStatus = "open"
	CaseClosed CaseStatus = "closed"
)

// BlockReason is the machine-readable code for an eligibility rejection
type BlockReason string

const (
	BlockTeamMismatch           BlockReason = "TEAM_MISMATCH"
	BlockOpenCase               BlockReason = "OPEN_CASE"
	BlockDuplicateCompleted     BlockReason = "DUPLICATE_COMPLETED"
	BlockPendingNotDue          BlockReason = "PENDING_NOT_DUE"
	BlockOverdueNotReassignable BlockReason = "OVERDUE_NOT_REASSIGNABLE"
	BlockDuplicateAssignment    BlockReason = "DUPLICATE_ASSIGNMENT"
)

// Provenance tags which path produced a deadline
type Provenance string

const (
	ProvenanceManual     Provenance = "manual"
	ProvenanceShiftBased Provenance = "shift-based"
	ProvenanceFallback   Provenance = "fallback"
)

// FallbackReason records why the 24h fallback was used
type FallbackReason string

const (
	FallbackNone              FallbackReason = ""
	FallbackNoShift           FallbackReason = "NoShift"
	FallbackShiftFetchFailed  FallbackReason = "ShiftFetchFailed"
	FallbackInvalidShiftTimes FallbackReason = "InvalidShiftTimes"
)

// Deadline is a computed due instant plus how it was derived
type Deadline struct {
	DueAt          time.Time      `json:"due_at"`
	Provenance     Provenance     `json:"provenance"`
	FallbackReason FallbackReason `json:"fallback_reason,omitempty"`
}
