package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/database"
	"github.com/arnavshah/readiness-api-go/pkg/metrics"
	"github.com/arnavshah/readiness-api-go/pkg/models"
	"github.com/arnavshah/readiness-api-go/pkg/notify"
	"github.com/arnavshah/readiness-api-go/pkg/store"
	"github.com/google/uuid"
)

// Options wires a Service
type Options struct {
	Store *store.Store
	// Shifts defaults to Store
	Shifts             ShiftRegistry
	Notifier           notify.Dispatcher
	Metrics            *metrics.Collector
	Logger             *slog.Logger
	Location           *time.Location
	ShiftLookupTimeout time.Duration
	Now                func() time.Time
}

// Service runs the assignment lifecycle
type Service struct {
	store     *store.Store
	deadlines *Calculator
	sweeper   *Sweeper
	notifier  notify.Dispatcher
	metrics   *metrics.Collector
	logger    *slog.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewService creates a Service from opts
func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	shifts := opts.Shifts
	if shifts == nil {
		shifts = opts.Store
	}
	return &Service{
		store:     opts.Store,
		deadlines: NewCalculator(shifts, opts.ShiftLookupTimeout, opts.Location, opts.Logger, opts.Metrics),
		sweeper:   NewSweeper(opts.Store, opts.Metrics, opts.Logger, opts.Now, opts.Location),
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		loc:       opts.Location,
		now:       opts.Now,
	}
}

// Sweeper returns the service's overdue sweeper
func (s *Service) Sweeper() *Sweeper {
	return s.sweeper
}

// Location is the zone used for calendar dates
func (s *Service) Location() *time.Location {
	return s.loc
}

// CreateResult is returned by a successful batch
type CreateResult struct {
	Assignments     []database.Assignment     `json:"assignments"`
	Deadline        models.Deadline           `json:"deadline"`
	Superseded      []string                  `json:"superseded,omitempty"`
	UnselectedCases []database.UnselectedCase `json:"unselected_cases,omitempty"`
}

// batchPlan is everything a batch needs that is computed outside the transaction
type batchPlan struct {
	supervisorID  string
	deadline      models.Deadline
	now           time.Time
	boundary      BoundaryFunc
	unselectedIDs []string
}

func (s *Service) plan(ctx context.Context, actor models.Actor, in models.CreateAssignmentsInput) (*batchPlan, error) {
	supervisorID, err := s.batchSupervisor(actor, in)
	if err != nil {
		return nil, err
	}
	override, err := validateBatch(in)
	if err != nil {
		return nil, err
	}

	supervisor, err := s.store.User(ctx, supervisorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalid("supervisor_id", "unknown supervisor %s", supervisorID)
	}
	if err != nil {
		return nil, err
	}
	if supervisor.Role != models.RoleTeamLeader {
		return nil, invalid("supervisor_id", "user %s is not a team leader", supervisorID)
	}
	if supervisor.Team != in.Team {
		return nil, fmt.Errorf("%w: supervisor does not lead team %q", ErrForbidden, in.Team)
	}

	now := s.now()
	// shift lookups happen before the transaction so a slow registry never holds it open
	deadline, err := s.deadlines.Deadline(ctx, supervisorID, in.AssignedDate, override, now)
	if err != nil {
		return nil, err
	}
	nextShift, hasNextShift := s.deadlines.NextShiftStart(ctx, supervisorID, in.AssignedDate)

	p := &batchPlan{
		supervisorID: supervisorID,
		deadline:     deadline,
		now:          now,
		boundary: func(a database.Assignment) time.Time {
			if hasNextShift {
				return nextShift
			}
			return a.DueAt
		},
	}
	for _, u := range in.UnselectedWorkers {
		p.unselectedIDs = append(p.unselectedIDs, u.WorkerID)
	}
	return p, nil
}

func (s *Service) check(ctx context.Context, st *store.Store, p *batchPlan, in models.CreateAssignmentsInput) (*Eligibility, error) {
	req, err := s.loadStates(ctx, st, in, p.unselectedIDs)
	if err != nil {
		return nil, err
	}
	req.Now = p.now
	req.Boundary = p.boundary
	return CheckEligibility(*req)
}

// Preview is a dry run of CreateBatch
type Preview struct {
	Valid      bool            `json:"valid"`
	Deadline   models.Deadline `json:"deadline"`
	Eligible   []string        `json:"eligible"`
	Superseded []string        `json:"superseded,omitempty"`
}

// PreviewBatch runs every check CreateBatch runs without writing anything
func (s *Service) PreviewBatch(ctx context.Context, actor models.Actor, in models.CreateAssignmentsInput) (*Preview, error) {
	p, err := s.plan(ctx, actor, in)
	if err != nil {
		return nil, err
	}
	elig, err := s.check(ctx, s.store, p, in)
	if err != nil {
		return nil, err
	}
	out := &Preview{Valid: true, Deadline: p.deadline, Eligible: elig.Eligible}
	for _, a := range elig.Superseded {
		out.Superseded = append(out.Superseded, a.ID)
	}
	return out, nil
}

// CreateBatch creates one assignment per worker, all or nothing
func (s *Service) CreateBatch(ctx context.Context, actor models.Actor, in models.CreateAssignmentsInput) (*CreateResult, error) {
	p, err := s.plan(ctx, actor, in)
	if err != nil {
		return nil, err
	}
	supervisorID, deadline := p.supervisorID, p.deadline

	result := &CreateResult{Deadline: deadline}
	err = s.store.InTx(ctx, func(tx *store.Store) error {
		elig, err := s.check(ctx, tx, p, in)
		if err != nil {
			return err
		}

		// superseded rows stay pending; only the sweeper moves them to overdue
		for _, prior := range elig.Superseded {
			result.Superseded = append(result.Superseded, prior.ID)
		}

		for _, workerID := range elig.Eligible {
			a := database.Assignment{
				ID:             uuid.NewString(),
				WorkerID:       workerID,
				SupervisorID:   supervisorID,
				Team:           in.Team,
				AssignedDate:   in.AssignedDate,
				DueAt:          deadline.DueAt,
				Status:         models.StatusPending,
				DeadlineSource: string(deadline.Provenance),
				Notes:          in.Notes,
			}
			if err := tx.CreateAssignment(ctx, &a); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return &EligibilityError{Blocks: []Block{{WorkerID: workerID, Reason: models.BlockDuplicateAssignment}}}
				}
				return err
			}
			result.Assignments = append(result.Assignments, a)
		}

		open, err := tx.OpenCasesForWorkers(ctx, supervisorID, p.unselectedIDs)
		if err != nil {
			return err
		}
		hasOpen := make(map[string]bool, len(open))
		for _, c := range open {
			hasOpen[c.WorkerID] = true
		}
		for _, u := range in.UnselectedWorkers {
			if hasOpen[u.WorkerID] {
				continue
			}
			c := database.UnselectedCase{
				ID:           uuid.NewString(),
				WorkerID:     u.WorkerID,
				SupervisorID: supervisorID,
				AssignedDate: in.AssignedDate,
				Reason:       u.Reason,
				CaseStatus:   models.CaseOpen,
				Notes:        u.Notes,
			}
			if err := tx.CreateCase(ctx, &c); err != nil {
				return err
			}
			result.UnselectedCases = append(result.UnselectedCases, c)
		}
		return nil
	})

	var eligErr *EligibilityError
	if errors.As(err, &eligErr) {
		for _, b := range eligErr.Blocks {
			s.metrics.EligibilityBlocked(string(b.Reason))
		}
		s.logger.Info("batch rejected", "supervisor_id", supervisorID, "assigned_date", in.AssignedDate, "reasons", eligErr.Reasons())
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.metrics.AssignmentsCreated(len(result.Assignments))
	s.logger.Info("batch created",
		"supervisor_id", supervisorID,
		"assigned_date", in.AssignedDate,
		"count", len(result.Assignments),
		"deadline_source", deadline.Provenance)
	for _, a := range result.Assignments {
		notify.Fire(s.notifier, notify.Assigned{WorkerID: a.WorkerID, AssignmentID: a.ID, DueAt: a.DueAt}, s.logger, s.metrics.NotifyFailed)
	}
	return result, nil
}

func (s *Service) batchSupervisor(actor models.Actor, in models.CreateAssignmentsInput) (string, error) {
	switch actor.Role {
	case models.RoleTeamLeader:
		if in.SupervisorID != "" && in.SupervisorID != actor.UserID {
			return "", fmt.Errorf("%w: team leaders create batches for themselves", ErrForbidden)
		}
		return actor.UserID, nil
	case models.RoleAdmin:
		if in.SupervisorID == "" {
			return "", invalid("supervisor_id", "required when an administrator creates a batch")
		}
		return in.SupervisorID, nil
	}
	return "", fmt.Errorf("%w: only supervisors and administrators create assignments", ErrForbidden)
}

func validateBatch(in models.CreateAssignmentsInput) (*models.TimeOfDay, error) {
	if len(in.WorkerIDs) == 0 {
		return nil, invalid("worker_ids", "at least one worker is required")
	}
	if strings.TrimSpace(in.Team) == "" {
		return nil, invalid("team", "required")
	}
	if _, err := models.ParseDate(in.AssignedDate); err != nil {
		return nil, invalid("assigned_date", "%v", err)
	}

	seen := make(map[string]bool, len(in.WorkerIDs)+len(in.UnselectedWorkers))
	for _, id := range in.WorkerIDs {
		if strings.TrimSpace(id) == "" {
			return nil, invalid("worker_ids", "empty worker id")
		}
		if seen[id] {
			return nil, invalid("worker_ids", "duplicate worker id %s", id)
		}
		seen[id] = true
	}
	for _, u := range in.UnselectedWorkers {
		if strings.TrimSpace(u.WorkerID) == "" {
			return nil, invalid("unselected_workers", "empty worker id")
		}
		if seen[u.WorkerID] {
			return nil, invalid("unselected_workers", "worker %s is listed twice", u.WorkerID)
		}
		if !u.Reason.Valid() {
			return nil, invalid("unselected_workers", "unknown reason %q for worker %s", u.Reason, u.WorkerID)
		}
		seen[u.WorkerID] = true
	}

	if in.DueTime == "" {
		return nil, nil
	}
	tod, err := models.ParseTimeOfDay(in.DueTime)
	if err != nil {
		return nil, invalid("due_time", "%v", err)
	}
	return &tod, nil
}

func (s *Service) loadStates(ctx context.Context, tx *store.Store, in models.CreateAssignmentsInput, unselectedIDs []string) (*EligibilityRequest, error) {
	allIDs := append(append([]string{}, in.WorkerIDs...), unselectedIDs...)
	users, err := tx.UsersByID(ctx, allIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]database.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	assignments, err := tx.ActiveAssignmentsForWorkers(ctx, in.WorkerIDs)
	if err != nil {
		return nil, err
	}
	byWorker := make(map[string][]database.Assignment)
	for _, a := range assignments {
		byWorker[a.WorkerID] = append(byWorker[a.WorkerID], a)
	}

	// a case raised by any supervisor blocks the worker
	withCases, err := tx.WorkersWithOpenCases(ctx, in.WorkerIDs)
	if err != nil {
		return nil, err
	}
	openCase := make(map[string]bool, len(withCases))
	for _, id := range withCases {
		openCase[id] = true
	}

	state := func(id string) WorkerState {
		u, ok := byID[id]
		// only workers can hold assignments
		return WorkerState{
			WorkerID:    id,
			Found:       ok && u.Role == models.RoleWorker,
			Team:        u.Team,
			Assignments: byWorker[id],
			OpenCase:    openCase[id],
		}
	}

	req := &EligibilityRequest{Team: in.Team, TargetDate: in.AssignedDate}
	for _, id := range in.WorkerIDs {
		req.Workers = append(req.Workers, state(id))
	}
	for _, id := range unselectedIDs {
		req.Unselected = append(req.Unselected, state(id))
	}
	return req, nil
}

// TransitionResult is the row after a transition attempt. Applied is false
// when a concurrent writer moved the row first; the row shows what happened.
type TransitionResult struct {
	Assignment *database.Assignment `json:"assignment"`
	Applied    bool                 `json:"applied"`
}

// Get returns one assignment the actor may see
func (s *Service) Get(ctx context.Context, actor models.Actor, id string) (*database.Assignment, error) {
	a, err := s.store.Assignment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !CanView(actor, a) {
		return nil, ErrForbidden
	}
	return a, nil
}

// Update applies a PATCH: a status change, a notes change, or both
func (s *Service) Update(ctx context.Context, actor models.Actor, id string, in models.UpdateAssignmentInput) (*TransitionResult, error) {
	if in.Status == nil {
		if in.Notes == nil {
			return nil, invalid("status", "status or notes is required")
		}
		return s.updateNotes(ctx, actor, id, *in.Notes)
	}

	switch *in.Status {
	case models.StatusCompleted:
		return s.Complete(ctx, actor, id, in.SubmissionID, in.Notes)
	case models.StatusCancelled:
		return s.Cancel(ctx, actor, id)
	}
	if !in.Status.Valid() {
		return nil, invalid("status", "unknown status %q", *in.Status)
	}

	a, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	// overdue and pending are never reachable through a user request
	return s.transition(ctx, actor, a, *in.Status, func() (bool, error) {
		return false, fmt.Errorf("%w: cannot move to %s", ErrForbidden, *in.Status)
	})
}

// Complete marks the actor's own pending assignment completed. A late
// completion is accepted as long as the sweeper has not moved the row yet.
func (s *Service) Complete(ctx context.Context, actor models.Actor, id string, submissionID, notes *string) (*TransitionResult, error) {
	a, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if submissionID != nil && strings.TrimSpace(*submissionID) == "" {
		submissionID = nil
	}
	return s.transition(ctx, actor, a, models.StatusCompleted, func() (bool, error) {
		var applied bool
		err := s.store.InTx(ctx, func(tx *store.Store) error {
			if submissionID != nil {
				if err := checkSubmission(ctx, tx, a, actor, *submissionID); err != nil {
					return err
				}
			}
			var err error
			applied, err = tx.CompleteIfPending(ctx, a.ID, actor.UserID, submissionID, notes, s.now())
			if errors.Is(err, store.ErrDuplicate) {
				// a concurrent completion linked it first
				return invalid("submission_id", "submission %s is already linked to another assignment", *submissionID)
			}
			return err
		})
		return applied, err
	})
}

// checkSubmission accepts only the completing worker's own submission, linked to no other assignment
func checkSubmission(ctx context.Context, tx *store.Store, a *database.Assignment, actor models.Actor, submissionID string) error {
	sub, err := tx.Submission(ctx, submissionID)
	if errors.Is(err, store.ErrNotFound) {
		return invalid("submission_id", "unknown submission %s", submissionID)
	}
	if err != nil {
		return err
	}
	if sub.WorkerID != actor.UserID {
		return invalid("submission_id", "submission %s belongs to another worker", submissionID)
	}
	linked, err := tx.SubmissionLinkedElsewhere(ctx, submissionID, a.ID)
	if err != nil {
		return err
	}
	if linked {
		return invalid("submission_id", "submission %s is already linked to another assignment", submissionID)
	}
	return nil
}

// Cancel withdraws a pending assignment
func (s *Service) Cancel(ctx context.Context, actor models.Actor, id string) (*TransitionResult, error) {
	a, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, a, models.StatusCancelled, func() (bool, error) {
		return s.store.CancelIfPending(ctx, a.ID, s.now())
	})
}

func (s *Service) transition(ctx context.Context, actor models.Actor, a *database.Assignment, to models.Status, apply func() (bool, error)) (*TransitionResult, error) {
	if err := CanTransition(a.Status, to); err != nil {
		if errors.Is(err, ErrImmutableRecord) {
			s.immutableViolation(actor, a, to)
		}
		return nil, err
	}
	if err := Authorize(actor, a, to); err != nil {
		return nil, err
	}

	applied, err := apply()
	if err != nil {
		return nil, err
	}
	s.metrics.Transition(string(to), applied)

	current, err := s.store.Assignment(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if !applied {
		s.logger.Info("transition lost to a concurrent update",
			"assignment_id", a.ID, "wanted", to, "status", current.Status)
	}
	return &TransitionResult{Assignment: current, Applied: applied}, nil
}

func (s *Service) updateNotes(ctx context.Context, actor models.Actor, id, notes string) (*TransitionResult, error) {
	a, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		s.immutableViolation(actor, a, a.Status)
		return nil, fmt.Errorf("%w: status is %s", ErrImmutableRecord, a.Status)
	}
	if actor.Role == models.RoleTeamLeader && a.SupervisorID != actor.UserID {
		return nil, fmt.Errorf("%w: only the assigning supervisor may edit notes", ErrForbidden)
	}

	applied, err := s.store.UpdateNotesIfPending(ctx, a.ID, notes, s.now())
	if err != nil {
		return nil, err
	}
	current, err := s.store.Assignment(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return &TransitionResult{Assignment: current, Applied: applied}, nil
}

func (s *Service) immutableViolation(actor models.Actor, a *database.Assignment, to models.Status) {
	s.metrics.ImmutableViolation()
	s.logger.Warn("business rule violation: terminal assignment modification rejected",
		"assignment_id", a.ID, "status", a.Status, "requested", to,
		"actor_id", actor.UserID, "actor_role", actor.Role)
}

// List returns assignments visible to the actor
func (s *Service) List(ctx context.Context, actor models.Actor, f models.AssignmentFilter) ([]database.Assignment, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeamLeader:
		f.SupervisorID = actor.UserID
	case models.RoleWorker:
		f.WorkerID = actor.UserID
		f.SupervisorID = ""
	default:
		return nil, ErrForbidden
	}
	return s.store.ListAssignments(ctx, f)
}

func validateFilter(f models.AssignmentFilter) error {
	for field, v := range map[string]string{"date": f.Date, "from": f.From, "to": f.To} {
		if v == "" {
			continue
		}
		if _, err := models.ParseDate(v); err != nil {
			return invalid(field, "%v", err)
		}
	}
	if f.Status != "" && !f.Status.Valid() {
		return invalid("status", "unknown status %q", f.Status)
	}
	return nil
}

// Today returns the worker's assignment for the current local date, or nil
func (s *Service) Today(ctx context.Context, actor models.Actor) (*database.Assignment, error) {
	if actor.Role != models.RoleWorker {
		return nil, fmt.Errorf("%w: only workers have assignments", ErrForbidden)
	}
	return s.store.TodayAssignment(ctx, actor.UserID, models.DateIn(s.now(), s.loc))
}

// CanSubmit reports whether the worker has an assignment a submission can complete
type CanSubmit struct {
	CanSubmit  bool                 `json:"can_submit"`
	Reason     string               `json:"reason,omitempty"`
	Late       bool                 `json:"late"`
	Assignment *database.Assignment `json:"assignment"`
}

// CanSubmit checks whether the worker can submit right now
func (s *Service) CanSubmit(ctx context.Context, actor models.Actor) (*CanSubmit, error) {
	if actor.Role != models.RoleWorker {
		return nil, fmt.Errorf("%w: only workers submit attestations", ErrForbidden)
	}
	now := s.now()
	pending, err := s.store.LatestPending(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return &CanSubmit{CanSubmit: true, Late: !now.Before(pending.DueAt), Assignment: pending}, nil
	}

	today, err := s.store.TodayAssignment(ctx, actor.UserID, models.DateIn(now, s.loc))
	if err != nil {
		return nil, err
	}
	if today == nil {
		return &CanSubmit{Reason: "no_assignment"}, nil
	}
	return &CanSubmit{Reason: "already_" + string(today.Status), Assignment: today}, nil
}

// ListCases returns unselected cases visible to the actor
func (s *Service) ListCases(ctx context.Context, actor models.Actor, status models.CaseStatus) ([]database.UnselectedCase, error) {
	if status != "" && status != models.CaseOpen && status != models.CaseClosed {
		return nil, invalid("status", "unknown case status %q", status)
	}
	switch actor.Role {
	case models.RoleAdmin:
		return s.store.ListCases(ctx, "", status)
	case models.RoleTeamLeader:
		return s.store.ListCases(ctx, actor.UserID, status)
	}
	return nil, ErrForbidden
}

// CloseCase closes an open unselected case and archives it, unlocking the worker
func (s *Service) CloseCase(ctx context.Context, actor models.Actor, id, notes string) (*database.UnselectedCase, error) {
	c, err := s.store.Case(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: case %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && !(actor.Role == models.RoleTeamLeader && actor.UserID == c.SupervisorID) {
		return nil, fmt.Errorf("%w: only the supervisor who opened the case may close it", ErrForbidden)
	}

	closed, err := s.store.CloseCase(ctx, c, actor.UserID, notes, s.now())
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, fmt.Errorf("%w: case is already closed", ErrImmutableRecord)
	}
	s.logger.Info("unselected case closed", "case_id", c.ID, "worker_id", c.WorkerID, "closed_by", actor.UserID)
	return s.store.Case(ctx, id)
}

// SweepStats returns recent daily sweep counters
func (s *Service) SweepStats(ctx context.Context) ([]database.SweepStat, error) {
	return s.store.SweepStats(ctx, 30)
}
