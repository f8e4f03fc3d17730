package kpi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/database"
	"github.com/arnavshah/readiness-api-go/pkg/models"
	"github.com/arnavshah/readiness-api-go/pkg/store"
	"golang.org/x/sync/errgroup"
)

var (
	ErrForbidden  = errors.New("not permitted")
	ErrNotFound   = errors.New("user not found")
	ErrBadRequest = errors.New("invalid KPI request")
)

const (
	memberConcurrency = 8
	streakLookback    = 60 // days
)

// Period is an inclusive range of assignment dates
type Period struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// ParsePeriod accepts period=YYYY-MM or an explicit from/to pair. With
// neither, the current month in loc is used.
func ParsePeriod(period, from, to string, now time.Time, loc *time.Location) (Period, error) {
	if from != "" || to != "" {
		f, err := models.ParseDate(from)
		if err != nil {
			return Period{}, fmt.Errorf("%w: from: %v", ErrBadRequest, err)
		}
		t, err := models.ParseDate(to)
		if err != nil {
			return Period{}, fmt.Errorf("%w: to: %v", ErrBadRequest, err)
		}
		if t.Before(f) {
			return Period{}, fmt.Errorf("%w: to is before from", ErrBadRequest)
		}
		return Period{From: from, To: to, Label: from + ".." + to}, nil
	}

	var month time.Time
	if period == "" {
		n := now.In(loc)
		month = time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, time.UTC)
	} else {
		m, err := time.Parse("2006-01", period)
		if err != nil {
			return Period{}, fmt.Errorf("%w: period must be YYYY-MM", ErrBadRequest)
		}
		month = m
	}
	last := month.AddDate(0, 1, -1)
	return Period{
		From:  month.Format(models.DateLayout),
		To:    last.Format(models.DateLayout),
		Label: month.Format("2006-01"),
	}, nil
}

// QualitySource is the submission store's quality lookup
type QualitySource interface {
	QualityOf(ctx context.Context, submissionID string) (float64, error)
}

// Engine computes KPIs on demand. It only reads.
type Engine struct {
	store   *store.Store
	quality QualitySource
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	loc     *time.Location
}

// NewEngine creates an engine. A nil quality source uses the store.
func NewEngine(st *store.Store, quality QualitySource, cfg Config, logger *slog.Logger, now func() time.Time, loc *time.Location) *Engine {
	if quality == nil {
		quality = st
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: st, quality: quality, cfg: cfg, logger: logger, now: now, loc: loc}
}

// Config returns the scoring table in use
func (e *Engine) Config() Config {
	return e.cfg
}

// Period parses request parameters against the engine's clock
func (e *Engine) Period(period, from, to string) (Period, error) {
	return ParsePeriod(period, from, to, e.now(), e.loc)
}

// Worker computes one worker's KPI over p
func (e *Engine) Worker(ctx context.Context, actor models.Actor, workerID string, p Period) (*WorkerKPI, error) {
	worker, err := e.authorizeWorker(ctx, actor, workerID)
	if err != nil {
		return nil, err
	}
	assignments, err := e.store.AssignmentsInWindow(ctx, "", []string{workerID}, p.From, p.To)
	if err != nil {
		return nil, err
	}
	kpi := e.score(ctx, worker, assignments, p)
	return &kpi, nil
}

// Team computes the supervisor's team KPI over p
func (e *Engine) Team(ctx context.Context, actor models.Actor, supervisorID string, p Period) (*TeamKPI, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeamLeader:
		if actor.UserID != supervisorID {
			return nil, fmt.Errorf("%w: team leaders see their own team", ErrForbidden)
		}
	default:
		return nil, ErrForbidden
	}

	supervisor, err := e.store.User(ctx, supervisorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	roster, err := e.store.TeamWorkers(ctx, supervisor.Team)
	if err != nil {
		return nil, err
	}
	assignments, err := e.store.AssignmentsInWindow(ctx, supervisorID, nil, p.From, p.To)
	if err != nil {
		return nil, err
	}

	byWorker := make(map[string][]database.Assignment)
	for _, a := range assignments {
		byWorker[a.WorkerID] = append(byWorker[a.WorkerID], a)
	}
	workers := make(map[string]database.User, len(roster))
	for _, u := range roster {
		workers[u.ID] = u
	}
	// workers who moved teams still answer for assignments this supervisor issued
	for id := range byWorker {
		if _, ok := workers[id]; !ok {
			workers[id] = database.User{ID: id}
		}
	}
	ids := make([]string, 0, len(workers))
	for id := range workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	members := make([]WorkerKPI, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(memberConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			members[i] = e.score(gctx, workers[id], byWorker[id], p)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	team := Aggregate(supervisorID, supervisor.Team, p, members, e.cfg)
	return &team, nil
}

// Streak computes the legacy consecutive-day cycle score
func (e *Engine) Streak(ctx context.Context, actor models.Actor, workerID string) (*StreakResult, error) {
	if _, err := e.authorizeWorker(ctx, actor, workerID); err != nil {
		return nil, err
	}
	now := e.now()
	times, err := e.store.SubmissionTimes(ctx, workerID, now.AddDate(0, 0, -streakLookback))
	if err != nil {
		return nil, err
	}
	days := make([]string, 0, len(times))
	for _, t := range times {
		days = append(days, models.DateIn(t, e.loc))
	}
	r := NewStreakResult(workerID, DeriveCycle(days, models.DateIn(now, e.loc)))
	return &r, nil
}

func (e *Engine) score(ctx context.Context, worker database.User, assignments []database.Assignment, p Period) WorkerKPI {
	var quality []float64
	for _, a := range assignments {
		if a.Status != models.StatusCompleted || a.LinkedSubmissionID == nil {
			continue
		}
		q, err := e.quality.QualityOf(ctx, *a.LinkedSubmissionID)
		if err != nil {
			e.logger.Warn("skipping submission quality", "submission_id", *a.LinkedSubmissionID, "error", err)
			continue
		}
		quality = append(quality, q)
	}

	return WorkerKPI{
		WorkerID:    worker.ID,
		DisplayName: worker.DisplayName,
		Period:      p,
		Result:      Score(Tally(assignments, e.now()), quality, e.cfg),
	}
}

func (e *Engine) authorizeWorker(ctx context.Context, actor models.Actor, workerID string) (database.User, error) {
	if workerID == "" {
		return database.User{}, fmt.Errorf("%w: worker_id is required", ErrBadRequest)
	}
	if actor.Role == models.RoleWorker && actor.UserID != workerID {
		return database.User{}, fmt.Errorf("%w: workers see their own KPI", ErrForbidden)
	}

	worker, err := e.store.User(ctx, workerID)
	if errors.Is(err, store.ErrNotFound) {
		return database.User{}, ErrNotFound
	}
	if err != nil {
		return database.User{}, err
	}

	switch actor.Role {
	case models.RoleAdmin, models.RoleWorker:
		return *worker, nil
	case models.RoleTeamLeader:
		if worker.Team == actor.Team {
			return *worker, nil
		}
	}
	return database.User{}, fmt.Errorf("%w: worker is not on your team", ErrForbidden)
}
