package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/database"
	"github.com/arnavshah/readiness-api-go/pkg/metrics"
	"github.com/arnavshah/readiness-api-go/pkg/models"
)

// FallbackWindow is the deadline used when no usable shift is available
const FallbackWindow = 24 * time.Hour

// DefaultShiftLookupTimeout bounds a Shift Registry call
const DefaultShiftLookupTimeout = 2 * time.Second

var errInvalidShift = errors.New("invalid shift times")

// ShiftRegistry resolves the shift a supervisor has in effect on a date.
// A nil shift with a nil error means no shift is configured.
type ShiftRegistry interface {
	CurrentShift(ctx context.Context, supervisorID, date string) (*database.Shift, error)
}

// DeadlineInput carries everything ComputeDeadline depends on
type DeadlineInput struct {
	AssignedDate string
	Override     *models.TimeOfDay
	Shift        *database.Shift
	ShiftErr     error
	// Now is only read by the fallback branch
	Now time.Time
	// Location is used for the override and for shifts without a timezone
	Location *time.Location
}

// ComputeDeadline derives the due instant for an assignment. It is pure: the
// result depends only on its input.
func ComputeDeadline(in DeadlineInput) (models.Deadline, error) {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	if _, err := models.ParseDate(in.AssignedDate); err != nil {
		return models.Deadline{}, invalid("assigned_date", "%v", err)
	}

	if in.Override != nil {
		due, err := in.Override.On(in.AssignedDate, loc)
		if err != nil {
			return models.Deadline{}, err
		}
		return models.Deadline{DueAt: due.UTC(), Provenance: models.ProvenanceManual}, nil
	}

	fallback := func(reason models.FallbackReason) models.Deadline {
		return models.Deadline{
			DueAt:          in.Now.Add(FallbackWindow).UTC(),
			Provenance:     models.ProvenanceFallback,
			FallbackReason: reason,
		}
	}

	switch {
	case in.ShiftErr != nil:
		return fallback(models.FallbackShiftFetchFailed), nil
	case in.Shift == nil:
		return fallback(models.FallbackNoShift), nil
	}

	_, end, err := ShiftWindow(in.Shift, in.AssignedDate, loc)
	if err != nil {
		return fallback(models.FallbackInvalidShiftTimes), nil
	}
	return models.Deadline{DueAt: end.UTC(), Provenance: models.ProvenanceShiftBased}, nil
}

// ShiftWindow returns the start and end instants of the shift that begins on
// date. An end time earlier than the start time rolls over to the next day.
func ShiftWindow(shift *database.Shift, date string, fallbackLoc *time.Location) (time.Time, time.Time, error) {
	start, err := models.ParseTimeOfDay(shift.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", errInvalidShift, err)
	}
	end, err := models.ParseTimeOfDay(shift.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", errInvalidShift, err)
	}
	if start.Seconds() == end.Seconds() {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: zero-length shift %s-%s", errInvalidShift, start, end)
	}

	loc := fallbackLoc
	if shift.Timezone != "" {
		loc, err = time.LoadLocation(shift.Timezone)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", errInvalidShift, err)
		}
	}

	startAt, err := start.On(date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endDate := date
	if end.Seconds() < start.Seconds() {
		if endDate, err = models.AddDays(date, 1); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	endAt, err := end.On(endDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return startAt, endAt, nil
}

// Calculator looks up shifts with a bounded timeout and computes deadlines
type Calculator struct {
	registry ShiftRegistry
	timeout  time.Duration
	loc      *time.Location
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// NewCalculator creates a deadline calculator. A zero timeout uses DefaultShiftLookupTimeout.
func NewCalculator(registry ShiftRegistry, timeout time.Duration, loc *time.Location, logger *slog.Logger, m *metrics.Collector) *Calculator {
	if timeout <= 0 {
		timeout = DefaultShiftLookupTimeout
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{registry: registry, timeout: timeout, loc: loc, logger: logger, metrics: m}
}

// Deadline computes the due instant for a supervisor's assignment on date.
// Shift lookup failures never surface as errors; they select the fallback.
func (c *Calculator) Deadline(ctx context.Context, supervisorID, date string, override *models.TimeOfDay, now time.Time) (models.Deadline, error) {
	in := DeadlineInput{AssignedDate: date, Override: override, Now: now, Location: c.loc}
	if override == nil {
		in.Shift, in.ShiftErr = c.lookup(ctx, supervisorID, date)
	}

	d, err := ComputeDeadline(in)
	if err != nil {
		return d, err
	}
	if d.Provenance == models.ProvenanceFallback {
		attrs := []any{"supervisor_id", supervisorID, "assigned_date", date, "reason", d.FallbackReason}
		if in.ShiftErr != nil {
			attrs = append(attrs, "error", in.ShiftErr)
		}
		c.logger.Warn("deadline fell back to 24h window", attrs...)
	}
	c.metrics.DeadlineComputed(string(d.Provenance), string(d.FallbackReason))
	return d, nil
}

// NextShiftStart returns when the supervisor's shift on the day after date begins.
// ok is false when no usable shift is available.
func (c *Calculator) NextShiftStart(ctx context.Context, supervisorID, date string) (time.Time, bool) {
	next, err := models.AddDays(date, 1)
	if err != nil {
		return time.Time{}, false
	}
	shift, err := c.lookup(ctx, supervisorID, next)
	if err != nil || shift == nil {
		return time.Time{}, false
	}
	start, _, err := ShiftWindow(shift, next, c.loc)
	if err != nil {
		return time.Time{}, false
	}
	return start.UTC(), true
}

// lookup calls the registry but gives up after the timeout even if the
// registry ignores its context.
func (c *Calculator) lookup(ctx context.Context, supervisorID, date string) (*database.Shift, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		shift *database.Shift
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		shift, err := c.registry.CurrentShift(ctx, supervisorID, date)
		ch <- result{shift, err}
	}()

	select {
	case r := <-ch:
		return r.shift, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("shift lookup: %w", ctx.Err())
	}
}
