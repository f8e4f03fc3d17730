package kpi

import (
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/database"
	"github.com/arnavshah/readiness-api-go/pkg/models"
)

// Fixed component weights of the base score
const (
	CompletionWeight = 0.7
	TimelinessWeight = 0.2
	QualityWeight    = 0.1
)

// Counts summarises a window of assignments
type Counts struct {
	Total            int `json:"total_assignments"`
	Completed        int `json:"completed_assignments"`
	OnTimeCompleted  int `json:"on_time_completed"`
	PendingNotYetDue int `json:"pending_not_yet_due"`
	Overdue          int `json:"overdue_assignments"`
}

// Add sums two tallies
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Total:            c.Total + o.Total,
		Completed:        c.Completed + o.Completed,
		OnTimeCompleted:  c.OnTimeCompleted + o.OnTimeCompleted,
		PendingNotYetDue: c.PendingNotYetDue + o.PendingNotYetDue,
		Overdue:          c.Overdue + o.Overdue,
	}
}

// Tally counts non-cancelled assignments. An assignment is on time when
// completed_at <= due_at.
func Tally(assignments []database.Assignment, now time.Time) Counts {
	var c Counts
	for _, a := range assignments {
		switch a.Status {
		case models.StatusCancelled:
			continue
		case models.StatusCompleted:
			c.Completed++
			if a.CompletedAt != nil && !a.CompletedAt.After(a.DueAt) {
				c.OnTimeCompleted++
			}
		case models.StatusOverdue:
			c.Overdue++
		case models.StatusPending:
			if a.DueAt.After(now) {
				c.PendingNotYetDue++
			}
		}
		c.Total++
	}
	return c
}

// Breakdown shows how a score was assembled
type Breakdown struct {
	CompletionRate   float64 `json:"completion_rate"`
	OnTimeRate       float64 `json:"on_time_rate"`
	QualityScore     float64 `json:"quality_score"`
	CompletionPoints float64 `json:"completion_points"`
	TimelinessPoints float64 `json:"timeliness_points"`
	QualityPoints    float64 `json:"quality_points"`
	BaseScore        float64 `json:"base_score"`
	PendingBonus     float64 `json:"pending_bonus"`
	OverduePenalty   float64 `json:"overdue_penalty"`
}

// Result is a computed KPI. It is never stored; recompute it from the assignments.
type Result struct {
	Score     float64   `json:"score"`
	Rating    string    `json:"rating"`
	Counts    Counts    `json:"counts"`
	Breakdown Breakdown `json:"component_breakdown"`
}

// Score applies the assignment-based formula. quality holds one 0-100 value
// per scored submission.
func Score(c Counts, quality []float64, cfg Config) Result {
	var b Breakdown
	if c.Total > 0 {
		b.CompletionRate = float64(c.Completed) / float64(c.Total)
	}
	if c.Completed > 0 {
		b.OnTimeRate = float64(c.OnTimeCompleted) / float64(c.Completed)
	}
	b.QualityScore = mean(quality)

	b.CompletionPoints = b.CompletionRate * CompletionWeight * 100
	b.TimelinessPoints = b.OnTimeRate * TimelinessWeight * 100
	b.QualityPoints = b.QualityScore * QualityWeight
	b.BaseScore = b.CompletionPoints + b.TimelinessPoints + b.QualityPoints
	b.PendingBonus = cfg.PendingBonus.Amount(c.PendingNotYetDue)
	b.OverduePenalty = cfg.OverduePenalty.Amount(c.Overdue)

	score := clamp(b.BaseScore+b.PendingBonus-b.OverduePenalty, 0, 100)
	return Result{
		Score:     score,
		Rating:    cfg.Rate(score),
		Counts:    c,
		Breakdown: b,
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += clamp(v, 0, 100)
	}
	return sum / float64(len(values))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
