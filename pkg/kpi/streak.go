package kpi

import (
	"sort"
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/models"
)

// CycleLength is the number of consecutive submission days that completes a cycle
const CycleLength = 7

// CycleState is the legacy submission-cycle state. It is one of NoCycle,
// CycleInProgress or CycleCompleted.
type CycleState interface {
	cycleState()
}

// NoCycle means no cycle is running: never started, or the streak broke
type NoCycle struct{}

// CycleInProgress is a running cycle
type CycleInProgress struct {
	StartedOn string
	// Day is the 1-based day of the cycle as of today
	Day    int
	Streak int
}

// CycleCompleted is a cycle that reached CycleLength consecutive days
type CycleCompleted struct {
	StartedOn   string
	CompletedOn string
}

func (NoCycle) cycleState()         {}
func (CycleInProgress) cycleState() {}
func (CycleCompleted) cycleState()  {}

// DeriveCycle walks distinct submission days in order. A gap resets the
// streak; reaching CycleLength completes the cycle and the next submission
// starts a new one. days may be unsorted and contain duplicates.
func DeriveCycle(days []string, today string) CycleState {
	todayAt, err := models.ParseDate(today)
	if err != nil {
		return NoCycle{}
	}

	var parsed []time.Time
	seen := make(map[string]bool, len(days))
	for _, d := range days {
		t, err := models.ParseDate(d)
		if err != nil || seen[d] || t.After(todayAt) {
			continue
		}
		seen[d] = true
		parsed = append(parsed, t)
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].Before(parsed[j]) })

	var (
		start, prev time.Time
		streak      int
		completed   *CycleCompleted
	)
	for _, d := range parsed {
		if streak > 0 && d.Equal(prev.AddDate(0, 0, 1)) {
			streak++
		} else {
			start = d
			streak = 1
		}
		prev = d
		if streak == CycleLength {
			completed = &CycleCompleted{
				StartedOn:   start.Format(models.DateLayout),
				CompletedOn: d.Format(models.DateLayout),
			}
			streak = 0
		}
	}

	if streak > 0 {
		if prev.Equal(todayAt) || prev.Equal(todayAt.AddDate(0, 0, -1)) {
			return CycleInProgress{
				StartedOn: start.Format(models.DateLayout),
				Day:       int(todayAt.Sub(start).Hours()/24) + 1,
				Streak:    streak,
			}
		}
		return NoCycle{}
	}
	if completed != nil {
		return *completed
	}
	return NoCycle{}
}

// LegacyStreakScore scores a cycle state on the 0-100 scale. It is not
// comparable with Score and must never be blended with it.
func LegacyStreakScore(state CycleState) float64 {
	switch s := state.(type) {
	case CycleInProgress:
		return clamp(float64(s.Streak)/CycleLength*100, 0, 100)
	case CycleCompleted:
		return 100
	default:
		return 0
	}
}

// StreakResult is the JSON view of the legacy calculation
type StreakResult struct {
	WorkerID    string  `json:"worker_id"`
	State       string  `json:"state"`
	StartedOn   string  `json:"started_on,omitempty"`
	CompletedOn string  `json:"completed_on,omitempty"`
	Day         int     `json:"day,omitempty"`
	Streak      int     `json:"streak"`
	Score       float64 `json:"legacy_streak_score"`
}

// NewStreakResult flattens a state for output
func NewStreakResult(workerID string, state CycleState) StreakResult {
	r := StreakResult{WorkerID: workerID, Score: LegacyStreakScore(state)}
	switch s := state.(type) {
	case CycleInProgress:
		r.State = "in_progress"
		r.StartedOn = s.StartedOn
		r.Day = s.Day
		r.Streak = s.Streak
	case CycleCompleted:
		r.State = "completed"
		r.StartedOn = s.StartedOn
		r.CompletedOn = s.CompletedOn
		r.Streak = CycleLength
	default:
		r.State = "no_cycle"
	}
	return r
}
