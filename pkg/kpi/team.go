package kpi

import "math"

// WorkerKPI is one worker's result for a period
type WorkerKPI struct {
	WorkerID    string `json:"worker_id"`
	DisplayName string `json:"display_name,omitempty"`
	Period      Period `json:"period"`
	Result
}

// TeamKPI aggregates the workers under one supervisor. The team rates answer
// "how much did the team get done"; the mean worker score answers "how is
// the typical worker doing". They are reported side by side on purpose.
type TeamKPI struct {
	SupervisorID string `json:"supervisor_id"`
	Team         string `json:"team"`
	Period       Period `json:"period"`
	// Totals are sums of member counts, never re-derived
	Totals Counts `json:"totals"`
	// TeamCompletionRate is sum(completed)/sum(total) across members
	TeamCompletionRate float64 `json:"team_completion_rate"`
	// TeamOnTimeRate is sum(on time)/sum(completed) across members
	TeamOnTimeRate float64 `json:"team_on_time_rate"`
	// MeanWorkerScore averages members with at least one assignment
	MeanWorkerScore  float64     `json:"mean_worker_score"`
	MeanWorkerRating string      `json:"mean_worker_rating"`
	ScoreEquity      float64     `json:"score_equity"`
	ScoredMembers    int         `json:"scored_members"`
	Members          []WorkerKPI `json:"members"`
}

// Aggregate rolls member results up into a team result
func Aggregate(supervisorID, team string, p Period, members []WorkerKPI, cfg Config) TeamKPI {
	t := TeamKPI{SupervisorID: supervisorID, Team: team, Period: p, Members: members}
	if t.Members == nil {
		t.Members = []WorkerKPI{}
	}

	var scores []float64
	for _, m := range members {
		t.Totals = t.Totals.Add(m.Counts)
		if m.Counts.Total > 0 {
			scores = append(scores, m.Score)
		}
	}
	if t.Totals.Total > 0 {
		t.TeamCompletionRate = float64(t.Totals.Completed) / float64(t.Totals.Total)
	}
	if t.Totals.Completed > 0 {
		t.TeamOnTimeRate = float64(t.Totals.OnTimeCompleted) / float64(t.Totals.Completed)
	}

	t.ScoredMembers = len(scores)
	t.MeanWorkerScore = mean(scores)
	t.MeanWorkerRating = cfg.Rate(t.MeanWorkerScore)
	t.ScoreEquity = Equity(scores)
	return t
}

// Equity returns a percentage (0-100) representing how evenly scores are
// spread across workers. 100% means every worker scored the same.
func Equity(scores []float64) float64 {
	if len(scores) == 0 {
		return 100.0
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	if sum == 0 {
		return 100.0 // everyone at zero is perfectly even
	}
	avg := sum / float64(len(scores))

	var varianceSum float64
	for _, s := range scores {
		diff := s - avg
		varianceSum += diff * diff
	}
	stdDev := math.Sqrt(varianceSum / float64(len(scores)))

	// 0% once the spread reaches the mean
	score := (1.0 - (stdDev / avg)) * 100.0
	if score < 0 {
		return 0.0
	}
	return score
}
