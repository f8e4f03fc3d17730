package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func member(id string, c Counts, quality ...float64) WorkerKPI {
	return WorkerKPI{WorkerID: id, Result: Score(c, quality, DefaultConfig())}
}

func TestAggregate_SumsRatherThanAveragesRates(t *testing.T) {
	members := []WorkerKPI{
		member("a", Counts{Total: 1, Completed: 1, OnTimeCompleted: 1}),
		member("b", Counts{Total: 9, Completed: 0, Overdue: 9}),
		member("idle", Counts{}),
	}
	team := Aggregate("lead", "alpha", Period{}, members, DefaultConfig())

	assert.Equal(t, Counts{Total: 10, Completed: 1, OnTimeCompleted: 1, Overdue: 9}, team.Totals)
	// 1/10, not the mean of 1.0 and 0.0
	assert.InDelta(t, 0.1, team.TeamCompletionRate, 1e-9)
	assert.InDelta(t, 1.0, team.TeamOnTimeRate, 1e-9)

	// members without assignments do not drag the mean down
	assert.Equal(t, 2, team.ScoredMembers)
	assert.InDelta(t, (members[0].Score+members[1].Score)/2, team.MeanWorkerScore, 1e-9)
	assert.Equal(t, DefaultConfig().Rate(team.MeanWorkerScore), team.MeanWorkerRating)
	assert.Len(t, team.Members, 3)
}

func TestAggregate_Empty(t *testing.T) {
	team := Aggregate("lead", "alpha", Period{}, nil, DefaultConfig())
	assert.Zero(t, team.TeamCompletionRate)
	assert.Zero(t, team.MeanWorkerScore)
	assert.Equal(t, "Poor", team.MeanWorkerRating)
	assert.Equal(t, 100.0, team.ScoreEquity)
	assert.NotNil(t, team.Members)
}

func TestEquity(t *testing.T) {
	assert.Equal(t, 100.0, Equity(nil))
	assert.Equal(t, 100.0, Equity([]float64{0, 0}))
	assert.Equal(t, 100.0, Equity([]float64{80, 80, 80}))

	// mean 50, stddev 50
	assert.InDelta(t, 0.0, Equity([]float64{0, 100}), 1e-9)
	// mean 60, stddev 20
	assert.InDelta(t, 66.67, Equity([]float64{40, 80}), 0.01)
}
