package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/draftkeep/internal/form"
)

func TestDefault_Score(t *testing.T) {
	sub := form.Empty("2026-09")
	sub.Identity.Department = "Web"
	sub.Tasks.Count = 10
	sub.Tasks.EvidenceLink = "https://example.com/board"
	sub.Clients = []form.ClientEntry{
		{Name: "Acme", Satisfaction: 7, Deliverables: 4, OnTime: 3},
		{Name: "Globex", Satisfaction: 9, Deliverables: 6, OnTime: 6, Escalated: true},
	}
	sub.Learning = []form.LearningEntry{{Title: "Course", DurationMins: 600}}

	got := Default{}.Score(sub)

	// delivery 9/10*10 = 9, tasks 10/20*10 = 5 -> 9*0.6 + 5*0.4 = 7.4
	assert.Equal(t, 7.4, got.Scores.KPI)
	// 10h of 20h
	assert.Equal(t, 5.0, got.Scores.Learning)
	assert.Equal(t, 8.0, got.Scores.Relationship)
	// 7.4*0.5 + 5*0.2 + 8*0.3
	assert.Equal(t, 7.1, got.Scores.Overall)

	assert.Equal(t, form.Flags{HasEscalations: true}, got.Flags)
}

func TestKPI_InternalDepartment(t *testing.T) {
	sub := form.Empty("2026-09")
	sub.Identity.Department = "HR"
	sub.Tasks.Count = 30
	assert.Equal(t, 10.0, KPI(sub))
}

func TestScores_Empty(t *testing.T) {
	got := Default{}.Score(form.Empty("2026-09"))
	assert.Zero(t, got.Scores)
	assert.True(t, got.Flags.MissingLearningHours)
	assert.False(t, got.Flags.MissingReports)
}

func TestLearning_Capped(t *testing.T) {
	sub := form.Empty("2026-09")
	sub.Learning = []form.LearningEntry{{Title: "Bootcamp", DurationMins: 40 * 60}}
	assert.Equal(t, 10.0, Learning(sub))
}

func TestFlags_MissingReports(t *testing.T) {
	sub := form.Empty("2026-09")
	sub.Tasks.Count = 2
	assert.True(t, Flags(sub).MissingReports)
}
