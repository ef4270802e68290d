// Package scoring computes the derived scores and review flags of a
// submission. All scores are out of 10 and rounded to one decimal.
package scoring

import (
	"math"

	"github.com/roach88/draftkeep/internal/form"
)

// Weights of the overall score.
const (
	WeightKPI          = 0.5
	WeightLearning     = 0.2
	WeightRelationship = 0.3
)

// LearningTargetHours earns a full learning score.
const LearningTargetHours = 20.0

// TaskTarget earns a full task score.
const TaskTarget = 20.0

// MinLearningHours below which the missing-learning flag is raised.
const MinLearningHours = 6.0

// Default is the standard scorer.
type Default struct{}

// Score implements engine.Scorer.
func (Default) Score(sub form.Submission) form.Derived {
	kpi := KPI(sub)
	learning := Learning(sub)
	rel := Relationship(sub)

	return form.Derived{
		Scores: form.Scores{
			KPI:          kpi,
			Learning:     learning,
			Relationship: rel,
			Overall:      Overall(kpi, learning, rel),
		},
		Flags: Flags(sub),
	}
}

// KPI scores delivery. Client-facing departments blend on-time delivery
// with task volume; internal departments are scored on tasks alone.
func KPI(sub form.Submission) float64 {
	tasks := math.Min(10, float64(sub.Tasks.Count)/TaskTarget*10)
	if form.IsInternalDepartment(sub.Identity.Department) {
		return round1(tasks)
	}

	var deliverables, onTime int
	for _, c := range sub.Clients {
		deliverables += c.Deliverables
		onTime += c.OnTime
	}
	delivery := 0.0
	if deliverables > 0 {
		delivery = math.Min(10, float64(onTime)/float64(deliverables)*10)
	}
	return round1(delivery*0.6 + tasks*0.4)
}

// Learning scores logged learning hours against LearningTargetHours.
func Learning(sub form.Submission) float64 {
	hours := float64(sub.LearningMinutes()) / 60
	return round1(clamp(hours / LearningTargetHours * 10))
}

// Relationship is the average client satisfaction.
func Relationship(sub form.Submission) float64 {
	if len(sub.Clients) == 0 {
		return 0
	}
	total := 0.0
	for _, c := range sub.Clients {
		total += c.Satisfaction
	}
	return round1(clamp(total / float64(len(sub.Clients))))
}

// Overall combines the component scores.
func Overall(kpi, learning, relationship float64) float64 {
	return round1(kpi*WeightKPI + learning*WeightLearning + relationship*WeightRelationship)
}

// Flags derives the review flags.
func Flags(sub form.Submission) form.Flags {
	var f form.Flags
	f.MissingLearningHours = float64(sub.LearningMinutes())/60 < MinLearningHours
	for _, c := range sub.Clients {
		if c.Escalated {
			f.HasEscalations = true
			break
		}
	}
	f.MissingReports = sub.Tasks.Count > 0 && sub.Tasks.EvidenceLink == ""
	return f
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(10, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
