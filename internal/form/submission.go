package form

import (
	"strings"
	"time"
)

// StepCount is the number of steps in the form.
const StepCount = 5

// Form steps, 1-based as shown to the user.
const (
	StepProfile    = 1 // identity and reporting period
	StepAttendance = 2 // attendance and tasks
	StepClients    = 3 // client work
	StepLearning   = 4 // learning entries
	StepFeedback   = 5 // free-text feedback
)

// DefaultDepartment is preselected on an empty form.
const DefaultDepartment = "Web"

// Identity is the user-identity block of a submission.
type Identity struct {
	Name       string   `json:"name"`
	Phone      string   `json:"phone"`
	Email      string   `json:"email,omitempty"`
	Department string   `json:"department"`
	Roles      []string `json:"roles"`
}

// Attendance holds office and remote day counts for the period.
type Attendance struct {
	WFO float64 `json:"wfo"`
	WFH float64 `json:"wfh"`
}

// Tasks summarises completed tasks for the period.
type Tasks struct {
	Count        int    `json:"count"`
	EvidenceLink string `json:"evidenceLink,omitempty"`
}

// ClientEntry is one client worked on during the period.
type ClientEntry struct {
	Name         string   `json:"name"`
	Services     []string `json:"services,omitempty"`
	Satisfaction float64  `json:"satisfaction"`
	Deliverables int      `json:"deliverables"`
	OnTime       int      `json:"onTime"`
	Escalated    bool     `json:"escalated,omitempty"`
}

// LearningEntry is one learning activity.
type LearningEntry struct {
	Title        string `json:"title"`
	DurationMins int    `json:"durationMins"`
	Link         string `json:"link,omitempty"`
}

// Feedback is the free-text final step.
type Feedback struct {
	Company    string `json:"company"`
	HR         string `json:"hr"`
	Challenges string `json:"challenges"`
}

// Scores are the composite scores, each out of 10.
type Scores struct {
	KPI          float64 `json:"kpi"`
	Learning     float64 `json:"learning"`
	Relationship float64 `json:"relationship"`
	Overall      float64 `json:"overall"`
}

// Flags are derived review flags.
type Flags struct {
	MissingLearningHours bool `json:"missingLearningHours"`
	HasEscalations       bool `json:"hasEscalations"`
	MissingReports       bool `json:"missingReports"`
}

// Derived is recomputed from the rest of the submission and never edited
// directly.
type Derived struct {
	Scores Scores `json:"scores"`
	Flags  Flags  `json:"flags"`
}

// Submission is the entity being built across the form steps.
type Submission struct {
	Identity    Identity        `json:"identity"`
	Period      string          `json:"period"`
	Attendance  Attendance      `json:"attendance"`
	Tasks       Tasks           `json:"tasks"`
	Clients     []ClientEntry   `json:"clients"`
	Learning    []LearningEntry `json:"learning"`
	Feedback    Feedback        `json:"feedback"`
	Derived     Derived         `json:"derived"`
	IsDraft     bool            `json:"isDraft"`
	SubmittedAt *time.Time      `json:"submittedAt,omitempty"`
}

// Empty returns the template a fresh session starts from.
func Empty(period string) Submission {
	return Submission{
		Identity: Identity{
			Department: DefaultDepartment,
			Roles:      []string{},
		},
		Period:   period,
		Clients:  []ClientEntry{},
		Learning: []LearningEntry{},
		IsDraft:  true,
	}
}

// HasIdentity reports whether any identity field has been entered.
func (s Submission) HasIdentity() bool {
	return strings.TrimSpace(s.Identity.Name) != "" || strings.TrimSpace(s.Identity.Phone) != ""
}

// IsSignificant reports whether the submission carries any work beyond the
// identity block. Drafts that only hold a name are not worth a recovery
// prompt.
func (s Submission) IsSignificant() bool {
	switch {
	case s.Attendance.WFO > 0 || s.Attendance.WFH > 0:
		return true
	case s.Tasks.Count > 0 || s.Tasks.EvidenceLink != "":
		return true
	case len(s.Clients) > 0 || len(s.Learning) > 0:
		return true
	case s.Feedback.Company != "" || s.Feedback.HR != "" || s.Feedback.Challenges != "":
		return true
	}
	return false
}

// LearningMinutes sums the duration of all learning entries.
func (s Submission) LearningMinutes() int {
	total := 0
	for _, l := range s.Learning {
		total += l.DurationMins
	}
	return total
}

// Clone returns a deep copy that shares no slices with s.
func (s Submission) Clone() Submission {
	out := s
	out.Identity.Roles = cloneStrings(s.Identity.Roles)
	if s.Clients != nil {
		out.Clients = make([]ClientEntry, len(s.Clients))
		for i, c := range s.Clients {
			c.Services = cloneStrings(c.Services)
			out.Clients[i] = c
		}
	}
	if s.Learning != nil {
		out.Learning = make([]LearningEntry, len(s.Learning))
		copy(out.Learning, s.Learning)
	}
	if s.SubmittedAt != nil {
		at := *s.SubmittedAt
		out.SubmittedAt = &at
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// internalDepartments have no client work to report.
var internalDepartments = map[string]bool{
	"HR":                   true,
	"Accounts":             true,
	"Sales":                true,
	"Blended (HR + Sales)": true,
	"Web Head":             true,
	"Operations Head":      true,
}

// IsInternalDepartment reports whether dept works without client entries.
func IsInternalDepartment(dept string) bool {
	return internalDepartments[strings.TrimSpace(dept)]
}
