package rules

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/identity"
)

// Name and task bounds shared by field and step checks.
const (
	MaxNameRunes      = 100
	MaxTasks          = 200
	HighTasks         = 100
	MaxLearningMins   = 480
	TargetLearningHrs = 6.0
)

var plainName = regexp.MustCompile(`^[\p{L}\s.'-]+$`)

// Field validates single fields as they are typed.
type Field struct {
	policy identity.Policy
}

// NewField creates a field validator using the identity policy for the
// name and phone length rules.
func NewField(policy identity.Policy) *Field {
	return &Field{policy: policy}
}

// ValidateField checks value as the new content of path. Paths without a
// field rule always pass.
func (f *Field) ValidateField(path form.Path, value any, sub form.Submission) (errMsg, warning string) {
	probe := sub.Clone()
	if err := form.Set(&probe, path, value); err != nil {
		return fmt.Sprintf("Invalid value for %s", path), ""
	}

	switch path {
	case form.PathName:
		return f.name(probe.Identity.Name)
	case form.PathPhone:
		return f.phone(probe.Identity.Phone)
	case form.PathEmail:
		if e := probe.Identity.Email; e != "" && !validEmail(e) {
			return "Email address is not valid", ""
		}
	case form.PathDepartment:
		if strings.TrimSpace(probe.Identity.Department) == "" {
			return "Department is required", ""
		}
	case form.PathRoles:
		if len(probe.Identity.Roles) == 0 {
			return "Select at least one role", ""
		}
	case form.PathPeriod:
		return period(probe.Period)
	case form.PathWFO:
		return days("Work from office", probe.Attendance.WFO, probe.Period)
	case form.PathWFH:
		return days("Work from home", probe.Attendance.WFH, probe.Period)
	case form.PathTaskCount:
		return tasks(probe.Tasks.Count)
	case form.PathEvidence:
		if l := probe.Tasks.EvidenceLink; l != "" && !isURL(l) {
			return "Evidence link must start with http:// or https://", ""
		}
	default:
		return learningField(path, probe)
	}
	return "", ""
}

func (f *Field) name(name string) (string, string) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	switch {
	case n == 0:
		return "Full name is required", ""
	case n < f.policy.MinNameRunes:
		return fmt.Sprintf("Name must be at least %d characters", f.policy.MinNameRunes), ""
	case n > MaxNameRunes:
		return fmt.Sprintf("Name is too long (max %d characters)", MaxNameRunes), ""
	case !plainName.MatchString(name):
		return "", "Name contains unusual characters, please check it"
	}
	return "", ""
}

func (f *Field) phone(phone string) (string, string) {
	if strings.TrimSpace(phone) == "" {
		return "Phone number is required", ""
	}
	digits := onlyDigits(phone)
	want := f.policy.PhoneDigits
	switch {
	case len(digits) == 0:
		return "Enter a valid phone number", ""
	case len(digits) < want:
		return fmt.Sprintf("Phone number incomplete (%d/%d digits)", len(digits), want), ""
	case len(digits) > want:
		return fmt.Sprintf("Phone number too long (max %d digits)", want), ""
	case !strings.ContainsAny(digits[:1], "6789"):
		return "", "Phone number usually starts with 6, 7, 8 or 9"
	}
	return "", ""
}

func period(p string) (string, string) {
	if strings.TrimSpace(p) == "" {
		return "Reporting month is required", ""
	}
	if !form.ValidPeriod(p) {
		return "Reporting month must be in YYYY-MM format", ""
	}
	return "", ""
}

func days(label string, n float64, period string) (string, string) {
	limit := form.WorkingDays(period)
	switch {
	case n < 0:
		return label + " days cannot be negative", ""
	case n > float64(limit):
		return fmt.Sprintf("%s days cannot exceed %d working days for %s", label, limit, period), ""
	case n > 0 && n < 1:
		return "", fmt.Sprintf("Partial %s days entered, please check", strings.ToLower(label))
	}
	return "", ""
}

func tasks(n int) (string, string) {
	switch {
	case n < 0:
		return "Task count cannot be negative", ""
	case n > MaxTasks:
		return fmt.Sprintf("Task count must be %d or less", MaxTasks), ""
	case n > HighTasks:
		return "", "Task count is unusually high, please check"
	case n == 0:
		return "", "No tasks reported"
	}
	return "", ""
}

func learningField(path form.Path, sub form.Submission) (string, string) {
	p := string(path)
	if !strings.HasPrefix(p, "learning.") {
		return "", ""
	}
	var i int
	var field string
	if _, err := fmt.Sscanf(strings.ReplaceAll(p, ".", " "), "learning %d %s", &i, &field); err != nil {
		return "", ""
	}
	if i < 0 || i >= len(sub.Learning) {
		return "", ""
	}
	entry := sub.Learning[i]
	switch field {
	case "title":
		if strings.TrimSpace(entry.Title) == "" {
			return fmt.Sprintf("Learning activity %d: Title is required", i+1), ""
		}
	case "durationMins":
		if entry.DurationMins <= 0 {
			return fmt.Sprintf("Learning activity %d: Duration must be greater than 0", i+1), ""
		}
		if entry.DurationMins > MaxLearningMins {
			return "", fmt.Sprintf("Learning activity %d: Duration is unusually long (%d minutes)", i+1, entry.DurationMins)
		}
	}
	return "", ""
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

var emailRe = regexp.MustCompile(`^[^@ ]+@[^@ ]+\.[^@ ]+$`)

func validEmail(s string) bool {
	return emailRe.MatchString(s)
}
