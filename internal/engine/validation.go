package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/identity"
)

// ValidationResult is the advisory outcome of validating one step. It is
// never persisted.
type ValidationResult struct {
	Step     int
	Errors   map[form.Path]string
	Warnings map[form.Path]string
}

// HasErrors reports whether any error was found.
func (r ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// FieldResult is the per-keystroke result for one field.
type FieldResult struct {
	Error   string
	Warning string
}

// Validation runs a StepValidator and attaches its messages to field paths.
type Validation struct {
	validator StepValidator
}

// NewValidation wraps v. A nil v validates nothing.
func NewValidation(v StepValidator) *Validation {
	return &Validation{validator: v}
}

// ValidateStep validates step of sub.
func (v *Validation) ValidateStep(step int, sub form.Submission) ValidationResult {
	res := ValidationResult{
		Step:     step,
		Errors:   map[form.Path]string{},
		Warnings: map[form.Path]string{},
	}
	if v == nil || v.validator == nil {
		return res
	}
	errs, warnings := v.validator.ValidateStep(step, sub)
	res.Errors = MapMessages(step, errs)
	res.Warnings = MapMessages(step, warnings)
	return res
}

var learningEntryRe = regexp.MustCompile(`(?i)learning activity (\d+)`)

// messageRule maps a message to a field path when it contains any of its
// substrings. Rules are tried in order; the first match wins.
type messageRule struct {
	contains []string
	path     form.Path
}

var messageRules = []messageRule{
	{[]string{"total attendance"}, form.PathWFO},
	{[]string{"work from office", "wfo"}, form.PathWFO},
	{[]string{"work from home", "wfh"}, form.PathWFH},
	{[]string{"client"}, "clients"},
	{[]string{"phone"}, form.PathPhone},
	{[]string{"email"}, form.PathEmail},
	{[]string{"department"}, form.PathDepartment},
	{[]string{"role"}, form.PathRoles},
	{[]string{"month", "period"}, form.PathPeriod},
	{[]string{"task"}, form.PathTaskCount},
	{[]string{"evidence"}, form.PathEvidence},
	{[]string{"learning"}, "learning"},
	{[]string{"company"}, form.PathFbCompany},
	{[]string{"hr "}, form.PathFbHR},
	{[]string{"challenge"}, form.PathFbChallenge},
	{[]string{"name"}, form.PathName},
}

// MessagePath returns the field path a validator message refers to, or
// "step.<n>" when no rule matches.
func MessagePath(step int, msg string) form.Path {
	lower := strings.ToLower(msg)

	if m := learningEntryRe.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			field := "title"
			if strings.Contains(lower, "duration") {
				field = "durationMins"
			}
			return form.LearningPath(n-1, field)
		}
	}

	for _, rule := range messageRules {
		for _, s := range rule.contains {
			if strings.Contains(lower, s) {
				return rule.path
			}
		}
	}
	return form.Path(fmt.Sprintf("step.%d", step))
}

// MapMessages attaches each message to its field path. Messages landing on
// the same path are joined with "; ".
func MapMessages(step int, msgs []string) map[form.Path]string {
	out := make(map[form.Path]string, len(msgs))
	for _, msg := range msgs {
		p := MessagePath(step, msg)
		if prev, ok := out[p]; ok {
			out[p] = prev + "; " + msg
			continue
		}
		out[p] = msg
	}
	return out
}

// criticalCheck returns the failing critical fields. These are the only
// checks that can block a submit.
func criticalCheck(sub form.Submission, policy identity.Policy) map[form.Path]string {
	failed := map[form.Path]string{}

	name := strings.TrimSpace(sub.Identity.Name)
	if utf8.RuneCountInString(name) < policy.MinNameRunes {
		failed[form.PathName] = fmt.Sprintf("Name is required (at least %d characters)", policy.MinNameRunes)
	}
	phone := strings.TrimSpace(sub.Identity.Phone)
	if len(phone) != policy.PhoneDigits || strings.Trim(phone, "0123456789") != "" {
		failed[form.PathPhone] = fmt.Sprintf("Phone number must be exactly %d digits", policy.PhoneDigits)
	}
	if strings.TrimSpace(sub.Identity.Department) == "" {
		failed[form.PathDepartment] = "Department is required"
	}
	if len(sub.Identity.Roles) == 0 {
		failed[form.PathRoles] = "Select at least one role"
	}
	if !form.ValidPeriod(sub.Period) {
		failed[form.PathPeriod] = "Reporting month must be in YYYY-MM format"
	}
	return failed
}

// criticalOrder fixes the order in which failing fields are reported.
var criticalOrder = []form.Path{
	form.PathName,
	form.PathPhone,
	form.PathDepartment,
	form.PathRoles,
	form.PathPeriod,
}
