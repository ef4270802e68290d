package rules

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/identity"
)

//go:embed schema.cue
var schemaSource string

// Steps validates whole form steps against the CUE step definitions.
//
// A cue.Context is not safe for concurrent use, so ValidateStep serializes
// on an internal mutex.
type Steps struct {
	policy identity.Policy

	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewSteps compiles the step schema with policy filled in.
func NewSteps(policy identity.Policy) (*Steps, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile step schema: %w", err)
	}
	v = v.FillPath(cue.ParsePath("#Policy.minName"), policy.MinNameRunes)
	v = v.FillPath(cue.ParsePath("#Policy.phoneDigits"), policy.PhoneDigits)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("apply identity policy: %w", err)
	}
	return &Steps{policy: policy, ctx: ctx, schema: v}, nil
}

// MustSteps is like NewSteps but panics on error. The embedded schema is
// fixed, so an error here is a programming mistake.
func MustSteps(policy identity.Policy) *Steps {
	s, err := NewSteps(policy)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateStep returns the error and warning messages for step.
func (s *Steps) ValidateStep(step int, sub form.Submission) (errs, warnings []string) {
	sub = normalize(sub)
	errs = s.schemaErrors(step, sub)

	switch step {
	case form.StepProfile:
		warnings = profileWarnings(sub)
	case form.StepAttendance:
		errs = append(errs, attendanceErrors(sub)...)
		warnings = attendanceWarnings(sub)
	case form.StepClients:
		if len(sub.Clients) == 0 && !form.IsInternalDepartment(sub.Identity.Department) {
			errs = append(errs, "Add at least one client for this department")
		}
		warnings = clientWarnings(sub)
	case form.StepLearning:
		warnings = learningWarnings(sub)
	}
	return errs, warnings
}

func (s *Steps) schemaErrors(step int, sub form.Submission) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.schema.FillPath(cue.ParsePath("#Limits.workingDays"), form.WorkingDays(sub.Period))
	def := root.LookupPath(cue.ParsePath(fmt.Sprintf("#Step%d", step)))
	if !def.Exists() {
		return nil
	}

	err := def.Unify(s.ctx.Encode(sub)).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var out []string
	seen := map[string]bool{}
	for _, e := range cueerrors.Errors(err) {
		msg := s.message(fieldPath(e.Path()), sub)
		if msg == "" {
			msg = e.Error()
		}
		if !seen[msg] {
			seen[msg] = true
			out = append(out, msg)
		}
	}
	return out
}

// fieldPath drops the definition selectors in front of a CUE error path.
func fieldPath(path []string) []string {
	for len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	return path
}

// message words a schema violation at path so that it names its field.
func (s *Steps) message(path []string, sub form.Submission) string {
	switch strings.Join(path, ".") {
	case string(form.PathName):
		return fmt.Sprintf("Name must be between %d and %d characters", s.policy.MinNameRunes, MaxNameRunes)
	case string(form.PathPhone):
		return fmt.Sprintf("Phone number must be exactly %d digits", s.policy.PhoneDigits)
	case string(form.PathEmail):
		return "Email address is not valid"
	case string(form.PathDepartment):
		return "Department is required"
	case string(form.PathRoles):
		return "Select at least one role"
	case string(form.PathPeriod):
		return "Reporting month must be in YYYY-MM format"
	case string(form.PathWFO):
		return fmt.Sprintf("Work from office days must be between 0 and %d", form.WorkingDays(sub.Period))
	case string(form.PathWFH):
		return fmt.Sprintf("Work from home days must be between 0 and %d", form.WorkingDays(sub.Period))
	case string(form.PathTaskCount):
		return fmt.Sprintf("Task count must be between 0 and %d", MaxTasks)
	case string(form.PathEvidence):
		return "Evidence link must start with http:// or https://"
	case string(form.PathFbCompany):
		return "Company feedback must be under 2000 characters"
	case string(form.PathFbHR):
		return "HR feedback must be under 2000 characters"
	case string(form.PathFbChallenge):
		return "Challenges must be under 2000 characters"
	}

	if len(path) < 3 {
		return ""
	}
	n, err := strconv.Atoi(path[1])
	if err != nil {
		return ""
	}
	switch path[0] + "." + path[2] {
	case "clients.name":
		return fmt.Sprintf("Client %d: name is required", n+1)
	case "clients.satisfaction":
		return fmt.Sprintf("Client %d: satisfaction must be between 0 and 10", n+1)
	case "clients.deliverables", "clients.onTime":
		return fmt.Sprintf("Client %d: deliverable counts cannot be negative", n+1)
	case "learning.title":
		return fmt.Sprintf("Learning activity %d: Title is required", n+1)
	case "learning.durationMins":
		return fmt.Sprintf("Learning activity %d: Duration must be greater than 0", n+1)
	}
	return ""
}

// normalize replaces nil lists with empty ones so they unify with list
// constraints instead of failing as null.
func normalize(sub form.Submission) form.Submission {
	sub = sub.Clone()
	if sub.Identity.Roles == nil {
		sub.Identity.Roles = []string{}
	}
	if sub.Clients == nil {
		sub.Clients = []form.ClientEntry{}
	}
	if sub.Learning == nil {
		sub.Learning = []form.LearningEntry{}
	}
	return sub
}

func profileWarnings(sub form.Submission) []string {
	var out []string
	if name := strings.TrimSpace(sub.Identity.Name); name != "" && !plainName.MatchString(name) {
		out = append(out, "Name contains unusual characters, please check it")
	}
	if digits := onlyDigits(sub.Identity.Phone); digits != "" && !strings.ContainsAny(digits[:1], "6789") {
		out = append(out, "Phone number usually starts with 6, 7, 8 or 9")
	}
	return out
}

func attendanceErrors(sub form.Submission) []string {
	limit := form.WorkingDays(sub.Period)
	total := sub.Attendance.WFO + sub.Attendance.WFH
	if total > float64(limit) {
		return []string{fmt.Sprintf("Total attendance (%g days) cannot exceed %d working days for %s",
			total, limit, sub.Period)}
	}
	return nil
}

func attendanceWarnings(sub form.Submission) []string {
	var out []string
	if w := sub.Attendance.WFO; w > 0 && w < 1 {
		out = append(out, "Partial WFO days entered, please check")
	}
	if w := sub.Attendance.WFH; w > 0 && w < 1 {
		out = append(out, "Partial WFH days entered, please check")
	}
	if _, warn := tasks(sub.Tasks.Count); warn != "" {
		out = append(out, warn)
	}
	if sub.Tasks.Count > 0 && sub.Tasks.EvidenceLink == "" {
		out = append(out, "Add an evidence link for completed work")
	}
	return out
}

func clientWarnings(sub form.Submission) []string {
	var out []string
	for i, c := range sub.Clients {
		if c.OnTime > c.Deliverables {
			out = append(out, fmt.Sprintf("Client %d: on-time deliverables exceed the total", i+1))
		}
	}
	return out
}

func learningWarnings(sub form.Submission) []string {
	var out []string
	hours := float64(sub.LearningMinutes()) / 60
	if hours < TargetLearningHrs {
		out = append(out, fmt.Sprintf("Only %.1f learning hours logged, the target is %g or more", hours, TargetLearningHrs))
	}
	for i, l := range sub.Learning {
		if l.DurationMins > MaxLearningMins {
			out = append(out, fmt.Sprintf("Learning activity %d: Duration is unusually long (%d minutes)", i+1, l.DurationMins))
		}
	}
	return out
}
