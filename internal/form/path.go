package form

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Path addresses one editable field of a Submission, e.g. "identity.phone"
// or "learning.2.title".
type Path string

// Fixed field paths.
const (
	PathName        Path = "identity.name"
	PathPhone       Path = "identity.phone"
	PathEmail       Path = "identity.email"
	PathDepartment  Path = "identity.department"
	PathRoles       Path = "identity.roles"
	PathPeriod      Path = "period"
	PathWFO         Path = "attendance.wfo"
	PathWFH         Path = "attendance.wfh"
	PathTaskCount   Path = "tasks.count"
	PathEvidence    Path = "tasks.evidenceLink"
	PathFbCompany   Path = "feedback.company"
	PathFbHR        Path = "feedback.hr"
	PathFbChallenge Path = "feedback.challenges"
)

// Collection roots for indexed paths.
const (
	clientsRoot  = "clients"
	learningRoot = "learning"
)

// ErrUnknownPath is returned by Get and Set for paths outside the schema.
var ErrUnknownPath = errors.New("unknown field path")

// ClientPath builds "clients.<i>.<field>".
func ClientPath(i int, field string) Path {
	return Path(fmt.Sprintf("%s.%d.%s", clientsRoot, i, field))
}

// LearningPath builds "learning.<i>.<field>".
func LearningPath(i int, field string) Path {
	return Path(fmt.Sprintf("%s.%d.%s", learningRoot, i, field))
}

// IsIdentity reports whether p feeds the identity key.
func (p Path) IsIdentity() bool {
	return p == PathName || p == PathPhone || p == PathPeriod
}

// IsScored reports whether a change to p can change derived scores.
func (p Path) IsScored() bool {
	switch p {
	case PathDepartment, PathWFO, PathWFH, PathTaskCount, PathEvidence:
		return true
	}
	_, _, _, ok := p.indexed()
	return ok
}

// Step returns the form step that owns p, or 0 when unknown.
func (p Path) Step() int {
	s := string(p)
	switch {
	case strings.HasPrefix(s, "identity."), s == string(PathPeriod):
		return StepProfile
	case strings.HasPrefix(s, "attendance."), strings.HasPrefix(s, "tasks."):
		return StepAttendance
	case strings.HasPrefix(s, clientsRoot):
		return StepClients
	case strings.HasPrefix(s, learningRoot):
		return StepLearning
	case strings.HasPrefix(s, "feedback."):
		return StepFeedback
	}
	return 0
}

// indexed splits "root.<i>.field".
func (p Path) indexed() (root string, idx int, field string, ok bool) {
	parts := strings.Split(string(p), ".")
	if len(parts) != 3 || (parts[0] != clientsRoot && parts[0] != learningRoot) {
		return "", 0, "", false
	}
	i, err := strconv.Atoi(parts[1])
	if err != nil || i < 0 {
		return "", 0, "", false
	}
	return parts[0], i, parts[2], true
}

// Get returns the value stored at p.
func Get(s *Submission, p Path) (any, error) {
	switch p {
	case PathName:
		return s.Identity.Name, nil
	case PathPhone:
		return s.Identity.Phone, nil
	case PathEmail:
		return s.Identity.Email, nil
	case PathDepartment:
		return s.Identity.Department, nil
	case PathRoles:
		return cloneStrings(s.Identity.Roles), nil
	case PathPeriod:
		return s.Period, nil
	case PathWFO:
		return s.Attendance.WFO, nil
	case PathWFH:
		return s.Attendance.WFH, nil
	case PathTaskCount:
		return s.Tasks.Count, nil
	case PathEvidence:
		return s.Tasks.EvidenceLink, nil
	case PathFbCompany:
		return s.Feedback.Company, nil
	case PathFbHR:
		return s.Feedback.HR, nil
	case PathFbChallenge:
		return s.Feedback.Challenges, nil
	}

	root, i, field, ok := p.indexed()
	if !ok {
		return nil, fmt.Errorf("get %q: %w", p, ErrUnknownPath)
	}
	if root == clientsRoot {
		if i >= len(s.Clients) {
			return nil, fmt.Errorf("get %q: index out of range", p)
		}
		c := s.Clients[i]
		switch field {
		case "name":
			return c.Name, nil
		case "services":
			return cloneStrings(c.Services), nil
		case "satisfaction":
			return c.Satisfaction, nil
		case "deliverables":
			return c.Deliverables, nil
		case "onTime":
			return c.OnTime, nil
		case "escalated":
			return c.Escalated, nil
		}
		return nil, fmt.Errorf("get %q: %w", p, ErrUnknownPath)
	}

	if i >= len(s.Learning) {
		return nil, fmt.Errorf("get %q: index out of range", p)
	}
	l := s.Learning[i]
	switch field {
	case "title":
		return l.Title, nil
	case "durationMins":
		return l.DurationMins, nil
	case "link":
		return l.Link, nil
	}
	return nil, fmt.Errorf("get %q: %w", p, ErrUnknownPath)
}

// Set writes value at p. Numeric fields accept any Go integer or float
// value; string-list fields accept []string. An indexed path one past the
// end of its collection appends a zero element first.
func Set(s *Submission, p Path, value any) error {
	var err error
	switch p {
	case PathName:
		s.Identity.Name, err = asString(value)
	case PathPhone:
		s.Identity.Phone, err = asString(value)
	case PathEmail:
		s.Identity.Email, err = asString(value)
	case PathDepartment:
		s.Identity.Department, err = asString(value)
	case PathRoles:
		s.Identity.Roles, err = asStrings(value)
	case PathPeriod:
		s.Period, err = asString(value)
	case PathWFO:
		s.Attendance.WFO, err = asFloat(value)
	case PathWFH:
		s.Attendance.WFH, err = asFloat(value)
	case PathTaskCount:
		s.Tasks.Count, err = asInt(value)
	case PathEvidence:
		s.Tasks.EvidenceLink, err = asString(value)
	case PathFbCompany:
		s.Feedback.Company, err = asString(value)
	case PathFbHR:
		s.Feedback.HR, err = asString(value)
	case PathFbChallenge:
		s.Feedback.Challenges, err = asString(value)
	default:
		err = setIndexed(s, p, value)
	}
	if err != nil {
		return fmt.Errorf("set %q: %w", p, err)
	}
	return nil
}

func setIndexed(s *Submission, p Path, value any) error {
	root, i, field, ok := p.indexed()
	if !ok {
		return ErrUnknownPath
	}

	var err error
	if root == clientsRoot {
		if i > len(s.Clients) {
			return fmt.Errorf("index %d skips past end (len %d)", i, len(s.Clients))
		}
		c := ClientEntry{}
		if i < len(s.Clients) {
			c = s.Clients[i]
		}
		switch field {
		case "name":
			c.Name, err = asString(value)
		case "services":
			c.Services, err = asStrings(value)
		case "satisfaction":
			c.Satisfaction, err = asFloat(value)
		case "deliverables":
			c.Deliverables, err = asInt(value)
		case "onTime":
			c.OnTime, err = asInt(value)
		case "escalated":
			c.Escalated, err = asBool(value)
		default:
			return ErrUnknownPath
		}
		if err != nil {
			return err
		}
		if i == len(s.Clients) {
			s.Clients = append(s.Clients, c)
		} else {
			s.Clients[i] = c
		}
		return nil
	}

	if i > len(s.Learning) {
		return fmt.Errorf("index %d skips past end (len %d)", i, len(s.Learning))
	}
	l := LearningEntry{}
	if i < len(s.Learning) {
		l = s.Learning[i]
	}
	switch field {
	case "title":
		l.Title, err = asString(value)
	case "durationMins":
		l.DurationMins, err = asInt(value)
	case "link":
		l.Link, err = asString(value)
	default:
		return ErrUnknownPath
	}
	if err != nil {
		return err
	}
	if i == len(s.Learning) {
		s.Learning = append(s.Learning, l)
	} else {
		s.Learning[i] = l
	}
	return nil
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("want string, got %T", v)
	}
	return s, nil
}

func asStrings(v any) ([]string, error) {
	switch val := v.(type) {
	case []string:
		return cloneStrings(val), nil
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("want string element, got %T", e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("want []string, got %T", v)
}

func asBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("want bool, got %T", v)
	}
	return b, nil
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	}
	return 0, fmt.Errorf("want number, got %T", v)
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("want whole number, got %v", n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("want integer, got %T", v)
}
