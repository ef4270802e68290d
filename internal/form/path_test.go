package form

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_FixedPaths(t *testing.T) {
	s := Empty("2026-09")

	require.NoError(t, Set(&s, PathName, "Jo"))
	require.NoError(t, Set(&s, PathPhone, "9876543210"))
	require.NoError(t, Set(&s, PathRoles, []any{"SEO Executive/Manager"}))
	require.NoError(t, Set(&s, PathWFO, 12))
	require.NoError(t, Set(&s, PathTaskCount, float64(7)))

	assert.Equal(t, "Jo", s.Identity.Name)
	assert.Equal(t, "9876543210", s.Identity.Phone)
	assert.Equal(t, []string{"SEO Executive/Manager"}, s.Identity.Roles)
	assert.Equal(t, 12.0, s.Attendance.WFO)
	assert.Equal(t, 7, s.Tasks.Count)
}

func TestSet_RejectsWrongType(t *testing.T) {
	s := Empty("2026-09")

	err := Set(&s, PathName, 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want string")

	err = Set(&s, PathTaskCount, 2.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whole number")
}

func TestSet_UnknownPath(t *testing.T) {
	s := Empty("2026-09")

	for _, p := range []Path{"identity.nickname", "meta.tasks.count", "learning.x.title", "clients.0.color"} {
		err := Set(&s, p, "x")
		assert.ErrorIs(t, err, ErrUnknownPath, "path %q", p)
	}
}

func TestSet_IndexedAppendsOnlyAtEnd(t *testing.T) {
	s := Empty("2026-09")

	require.NoError(t, Set(&s, LearningPath(0, "title"), "Go generics"))
	require.NoError(t, Set(&s, LearningPath(0, "durationMins"), 90))
	require.NoError(t, Set(&s, LearningPath(1, "title"), "SQL tuning"))
	require.Len(t, s.Learning, 2)
	assert.Equal(t, 90, s.Learning[0].DurationMins)

	// Skipping an index would leave a hole in the list.
	err := Set(&s, LearningPath(5, "title"), "gap")
	require.Error(t, err)
	assert.Len(t, s.Learning, 2)

	require.NoError(t, Set(&s, ClientPath(0, "escalated"), true))
	require.Len(t, s.Clients, 1)
	assert.True(t, s.Clients[0].Escalated)
}

func TestGet_ReturnsCopies(t *testing.T) {
	s := Empty("2026-09")
	s.Identity.Roles = []string{"HR"}

	v, err := Get(&s, PathRoles)
	require.NoError(t, err)
	roles := v.([]string)
	roles[0] = "mutated"

	assert.Equal(t, "HR", s.Identity.Roles[0])

	_, err = Get(&s, LearningPath(0, "title"))
	assert.Error(t, err)
}

func TestPath_Classification(t *testing.T) {
	assert.True(t, PathPhone.IsIdentity())
	assert.True(t, PathPeriod.IsIdentity())
	assert.False(t, PathDepartment.IsIdentity())

	assert.True(t, PathDepartment.IsScored())
	assert.True(t, ClientPath(3, "satisfaction").IsScored())
	assert.False(t, PathFbHR.IsScored())

	assert.Equal(t, StepProfile, PathPeriod.Step())
	assert.Equal(t, StepAttendance, PathEvidence.Step())
	assert.Equal(t, StepClients, ClientPath(0, "name").Step())
	assert.Equal(t, StepLearning, LearningPath(2, "link").Step())
	assert.Equal(t, StepFeedback, PathFbChallenge.Step())
	assert.Equal(t, 0, Path("bogus").Step())
}

func TestClone_SharesNothing(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	s := Empty("2026-09")
	s.Identity.Roles = []string{"Sales"}
	s.Clients = []ClientEntry{{Name: "Acme", Services: []string{"SEO"}}}
	s.Learning = []LearningEntry{{Title: "a", DurationMins: 10}}
	s.SubmittedAt = &at

	c := s.Clone()
	c.Identity.Roles[0] = "x"
	c.Clients[0].Services[0] = "x"
	c.Learning[0].Title = "x"
	*c.SubmittedAt = at.Add(time.Hour)

	assert.Equal(t, "Sales", s.Identity.Roles[0])
	assert.Equal(t, "SEO", s.Clients[0].Services[0])
	assert.Equal(t, "a", s.Learning[0].Title)
	assert.Equal(t, at, *s.SubmittedAt)
}

func TestSubmission_JSONRoundTrip(t *testing.T) {
	s := Empty("2026-09")
	s.Identity.Name = "Jo"
	s.Learning = append(s.Learning, LearningEntry{Title: "k8s", DurationMins: 45})

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var back Submission
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}

func TestSubmission_Significance(t *testing.T) {
	s := Empty("2026-09")
	s.Identity.Name = "Jo"
	assert.True(t, s.HasIdentity())
	assert.False(t, s.IsSignificant())

	s.Feedback.HR = "all good"
	assert.True(t, s.IsSignificant())
}
