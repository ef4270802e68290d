package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/identity"
)

func TestMessagePath(t *testing.T) {
	tests := []struct {
		step int
		msg  string
		want form.Path
	}{
		{1, "Name must be at least 2 characters", form.PathName},
		{1, "Phone number must be exactly 10 digits", form.PathPhone},
		{1, "Enter a valid email address", form.PathEmail},
		{1, "Department is required", form.PathDepartment},
		{1, "Select at least one role", form.PathRoles},
		{1, "Reporting month must be in YYYY-MM format", form.PathPeriod},
		{2, "Total attendance cannot exceed 30 days", form.PathWFO},
		{2, "Work from office days must be between 0 and 31", form.PathWFO},
		{2, "WFH days cannot be negative", form.PathWFH},
		{2, "Task count must be a whole number", form.PathTaskCount},
		{2, "Evidence link must be a valid URL", form.PathEvidence},
		{3, "Client name is required", "clients"},
		{4, "Learning activity 2: duration must be at least 15 minutes", form.LearningPath(1, "durationMins")},
		{4, "Learning activity 1: title is required", form.LearningPath(0, "title")},
		{4, "Learning hours below the target", "learning"},
		{5, "Company feedback is too long", form.PathFbCompany},
		{5, "HR feedback is too long", form.PathFbHR},
		{5, "Challenges must be under 2000 characters", form.PathFbChallenge},
		{5, "Something went sideways", "step.5"},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, MessagePath(tt.step, tt.msg))
		})
	}
}

func TestMapMessages_JoinsCollisions(t *testing.T) {
	got := MapMessages(2, []string{
		"WFO days cannot be negative",
		"Total attendance cannot exceed 30 days",
		"Task count is required",
	})

	assert.Equal(t, map[form.Path]string{
		form.PathWFO:       "WFO days cannot be negative; Total attendance cannot exceed 30 days",
		form.PathTaskCount: "Task count is required",
	}, got)
}

func TestValidation_NilValidator(t *testing.T) {
	res := NewValidation(nil).ValidateStep(3, form.Empty(testPeriod))
	assert.Equal(t, 3, res.Step)
	assert.False(t, res.HasErrors())
	assert.NotNil(t, res.Warnings)
}

func TestCriticalCheck(t *testing.T) {
	policy := identity.DefaultPolicy()

	sub := form.Empty(testPeriod)
	sub.Identity.Name = "Priya"
	sub.Identity.Phone = "9876543210"
	sub.Identity.Roles = []string{"Developer"}
	assert.Empty(t, criticalCheck(sub, policy))

	sub.Identity.Phone = "98765x3210"
	sub.Identity.Department = " "
	failed := criticalCheck(sub, policy)
	assert.Len(t, failed, 2)
	assert.Contains(t, failed, form.PathPhone)
	assert.Contains(t, failed, form.PathDepartment)
}
