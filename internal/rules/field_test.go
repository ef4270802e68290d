package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/identity"
)

func TestField_ValidateField(t *testing.T) {
	f := NewField(identity.DefaultPolicy())
	base := form.Empty("2026-09")
	base.Learning = []form.LearningEntry{{Title: "Go course", DurationMins: 90}}

	tests := []struct {
		name    string
		path    form.Path
		value   any
		wantErr string
		wantWrn string
	}{
		{"name empty", form.PathName, "  ", "Full name is required", ""},
		{"name short", form.PathName, "J", "Name must be at least 2 characters", ""},
		{"name ok", form.PathName, "Priya Nair", "", ""},
		{"name accented", form.PathName, "José O'Neil", "", ""},
		{"name digits", form.PathName, "R2D2", "", "Name contains unusual characters, please check it"},
		{"phone empty", form.PathPhone, "", "Phone number is required", ""},
		{"phone partial", form.PathPhone, "98765", "Phone number incomplete (5/10 digits)", ""},
		{"phone long", form.PathPhone, "987654321012", "Phone number too long (max 10 digits)", ""},
		{"phone prefix", form.PathPhone, "1234567890", "", "Phone number usually starts with 6, 7, 8 or 9"},
		{"phone ok", form.PathPhone, "9876543210", "", ""},
		{"email bad", form.PathEmail, "priya@", "Email address is not valid", ""},
		{"department empty", form.PathDepartment, "", "Department is required", ""},
		{"roles empty", form.PathRoles, []string{}, "Select at least one role", ""},
		{"period empty", form.PathPeriod, "", "Reporting month is required", ""},
		{"period bad", form.PathPeriod, "2026-13", "Reporting month must be in YYYY-MM format", ""},
		{"wfo negative", form.PathWFO, -1.0, "Work from office days cannot be negative", ""},
		{"wfo over", form.PathWFO, 25, "Work from office days cannot exceed 24 working days for 2026-09", ""},
		{"wfh partial", form.PathWFH, 0.5, "", "Partial work from home days entered, please check"},
		{"tasks zero", form.PathTaskCount, 0, "", "No tasks reported"},
		{"tasks high", form.PathTaskCount, 150, "", "Task count is unusually high, please check"},
		{"tasks over", form.PathTaskCount, 201, "Task count must be 200 or less", ""},
		{"evidence bad", form.PathEvidence, "drive/abc", "Evidence link must start with http:// or https://", ""},
		{"learning title", form.LearningPath(0, "title"), " ", "Learning activity 1: Title is required", ""},
		{"learning zero", form.LearningPath(0, "durationMins"), 0, "Learning activity 1: Duration must be greater than 0", ""},
		{"learning long", form.LearningPath(0, "durationMins"), 600, "", "Learning activity 1: Duration is unusually long (600 minutes)"},
		{"no rule", form.PathFbCompany, "great", "", ""},
		{"wrong type", form.PathTaskCount, "many", "Invalid value for tasks.count", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errMsg, warning := f.ValidateField(tt.path, tt.value, base)
			assert.Equal(t, tt.wantErr, errMsg)
			assert.Equal(t, tt.wantWrn, warning)
		})
	}
}

func TestField_DoesNotModifySubmission(t *testing.T) {
	f := NewField(identity.DefaultPolicy())
	sub := form.Empty("2026-09")
	sub.Identity.Roles = []string{"Developer"}

	f.ValidateField(form.PathRoles, []string{}, sub)
	assert.Equal(t, []string{"Developer"}, sub.Identity.Roles)
}
