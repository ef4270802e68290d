// Package backend provides the default submission endpoint: an idempotent
// upsert of finalized reports into a SQLite table keyed by phone and
// reporting period.
package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/store"
)

const reportsSchema = `
CREATE TABLE IF NOT EXISTS reports (
    phone         TEXT NOT NULL,
    period        TEXT NOT NULL,
    name          TEXT NOT NULL,
    report        TEXT NOT NULL,
    submitted_at  INTEGER NOT NULL,  -- unix millis
    revision      INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (phone, period)
);`

// payload holds the fields the backend insists on. Checked with
// validator tags before anything is written.
type payload struct {
	Name       string   `validate:"required,min=2,max=100"`
	Phone      string   `validate:"required,numeric"`
	Email      string   `validate:"omitempty,email"`
	Department string   `validate:"required"`
	Roles      []string `validate:"min=1,dive,required"`
	Period     string   `validate:"required,datetime=2006-01"`
	WFO        float64  `validate:"gte=0"`
	WFH        float64  `validate:"gte=0"`
	Tasks      int      `validate:"gte=0,lte=200"`
}

// PayloadError reports a rejected submission. Fields maps each failing
// field to the validator tag it failed.
type PayloadError struct {
	Fields map[string]string
}

func (e *PayloadError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f, tag := range e.Fields {
		names = append(names, f+"="+tag)
	}
	sort.Strings(names)
	return "invalid submission: " + strings.Join(names, ", ")
}

// Report is one stored submission.
type Report struct {
	Submission  form.Submission
	SubmittedAt time.Time
	Revision    int
}

// Local is a Backend writing to a reports table.
type Local struct {
	db       *sql.DB
	validate *validator.Validate
	now      func() time.Time
}

// Option configures Local.
type Option func(*Local)

// WithNow sets the clock used for submitted_at.
func WithNow(now func() time.Time) Option {
	return func(l *Local) { l.now = now }
}

// NewLocal creates the reports table in db if needed.
func NewLocal(db *sql.DB, opts ...Option) (*Local, error) {
	if _, err := db.Exec(reportsSchema); err != nil {
		return nil, fmt.Errorf("create reports table: %w", err)
	}
	l := &Local{db: db, validate: validator.New(), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Submit stores sub, replacing any earlier report for the same phone and
// period. Submitting the same report twice leaves one row.
func (l *Local) Submit(ctx context.Context, sub form.Submission) (form.Submission, error) {
	if err := l.check(sub); err != nil {
		return form.Submission{}, err
	}

	at := l.now().UTC()
	saved := sub.Clone()
	saved.IsDraft = false
	saved.SubmittedAt = &at

	data, err := store.EncodeLegacy(saved)
	if err != nil {
		return form.Submission{}, err
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO reports (phone, period, name, report, submitted_at, revision)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(phone, period) DO UPDATE SET
			name         = excluded.name,
			report       = excluded.report,
			submitted_at = excluded.submitted_at,
			revision     = reports.revision + 1
	`, saved.Identity.Phone, saved.Period, saved.Identity.Name, string(data), at.UnixMilli())
	if err != nil {
		return form.Submission{}, fmt.Errorf("store report %s/%s: %w", saved.Identity.Phone, saved.Period, err)
	}
	return saved, nil
}

func (l *Local) check(sub form.Submission) error {
	p := payload{
		Name:       strings.TrimSpace(sub.Identity.Name),
		Phone:      sub.Identity.Phone,
		Email:      sub.Identity.Email,
		Department: sub.Identity.Department,
		Roles:      sub.Identity.Roles,
		Period:     sub.Period,
		WFO:        sub.Attendance.WFO,
		WFH:        sub.Attendance.WFH,
		Tasks:      sub.Tasks.Count,
	}
	err := l.validate.Struct(p)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("validate submission: %w", err)
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	return &PayloadError{Fields: fields}
}

// Get returns the report for phone and period, or nil if none exists.
func (l *Local) Get(ctx context.Context, phone, period string) (*Report, error) {
	var (
		data     string
		atMillis int64
		revision int
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT report, submitted_at, revision FROM reports WHERE phone = ? AND period = ?`,
		phone, period,
	).Scan(&data, &atMillis, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s/%s: %w", phone, period, err)
	}

	rec, err := store.DecodeRecord([]byte(data), true, 0, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("get report %s/%s: %w", phone, period, err)
	}
	return &Report{
		Submission:  rec.Submission,
		SubmittedAt: time.UnixMilli(atMillis).UTC(),
		Revision:    revision,
	}, nil
}

// Count returns the number of stored reports.
func (l *Local) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}
