package harness

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/draftkeep/internal/store"
)

// stateTables are the tables a final_state assertion may read. The reports
// table lives in the draft database when the harness runs the local backend.
var stateTables = map[string]bool{
	"drafts":      true,
	"submissions": true,
	"reports":     true,
}

// AssertionError is a failed assertion. Trace is attached for the trace
// assertions so the failure can be read without rerunning the scenario.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assertion failed: %s\n  Expected: %s\n  Actual: %s\n", e.Type, e.Expected, e.Actual)
	if len(e.Trace) == 0 {
		return b.String()
	}
	b.WriteString("\nFull trace:\n")
	for i, evt := range e.Trace {
		fmt.Fprintf(&b, "  [%d] +%dms %s %v\n", i+1, evt.At, evt.Type, evt.Data)
	}
	return b.String()
}

func traceFailure(kind string, trace []TraceEvent, expected, actual string) *AssertionError {
	return &AssertionError{Type: kind, Expected: expected, Actual: actual, Trace: trace}
}

func stateFailure(expected, actual string) *AssertionError {
	return &AssertionError{Type: AssertFinalState, Expected: expected, Actual: actual}
}

// matching returns the indexes of events of type typ whose data contains
// want.
func matching(trace []TraceEvent, typ string, want map[string]interface{}) []int {
	var idx []int
	for i, evt := range trace {
		if evt.Type == typ && matchData(evt.Data, want) {
			idx = append(idx, i)
		}
	}
	return idx
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	if len(matching(trace, a.Event, a.Data)) > 0 {
		return nil
	}
	return traceFailure(AssertTraceContains, trace,
		fmt.Sprintf("event %s with data %v", a.Event, a.Data), "not found in trace")
}

// assertTraceOrder requires a.Events to appear as a subsequence of the
// trace. Other events may sit between them.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for n, want := range a.Events {
		at := -1
		for i := next; i < len(trace); i++ {
			if trace[i].Type == want {
				at = i
				break
			}
		}
		if at >= 0 {
			next = at + 1
			continue
		}
		actual := "missing event: " + want
		if n > 0 {
			actual = fmt.Sprintf("no %s after %s (pos %d)", want, trace[next-1].Type, next)
		}
		return traceFailure(AssertTraceOrder, trace, fmt.Sprintf("events in order: %v", a.Events), actual)
	}
	return nil
}

// assertTraceCount counts events of a.Event, filtered by a.Data when set.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	got := len(matching(trace, a.Event, a.Data))
	if got == a.Count {
		return nil
	}
	return traceFailure(AssertTraceCount, trace,
		fmt.Sprintf("%d occurrences of %s", a.Count, a.Event), fmt.Sprintf("%d occurrences", got))
}

// assertFinalState looks up exactly one row of a state table and checks the
// columns named in a.Expect. Columns not named are ignored.
func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	if a.Table == "" {
		return fmt.Errorf("final_state assertion requires table name")
	}
	if !stateTables[a.Table] {
		return fmt.Errorf("invalid table name %q: final_state reads one of %s", a.Table, strings.Join(sortedNames(stateTables), ", "))
	}

	columns, err := tableColumns(ctx, st.DB(), a.Table)
	if err != nil {
		return err
	}
	for name := range a.Where {
		if !columns[name] {
			return fmt.Errorf("invalid column name %q in where clause: %s has columns %s", name, a.Table, strings.Join(sortedNames(columns), ", "))
		}
	}
	selected := sortedNames(a.Expect)
	for _, name := range selected {
		if !columns[name] {
			return stateFailure(fmt.Sprintf("field %q to exist", name),
				fmt.Sprintf("%s has no column %q (columns: %s)", a.Table, name, strings.Join(sortedNames(columns), ", ")))
		}
	}
	if len(selected) == 0 {
		selected = []string{"rowid"}
	}

	where, args, err := buildWhereClause(a.Where)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selected, ", "), a.Table)
	if where != "" {
		query += " WHERE " + where
	}
	query += " LIMIT 2"

	rows, err := st.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return stateFailure("query table "+a.Table, fmt.Sprintf("query error: %v", err))
	}
	defer rows.Close()

	var found [][]interface{}
	for rows.Next() {
		row := make([]interface{}, len(selected))
		ptrs := make([]interface{}, len(selected))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan %s row: %w", a.Table, err)
		}
		found = append(found, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read %s: %w", a.Table, err)
	}

	cond := formatWhereClause(a.Where)
	switch len(found) {
	case 0:
		return stateFailure(fmt.Sprintf("row in %s where %s", a.Table, cond), "row not found")
	case 1:
	default:
		return stateFailure(fmt.Sprintf("exactly one row in %s where %s", a.Table, cond),
			"multiple rows matched (assertion is ambiguous)")
	}

	for i, name := range selected {
		want, ok := a.Expect[name]
		if !ok {
			continue
		}
		got := found[0][i]
		if !stateValuesEqual(want, got) {
			return stateFailure(fmt.Sprintf("field %q = %v (type %T)", name, want, want),
				fmt.Sprintf("field %q = %v (type %T)", name, sqlScalar(got), sqlScalar(got)))
		}
	}
	return nil
}

// tableColumns reads the column set of table from the SQLite catalog.
func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("columns of %s: %w", table, err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, stateFailure("table "+table, "table does not exist")
	}
	return cols, nil
}

// buildWhereClause turns where into "col = ? AND ..." with columns in
// sorted order. Values are passed as arguments, never inlined.
func buildWhereClause(where map[string]interface{}) (string, []interface{}, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	names := sortedNames(where)
	clauses := make([]string, len(names))
	args := make([]interface{}, len(names))
	for i, name := range names {
		if !isColumnName(name) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause", name)
		}
		clauses[i] = name + " = ?"
		args[i] = whereArg(where[name])
	}
	return strings.Join(clauses, " AND "), args, nil
}

// isColumnName accepts lower-case snake_case names, the only shape the
// state tables use.
func isColumnName(s string) bool {
	if s == "" || s[0] == '_' || (s[0] >= '0' && s[0] <= '9') {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func whereArg(v interface{}) interface{} {
	switch s := sqlScalar(v).(type) {
	case nil, string, int64, float64:
		return s
	default:
		return fmt.Sprint(v)
	}
}

func formatWhereClause(where map[string]interface{}) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	names := sortedNames(where)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%v", name, where[name])
	}
	return strings.Join(parts, " AND ")
}

// sqlScalar maps a YAML or driver value onto the types SQLite hands back:
// TEXT as string, INTEGER as int64 (booleans are 0/1) and REAL as float64.
// Integral floats become int64 so 3.0 in YAML matches an INTEGER column.
func sqlScalar(v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return sqlScalar(float64(x))
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	default:
		return v
	}
}

// stateValuesEqual compares an expected YAML value with a column value.
func stateValuesEqual(expected, actual interface{}) bool {
	return reflect.DeepEqual(sqlScalar(expected), sqlScalar(actual))
}

// matchData reports whether actual holds every key of expected with an
// equal value. Extra keys in actual are ignored.
func matchData(actual, expected map[string]interface{}) bool {
	for k, want := range expected {
		got, ok := actual[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares two values after normalising both to JSON value
// types, so YAML ints match event float64s and []string matches []any.
func valuesEqual(actual, expected interface{}) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	a, err := normalize(actual)
	if err != nil {
		return false
	}
	e, err := normalize(expected)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(a, e)
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// AssertionContext gives final_state assertions access to the scenario's
// store.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

var traceAssertions = map[string]func([]TraceEvent, Assertion) error{
	AssertTraceContains: assertTraceContains,
	AssertTraceOrder:    assertTraceOrder,
	AssertTraceCount:    assertTraceCount,
}

// EvaluateAssertions runs every assertion against result and returns one
// message per failure. actx may be nil when no assertion reads the store.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		if check, ok := traceAssertions[a.Type]; ok {
			err = check(result.Trace, a)
		} else if a.Type == AssertFinalState {
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				ctx := actx.Ctx
				if ctx == nil {
					ctx = context.Background()
				}
				err = assertFinalState(ctx, actx.Store, a)
			}
		} else {
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}
