// Package rules provides the default validators for the report form.
//
// Field checks run on every keystroke and are plain Go. Step checks unify
// the submission with the CUE definitions in schema.cue (#Step1..#Step5);
// each CUE violation is turned into a short sentence that names the field,
// since the session attaches messages to fields by their wording. Checks
// that depend on the calendar or on several fields at once, and all
// warnings, are computed in Go next to the CUE result.
package rules
