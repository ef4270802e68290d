package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFormatter(format string, verbose bool) (*OutputFormatter, *bytes.Buffer, *bytes.Buffer) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	return &OutputFormatter{Format: format, Writer: out, ErrWriter: diag, Verbose: verbose}, out, diag
}

func decodeResponse(t *testing.T, b *bytes.Buffer) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(b.Bytes(), &resp))
	return resp
}

type textResult struct{}

func (textResult) Text() string { return "2 drafts\n" }

func TestSuccess(t *testing.T) {
	t.Run("json_envelope", func(t *testing.T) {
		f, out, _ := newTestFormatter("json", false)
		require.NoError(t, f.Success(textResult{}))
		resp := decodeResponse(t, out)
		assert.Equal(t, "ok", resp.Status)
		assert.Nil(t, resp.Error)
	})

	t.Run("text_uses_texter", func(t *testing.T) {
		f, out, _ := newTestFormatter("text", false)
		require.NoError(t, f.Success(textResult{}))
		assert.Equal(t, "2 drafts\n", out.String())
	})

	t.Run("text_falls_back_to_fmt", func(t *testing.T) {
		f, out, _ := newTestFormatter("text", false)
		require.NoError(t, f.Success("No drafts."))
		assert.Equal(t, "No drafts.\n", out.String())
	})
}

func TestError(t *testing.T) {
	details := map[string]string{"flag": "--period", "value": "2026-13"}

	t.Run("json_carries_details", func(t *testing.T) {
		f, out, _ := newTestFormatter("json", false)
		require.NoError(t, f.Error(ErrCodeInvalidInput, "invalid period", details))
		resp := decodeResponse(t, out)
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeInvalidInput, resp.Error.Code)
		assert.Equal(t, "invalid period", resp.Error.Message)
		assert.Equal(t, map[string]interface{}{"flag": "--period", "value": "2026-13"}, resp.Error.Details)
	})

	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"text_quiet", false, false},
		{"text_verbose", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, out, _ := newTestFormatter("text", tt.verbose)
			require.NoError(t, f.Error(ErrCodeStore, "draft store unavailable", details))
			assert.Contains(t, out.String(), "Error [E102]: draft store unavailable")
			if tt.wantDetails {
				assert.Contains(t, out.String(), "Details:")
			} else {
				assert.NotContains(t, out.String(), "Details:")
			}
		})
	}
}

func TestFail(t *testing.T) {
	f, out, _ := newTestFormatter("json", false)

	err := f.Fail(ExitFailure, ErrCodeNotFound, "no draft under draft:2026-09:jo:new", nil)
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.True(t, exitErr.Reported)
	assert.Equal(t, ExitFailure, exitErr.Code)
	assert.Equal(t, ErrCodeNotFound, decodeResponse(t, out).Error.Code)
}

func TestVerboseLog_GoesToDiag(t *testing.T) {
	f, out, diag := newTestFormatter("json", true)
	f.VerboseLog("opening %s", "draftkeep.db")
	assert.Empty(t, out.String())
	assert.Equal(t, "opening draftkeep.db\n", diag.String())

	quiet, _, quietDiag := newTestFormatter("json", false)
	quiet.VerboseLog("opening %s", "draftkeep.db")
	assert.Empty(t, quietDiag.String())

	noDiag := &OutputFormatter{Writer: out, Verbose: true}
	noDiag.VerboseLog("fallback")
	assert.Equal(t, "fallback\n", out.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(&ExitError{Code: ExitCommandError, Message: "bad flag"}))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "open store", errors.New("locked")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "outer: open store: locked", wrapped.Error())
}
