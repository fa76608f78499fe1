package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockc/internal/codegen"
	"github.com/roach88/blockc/internal/config"
	"github.com/roach88/blockc/internal/resolve"
	"github.com/roach88/blockc/internal/source"
	"github.com/roach88/blockc/internal/virtualize"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"archive": "build/game.sb3"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "build/game.sb3", resp.Data.(map[string]any)["archive"])
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("E203", "build failed", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E203", resp.Error.Code)
	assert.Equal(t, "build failed", resp.Error.Message)
	assert.Nil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("2 target(s) OK"))
	assert.Contains(t, buf.String(), "2 target(s) OK")
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			err := formatter.Error("E003", "cannot read stage.yaml", map[string]string{"line": "4"})
			require.NoError(t, err)
			assert.Contains(t, buf.String(), "Error [E003]: cannot read stage.yaml")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details:")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	for _, verbose := range []bool{true, false} {
		t.Run(fmt.Sprint(verbose), func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: verbose}

			formatter.VerboseLog("Compile set: %v", []string{"greet"})

			if verbose {
				assert.Contains(t, buf.String(), "Compile set: [greet]")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestOutputFormatter_GetErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}

	f := &OutputFormatter{Writer: out}
	assert.Same(t, out, f.GetErrWriter())

	f.ErrWriter = errOut
	assert.Same(t, errOut, f.GetErrWriter())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"resolve", &resolve.Error{Code: resolve.CodeUnknownRoutine, Message: "unknown routine"}, "E203"},
		{"virtualize", &virtualize.Error{Code: "E301", Message: "frame"}, "E301"},
		{"codegen", &codegen.Error{Code: "E402", Message: "asset"}, "E402"},
		{"source", &source.Error{Path: "stage.yaml", Line: 3, Message: "bad item"}, ErrCodeSource},
		{"validation", config.ValidationErrors{{Field: "project.name", Code: "C101"}}, ErrCodeConfig},
		{"not found", config.ErrNotFound, ErrCodeConfig},
		{"other", errors.New("disk full"), ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
			wrapped := fmt.Errorf("sprites/cat.yaml: %w", tt.err)
			assert.Equal(t, tt.want, errorCode(wrapped), "wrapped")
		})
	}
}

func TestFail(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"compile error", &resolve.Error{Code: "E201", Message: "module math not found"}, "E201", ExitFailure},
		{"config error", config.ErrNotFound, ErrCodeConfig, ExitCommandError},
		{"generic", errors.New("permission denied"), ErrCodeGeneric, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "json", Writer: buf}

			err := fail(f, "build failed", tt.err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, "build failed: ")
		})
	}
}

func TestFail_ValidationDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	errs := config.ValidationErrors{
		{Field: "stage.path", Message: "file not found", Code: "C102"},
		{Field: "project.frame_width", Message: "must be at least 1", Code: "C105"},
	}
	_ = fail(f, "loading project", errs)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	details, ok := resp.Error.Details.([]any)
	require.True(t, ok)
	require.Len(t, details, 2)
	assert.Equal(t, "C105", details[1].(map[string]any)["code"])
}

func TestFailCode_Override(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	err := failCode(f, ErrCodeCache, "reading history", errors.New("database is locked"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E005]: reading history: database is locked")
}
