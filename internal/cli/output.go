package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/blockc/internal/codegen"
	"github.com/roach88/blockc/internal/config"
	"github.com/roach88/blockc/internal/resolve"
	"github.com/roach88/blockc/internal/source"
	"github.com/roach88/blockc/internal/virtualize"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The sources do not compile
	ExitCommandError = 2 // Command error (missing project file, unwritable output, etc.)
)

// Error codes for failures that carry no compiler code.
const (
	ErrCodeGeneric = "E001" // Generic/unknown error
	ErrCodeConfig  = "E002" // Project file missing or invalid
	ErrCodeSource  = "E003" // Malformed source document
	ErrCodeExists  = "E004" // Scaffold target already holds a project
	ErrCodeCache   = "E005" // Build cache unreadable
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E203", "C104", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// errorCode picks the diagnostic code for err. Compiler stages carry their
// own codes; other failures fall back to a generic command code.
func errorCode(err error) string {
	var (
		resolveErr *resolve.Error
		virtErr    *virtualize.Error
		genErr     *codegen.Error
		srcErr     *source.Error
		cfgErrs    config.ValidationErrors
	)
	switch {
	case errors.As(err, &resolveErr):
		return resolveErr.Code
	case errors.As(err, &virtErr):
		return virtErr.Code
	case errors.As(err, &genErr):
		return genErr.Code
	case errors.As(err, &srcErr):
		return ErrCodeSource
	case errors.As(err, &cfgErrs), errors.Is(err, config.ErrNotFound):
		return ErrCodeConfig
	default:
		return ErrCodeGeneric
	}
}

// fail reports err through the formatter and returns the matching exit
// error. Compile errors exit with ExitFailure, everything else with
// ExitCommandError.
func fail(f *OutputFormatter, message string, err error) error {
	return failCode(f, errorCode(err), message, err)
}

// failCode is fail with an explicit diagnostic code.
func failCode(f *OutputFormatter, code, message string, err error) error {
	var details any
	var cfgErrs config.ValidationErrors
	if errors.As(err, &cfgErrs) {
		details = []config.ValidationError(cfgErrs)
	}
	_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), details)

	exit := ExitCommandError
	switch code {
	case ErrCodeGeneric, ErrCodeConfig, ErrCodeExists, ErrCodeCache:
	default:
		exit = ExitFailure
	}
	return WrapExitError(exit, message, err)
}
