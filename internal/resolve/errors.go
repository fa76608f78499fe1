package resolve

import "fmt"

// Error codes.
const (
	CodeUnresolvedModule  = "E201"
	CodeMissingCapability = "E202"
	CodeUnknownRoutine    = "E203"
	CodeDuplicateRoutine  = "E204"
)

// Error is a fatal resolution failure.
type Error struct {
	Code    string `json:"code"`
	Module  string `json:"module,omitempty"`
	Routine string `json:"routine,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func unresolvedModule(name, importer string) *Error {
	msg := fmt.Sprintf("unresolved module %q", name)
	if importer != "" {
		msg += fmt.Sprintf(" (required by module %q)", importer)
	}
	return &Error{Code: CodeUnresolvedModule, Module: name, Message: msg}
}

func missingCapability(module, routine, capability string) *Error {
	return &Error{
		Code:    CodeMissingCapability,
		Module:  module,
		Routine: routine,
		Message: fmt.Sprintf("module %q uses return in %q but does not declare the %q extension", module, routine, capability),
	}
}

func unknownRoutine(name, caller string) *Error {
	msg := fmt.Sprintf("unknown routine %q", name)
	if caller != "" {
		msg += fmt.Sprintf(" called from %q", caller)
	}
	return &Error{Code: CodeUnknownRoutine, Routine: name, Message: msg}
}
