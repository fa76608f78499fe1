package codegen

import "fmt"

// Error codes reported by Build.
const (
	// CodeNotAValue marks a command, hat or C block used as a value.
	CodeNotAValue = "E401"
	// CodeHatStatement marks a hat block used inside a script.
	CodeHatStatement = "E402"
	// CodeUnknownCall marks a call that names neither a routine nor a
	// catalog entry, or one called with the wrong number of arguments.
	CodeUnknownCall = "E403"
	// CodeUnlowered marks a statement the runtime cannot express, such as a
	// local or a return outside a virtualized routine.
	CodeUnlowered = "E404"
)

// Error aborts the build of one target.
type Error struct {
	Code    string `json:"code"`
	Target  string `json:"target,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Target, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}
