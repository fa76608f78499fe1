package virtualize

import "fmt"

// CodeTopLevelFrame marks a top-level statement that would need a frame.
const CodeTopLevelFrame = "E301"

// Error is a fatal virtualization failure.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}
