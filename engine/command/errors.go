package command

import "fmt"

// Code identifies a failed command in replies.
type Code int

const (
	CodeEmpty     Code = 1
	CodeNotFound  Code = 2
	CodeIncorrect Code = 3
	// CodeNoData means the command ran but every request failed or was
	// malformed.
	CodeNoData Code = 4
	CodeFailed Code = 5
)

// Error is a command failure that is reported back to the client.
type Error struct {
	Code    Code
	Message string
	Details string
}

func (e *Error) Error() string {
	return fmt.Sprintf("command error %d: %s", e.Code, e.Message)
}

// Reply renders the error in the wire format.
func (e *Error) Reply() ErrorReply {
	return ErrorReply{Error: true, Code: int(e.Code), Message: e.Message, Details: e.Details}
}

// ErrorReply is the JSON form of a failed command.
type ErrorReply struct {
	Error   bool   `json:"error"`
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
	Details string `json:"details,omitempty"`
}
