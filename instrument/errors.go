package instrument

import (
	"fmt"
	"strconv"
	"strings"
)

// CommandError is raised when the device sets the command error bit while executing a command.
type CommandError struct {
	Code    int
	Message string
}

func (e *CommandError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("command error %d: %s", e.Code, e.Message)
	}
	return "command error: " + e.Message
}

// parseEventMessage turns an EVMSG? answer such as `113,"Undefined header"` into a CommandError.
func parseEventMessage(resp string) *CommandError {
	resp = strings.TrimSpace(resp)
	codeText, msg, ok := strings.Cut(resp, ",")
	if !ok {
		return &CommandError{Message: strings.Trim(resp, `"`)}
	}
	code, _ := strconv.Atoi(strings.TrimSpace(codeText))
	return &CommandError{Code: code, Message: strings.Trim(strings.TrimSpace(msg), `"`)}
}

// ModelError is returned when the connected device is not a supported model.
type ModelError struct {
	Model string
}

func (e *ModelError) Error() string {
	return e.Model + " not currently supported"
}

// NewModelError returns an error for an unsupported model.
func NewModelError(model string) error {
	return &ModelError{Model: model}
}
