package table

import (
	"fmt"

	"github.com/hephy-dd/table-control/pkg/types"
)

// Diagnostic codes pushed onto the error stack. 1xx covers protocol
// errors, 2xx motion errors, 3xx calibration errors.
const (
	CodeInvalidCommand    = 100
	CodeInvalidAttributes = 101
	CodeMotionFailed      = 200
	CodeLimitExceeded     = 201
	CodeMoveInProgress    = 202
	CodeCalibrationFailed = 300
	CodeCalibrationLocked = 301
)

// Error is a command failure with a diagnostic code. It is surfaced to
// the issuing client and, depending on class and dialect, pushed onto
// the error stack.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Entry converts the error into an error stack entry.
func (e *Error) Entry() types.ErrorEntry {
	return types.ErrorEntry{Code: e.Code, Message: e.Message}
}

// IsProtocol reports whether the error is a protocol-class error
// (malformed or unknown command). Protocol errors are pushed for the
// SCPI dialect but reported inline only for the legacy dialect.
func (e *Error) IsProtocol() bool {
	return e.Code >= 100 && e.Code < 200
}

var (
	ErrInvalidCommand    = &Error{Code: CodeInvalidCommand, Message: "invalid command"}
	ErrInvalidAttributes = &Error{Code: CodeInvalidAttributes, Message: "invalid attributes"}
	ErrMoveInProgress    = &Error{Code: CodeMoveInProgress, Message: "move already in progress"}
	ErrCalibrationLocked = &Error{Code: CodeCalibrationLocked, Message: "calibration locked"}
)

func limitError(target types.Position) *Error {
	return &Error{
		Code:    CodeLimitExceeded,
		Message: fmt.Sprintf("target %.6f %.6f %.6f exceeds axis limits", target.X, target.Y, target.Z),
	}
}

func motionError(err error) *Error {
	return &Error{Code: CodeMotionFailed, Message: err.Error()}
}

func calibrationError(err error) *Error {
	return &Error{Code: CodeCalibrationFailed, Message: err.Error()}
}
