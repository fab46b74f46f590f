package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error unwraps to exactly one of these, so callers
// branch with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrConcurrentWrite = errors.New("concurrent write conflict")
)

// Rule codes carried by Conflict errors.
const (
	CodeHoliday                    = "HOLIDAY"
	CodeDailyCapReached            = "DAILY_CAP_REACHED"
	CodePreparationDays            = "PREPARATION_DAYS"
	CodeRecoveryDays               = "RECOVERY_DAYS"
	CodeSpacingDays                = "SPACING_DAYS"
	CodeExcludesSameDay            = "EXCLUDES_SAME_DAY"
	CodePrerequisiteMissing        = "PREREQUISITE_MISSING"
	CodeMinDaysPrerequisiteMissing = "MIN_DAYS_PREREQUISITE_MISSING"
	CodeMinDaysNotElapsed          = "MIN_DAYS_NOT_ELAPSED"
	CodeDoctorBusy                 = "DOCTOR_BUSY"
	CodeRoomBusy                   = "ROOM_BUSY"
	CodeParticipantBusy            = "PARTICIPANT_BUSY"
	CodeRoomIncompatible           = "ROOM_INCOMPATIBLE"
	CodeRoomInactive               = "ROOM_INACTIVE"
	CodeDoctorNotQualified         = "DOCTOR_NOT_QUALIFIED"
	CodeEmployeeInactive           = "EMPLOYEE_INACTIVE"
	CodeInvalidTransition          = "INVALID_STATUS_TRANSITION"
	CodeResourceLocked             = "RESOURCE_LOCKED"
	CodeServiceInactive            = "SERVICE_INACTIVE"
)

// Error is a structured rejection. Details carries the involved codes and
// day gaps so callers can build staff-facing messages without re-deriving
// the reason.
type Error struct {
	Kind    error
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NotFound(code, format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func InvalidInput(code, format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidInput, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Conflict(code, format string, args ...any) *Error {
	return &Error{Kind: ErrConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

func ConcurrentWrite(format string, args ...any) *Error {
	return &Error{Kind: ErrConcurrentWrite, Code: CodeResourceLocked, Message: fmt.Sprintf(format, args...)}
}

// With attaches a detail entry and returns e for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// AsError extracts a structured error from err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether err carries the given rule code.
func HasCode(err error, code string) bool {
	de, ok := AsError(err)
	return ok && de.Code == code
}
