package businessflow

import (
	"errors"
	"fmt"
)

var (
	// Reporting errors
	ErrUnknownJobKind    = errors.New("unknown reporting job kind")
	ErrUnknownReportLane = errors.New("unknown report lane")
	ErrReportNotFound    = errors.New("report not found")
	ErrReportNotPending  = errors.New("report is not pending on this lane")
	ErrRunInProgress     = errors.New("reporting run already in progress")
	ErrInvalidWindow     = errors.New("window start cannot be after window end")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsReportNotFound(err error) bool {
	return errors.Is(err, ErrReportNotFound)
}

func IsRunInProgress(err error) bool {
	return errors.Is(err, ErrRunInProgress)
}
