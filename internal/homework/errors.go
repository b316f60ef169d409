package homework

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteUnavailable covers transport failures, non-200 statuses and
	// bodies that are not a JSON object.
	ErrRemoteUnavailable = errors.New("homework API unavailable")

	ErrMalformedResponse = errors.New("malformed API response")
	ErrMissingKey        = errors.New("required key missing")
	ErrWrongShape        = errors.New("unexpected value type")

	ErrMissingField  = errors.New("submission field missing")
	ErrUnknownStatus = errors.New("unknown homework status")
)

// ResponseError describes which response invariant broke.
// It matches ErrMalformedResponse and its Reason.
type ResponseError struct {
	Key    string
	Reason error // ErrMissingKey or ErrWrongShape
	Detail string
}

func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("%s: %q: %s", ErrMalformedResponse.Error(), e.Key, e.Reason.Error())
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *ResponseError) Is(target error) bool {
	return target == ErrMalformedResponse || target == e.Reason
}

// FieldError names the submission field that is absent or not a string.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %q", ErrMissingField.Error(), e.Field)
}

func (e *FieldError) Unwrap() error { return ErrMissingField }

// StatusError carries a status value that has no verdict.
type StatusError struct {
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownStatus.Error(), e.Status)
}

func (e *StatusError) Unwrap() error { return ErrUnknownStatus }
