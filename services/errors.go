package services

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrorKind classifies service failures so transports can pick a response.
type ErrorKind string

const (
	KindNotFound              ErrorKind = "not_found"
	KindValidation            ErrorKind = "validation"
	KindInvalidStatus         ErrorKind = "invalid_status"
	KindCourseFeeNotInitiated ErrorKind = "course_fee_not_initiated"
	KindPrecondition          ErrorKind = "precondition"
	KindConflict              ErrorKind = "conflict"
	KindStorage               ErrorKind = "storage"
)

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// Error is the structured error returned by every service operation.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Validation(message string, fields ...FieldError) error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func InvalidStatus(status string) error {
	return &Error{Kind: KindInvalidStatus, Message: fmt.Sprintf("status %q is not allowed", status)}
}

func CourseFeeNotInitiated() error {
	return &Error{
		Kind:    KindCourseFeeNotInitiated,
		Message: "Please submit your course fee payment before uploading documents",
	}
}

func Precondition(message string) error {
	return &Error{Kind: KindPrecondition, Message: message}
}

func Conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

// Storage wraps a database or blob failure. The message is safe to show; err is not.
func Storage(message string, err error) error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// KindOf returns the kind of err, or "" for errors not produced by this package.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// AsError unwraps err into *Error when possible.
func AsError(err error) (*Error, bool) {
	var se *Error
	ok := errors.As(err, &se)
	return se, ok
}

// fromValidator converts go-playground validation errors into a validation Error.
func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Validation(err.Error())
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Error: describeTag(fe)})
	}
	return Validation("invalid input", fields...)
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "mobile":
		return "must be a 10 digit mobile number"
	case "pincode":
		return "must be a 6 digit pincode"
	case "utr":
		return "must be 6-30 letters or digits"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	default:
		return "is invalid"
	}
}
