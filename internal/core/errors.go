package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures for the HTTP layer
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindAuthorization
	KindUpstream
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindUpstream:
		return "upstream"
	}
	return "unknown"
}

// Stable machine-readable error codes
const (
	CodeNoFile              = "NO_FILE"
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeProjectNotFound     = "PROJECT_NOT_FOUND"
	CodeFileNotFound        = "FILE_NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeUploadError         = "UPLOAD_ERROR"
	CodeDeleteError         = "DELETE_ERROR"
	CodeListError           = "LIST_ERROR"
	CodeSignError           = "SIGN_ERROR"
	CodeProjectError        = "PROJECT_ERROR"
	CodeTemplateError       = "TEMPLATE_ERROR"
)

// ServiceError is the only error type the core returns to its callers
type ServiceError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, code, message string, err error) *ServiceError {
	return &ServiceError{Kind: kind, Code: code, Message: message, Err: err}
}

func validationError(code, message string, err error) *ServiceError {
	return newError(KindValidation, code, message, err)
}

func notFoundError(code, message string) *ServiceError {
	return newError(KindNotFound, code, message, nil)
}

func upstreamError(code, message string, err error) *ServiceError {
	return newError(KindUpstream, code, message, err)
}

// IsKind reports whether err is a ServiceError of kind
func IsKind(err error, kind ErrorKind) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Kind == kind
}

// CodeOf returns the code of a ServiceError, or "" for other errors
func CodeOf(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
