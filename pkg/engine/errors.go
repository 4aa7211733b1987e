package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/winxky/cordova-plugman/pkg/fileops"
	"github.com/winxky/cordova-plugman/pkg/manifest"
	"github.com/winxky/cordova-plugman/pkg/platforms"
	"github.com/winxky/cordova-plugman/pkg/policy"
	"github.com/winxky/cordova-plugman/pkg/stores"
	"github.com/winxky/cordova-plugman/pkg/xmlpatch"
)

// ErrorClass represents the classification of an error for recovery logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a failure that may succeed when repeated,
	// such as a busy ledger or a cancelled context.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassConflict indicates the project already holds something the
	// operation would create.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a non-recoverable error.
	// Examples: a missing source file, an unknown platform, a bad manifest.
	ErrorClassPermanent ErrorClass = "permanent"
)

// Sentinel errors matched with errors.Is through any EngineError.
var (
	ErrSourceNotFound      = fileops.ErrSourceNotFound
	ErrTargetAlreadyExists = fileops.ErrTargetAlreadyExists
	ErrUnsupportedPlatform = platforms.ErrUnsupportedPlatform
	ErrXMLAnchorNotFound   = xmlpatch.ErrAnchorNotFound
	ErrPluginNotFound      = manifest.ErrPluginNotFound
	ErrPolicyDenied        = policy.ErrDenied
	ErrNotInstalled        = errors.New("plugin not installed")
	ErrInvalidRequest      = errors.New("invalid request")
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the plugin id that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the action being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Resource != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (plugin=%s, operation=%s): %s",
			e.Class, e.Message, e.Resource, e.Operation, e.unwrapMessage())
	}
	if e.Resource != "" {
		return fmt.Sprintf("[%s] %s (plugin=%s): %s",
			e.Class, e.Message, e.Resource, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassTransient,
		Message: message,
		Err:     err,
	}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassConflict,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// WithResource adds plugin context to an error.
func (e *EngineError) WithResource(pluginID string) *EngineError {
	e.Resource = pluginID
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassConflict
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// CodeOf returns the code of the first EngineError in err's chain.
func CodeOf(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Error codes.
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeSourceNotFound      = "SOURCE_NOT_FOUND"
	ErrCodeTargetAlreadyExists = "TARGET_ALREADY_EXISTS"
	ErrCodeUnsupportedPlatform = "UNSUPPORTED_PLATFORM"
	ErrCodeNotInstalled        = "NOT_INSTALLED"
	ErrCodeXMLAnchorNotFound   = "XML_ANCHOR_NOT_FOUND"
	ErrCodePluginNotFound      = "PLUGIN_NOT_FOUND"
	ErrCodeManifest            = "MANIFEST_ERROR"
	ErrCodePolicyDenied        = "POLICY_DENIED"
	ErrCodeLedger              = "LEDGER_ERROR"
	ErrCodeCanceled            = "CANCELED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// classify wraps err in an EngineError chosen by the sentinel it carries.
// Errors that are already classified are returned unchanged.
func classify(err error, pluginID string, action Action) error {
	if err == nil {
		return nil
	}

	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}

	var e *EngineError
	switch {
	case errors.Is(err, ErrSourceNotFound):
		e = NewPermanentError("source file not found", err).WithCode(ErrCodeSourceNotFound)
	case errors.Is(err, ErrTargetAlreadyExists):
		e = NewConflictError("target already exists", err).WithCode(ErrCodeTargetAlreadyExists)
	case errors.Is(err, ErrUnsupportedPlatform):
		e = NewPermanentError("unsupported platform", err).WithCode(ErrCodeUnsupportedPlatform)
	case errors.Is(err, ErrXMLAnchorNotFound):
		e = NewPermanentError("xml anchor not found", err).WithCode(ErrCodeXMLAnchorNotFound)
	case errors.Is(err, ErrNotInstalled):
		e = NewPermanentError("plugin not installed", err).WithCode(ErrCodeNotInstalled)
	case errors.Is(err, ErrPluginNotFound):
		e = NewPermanentError("plugin not found", err).WithCode(ErrCodePluginNotFound)
	case errors.Is(err, ErrPolicyDenied):
		e = NewPermanentError("denied by policy", err).WithCode(ErrCodePolicyDenied)
	case errors.Is(err, ErrInvalidRequest):
		e = NewPermanentError("invalid request", err).WithCode(ErrCodeValidation)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e = NewTransientError("operation canceled", err).WithCode(ErrCodeCanceled)
	case errors.Is(err, stores.ErrNotFound):
		e = NewPermanentError("ledger record not found", err).WithCode(ErrCodeLedger)
	default:
		e = NewPermanentError(string(action)+" failed", err).WithCode(ErrCodeInternal)
	}

	return e.WithResource(pluginID).WithOperation(string(action))
}
