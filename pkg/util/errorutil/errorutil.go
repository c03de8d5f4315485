package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by services and the HTTP layer.
const (
	CodeValidation            = "VALIDATION_FAILED"
	CodeNotFound              = "NOT_FOUND"
	CodeGroupNotFound         = "GROUP_NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeConflict              = "CONFLICT"
	CodeAlreadyClaimed        = "ALREADY_CLAIMED"
	CodeInsufficientAuthority = "INSUFFICIENT_AUTHORITY"
	CodeNoAvailableAssignee   = "NO_AVAILABLE_ASSIGNEE"
	CodeNoEscalationRule      = "NO_ESCALATION_RULE"
	CodeUpstreamFailure       = "UPSTREAM_FAILURE"
	CodeInternal              = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewGroupNotFound reports that no active support group covers a location.
func NewGroupNotFound(building string, floor int) error {
	return NewDomainError(CodeGroupNotFound,
		fmt.Sprintf("no support group for building %s floor %d", building, floor),
		http.StatusNotFound,
		map[string]any{"building": building, "floor": floor})
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewAlreadyClaimed is returned when a concurrent claimant won the race.
func NewAlreadyClaimed(ticketID string) error {
	return NewDomainError(CodeAlreadyClaimed, "ticket already claimed", http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

func NewInsufficientAuthority(message string, details map[string]any) error {
	return NewDomainError(CodeInsufficientAuthority, message, http.StatusForbidden, details)
}

func NewNoAvailableAssignee(details map[string]any) error {
	return NewDomainError(CodeNoAvailableAssignee, "no available assignee", http.StatusUnprocessableEntity, details)
}

func NewNoEscalationRule(details map[string]any) error {
	return NewDomainError(CodeNoEscalationRule, "no escalation rule", http.StatusUnprocessableEntity, details)
}

// NewUpstreamFailure wraps a failed call to a collaborating service.
func NewUpstreamFailure(service string, err error) error {
	return &DomainError{
		Code:       CodeUpstreamFailure,
		Message:    fmt.Sprintf("%s call failed", service),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"service": service},
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// CodeOf returns the DomainError code carried by err, or "" when err is nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}

func MapError(err error) error {
	return ToDomainError(err)
}
