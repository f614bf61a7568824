package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// errUnauthorized covers missing sessions, missing memberships, insufficient
// roles, and entities resolved through a membership check that do not exist.
// All four look identical to the caller on purpose.
func errUnauthorized() *DomainError {
	return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
}

func errValidation(message string) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

func errAlreadyMember() *DomainError {
	return domainError(http.StatusBadRequest, "ALREADY_MEMBER", "Already a member of this workspace", nil)
}

func errLifecycle(stage string) *DomainError {
	return domainError(http.StatusInternalServerError, "LIFECYCLE_FAILED", "Delete did not complete", map[string]any{"stage": stage})
}
