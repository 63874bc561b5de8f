package strapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAlreadyExists marks a registration rejected because the account is
	// already there.
	ErrAlreadyExists = errors.New("account already exists")

	// ErrLoginBackoff is returned when an admin login was attempted too
	// recently to try again.
	ErrLoginBackoff = errors.New("admin login attempted too recently")

	// ErrUnhealthy is joined into errors of requests abandoned while waiting
	// for the remote to become healthy.
	ErrUnhealthy = errors.New("strapi is not healthy")
)

// RequestError is any non-2xx answer or transport failure that is not a
// rate limit or an auth rejection.
type RequestError struct {
	Method       string
	ResourceType string
	ID           string
	StatusCode   int
	Message      string
	Err          error
}

func (e *RequestError) Error() string {
	target := e.ResourceType
	if e.ID != "" {
		target += "/" + e.ID
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("strapi %s %s failed: %v", e.Method, target, e.Err)
	}
	return fmt.Sprintf("strapi %s %s failed: status=%d message=%s", e.Method, target, e.StatusCode, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is matches ErrAlreadyExists for the remote's duplicate-account answers.
func (e *RequestError) Is(target error) bool {
	if target != ErrAlreadyExists || e.StatusCode != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "already taken") ||
		strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "cannot register a new super admin")
}

// Unreachable reports whether the request never got an HTTP answer.
func (e *RequestError) Unreachable() bool {
	return e.StatusCode == 0
}

// AuthExpiredError means the bearer token was rejected (401/403).
type AuthExpiredError struct {
	Method       string
	ResourceType string
	ID           string
	StatusCode   int
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("strapi %s %s rejected token: status=%d", e.Method, e.ResourceType, e.StatusCode)
}

// AuthError wraps a failed login or registration.
type AuthError struct {
	Email string
	Op    string
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("strapi %s for %s failed: %v", e.Op, e.Email, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
