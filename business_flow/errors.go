// Package businessflow contains the use cases behind the admin API and the recommendation engine
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Admin-related errors
	ErrAdminNotFound      = errors.New("admin not found")
	ErrAdminInactive      = errors.New("admin account is inactive")
	ErrIncorrectPassword  = errors.New("incorrect password")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Post-related errors
	ErrPostNotFound           = errors.New("post not found")
	ErrInvalidContent         = errors.New("post content is required")
	ErrContentTooLong         = errors.New("post content is too long")
	ErrScheduleInPast         = errors.New("scheduled time is in the past")
	ErrNoDestinations         = errors.New("at least one destination is required")
	ErrDuplicateDestination   = errors.New("destination listed more than once")
	ErrPostAlreadyFinished    = errors.New("post has no pending publications")
	ErrPostNotPublished       = errors.New("post has no published publications")
	ErrDispatcherNotAvailable = errors.New("dispatcher not available")

	// Recommendation-related errors
	ErrRecommendationNotFound = errors.New("recommendation not found")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
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

func IsAdminNotFound(err error) bool {
	return errors.Is(err, ErrAdminNotFound)
}

func IsAdminInactive(err error) bool {
	return errors.Is(err, ErrAdminInactive)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsPostNotFound(err error) bool {
	return errors.Is(err, ErrPostNotFound)
}

func IsInvalidContent(err error) bool {
	return errors.Is(err, ErrInvalidContent)
}

func IsContentTooLong(err error) bool {
	return errors.Is(err, ErrContentTooLong)
}

func IsScheduleInPast(err error) bool {
	return errors.Is(err, ErrScheduleInPast)
}

func IsNoDestinations(err error) bool {
	return errors.Is(err, ErrNoDestinations)
}

func IsDuplicateDestination(err error) bool {
	return errors.Is(err, ErrDuplicateDestination)
}

func IsPostAlreadyFinished(err error) bool {
	return errors.Is(err, ErrPostAlreadyFinished)
}

func IsPostNotPublished(err error) bool {
	return errors.Is(err, ErrPostNotPublished)
}

func IsDispatcherNotAvailable(err error) bool {
	return errors.Is(err, ErrDispatcherNotAvailable)
}

func IsRecommendationNotFound(err error) bool {
	return errors.Is(err, ErrRecommendationNotFound)
}

// IsValidationError reports whether err was caused by bad caller input
func IsValidationError(err error) bool {
	return IsInvalidContent(err) ||
		IsContentTooLong(err) ||
		IsScheduleInPast(err) ||
		IsNoDestinations(err) ||
		IsDuplicateDestination(err) ||
		errors.Is(err, ErrInvalidPage) ||
		errors.Is(err, ErrInvalidPageSize)
}
