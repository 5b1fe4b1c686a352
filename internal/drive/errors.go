// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package drive

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Drive API error classes. Wrapped by Classify so callers can test with
// errors.Is.
var (
	ErrUnauthorized = errors.New("drive: unauthorised (invalid or expired credentials)")
	ErrForbidden    = errors.New("drive: forbidden (insufficient permissions)")
	ErrNotFound     = errors.New("drive: file not found")
	ErrRateLimited  = errors.New("drive: rate limit exceeded")
)

// statusCode returns the HTTP status carried by a googleapi error, or 0.
func statusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

// IsRateLimited reports whether err is a 429 from the Drive API.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited) || statusCode(err) == http.StatusTooManyRequests
}

// Classify wraps a Drive API error with the matching sentinel. Errors
// without a recognised status are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var sentinel error
	switch statusCode(err) {
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusForbidden:
		sentinel = ErrForbidden
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
