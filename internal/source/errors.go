package source

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited is returned when a provider answers 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrNoData means the source answered but had nothing usable.
	ErrNoData = errors.New("no data")

	// ErrShape means the payload was JSON of an unexpected shape.
	ErrShape = errors.New("unexpected response shape")

	// ErrDisabled is returned by providers that are not configured.
	ErrDisabled = errors.New("source disabled")
)

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (%s)", e.Code, http.StatusText(e.Code), e.URL)
}

// Is lets errors.Is(err, ErrRateLimited) match a 429.
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.Code == http.StatusTooManyRequests
}
