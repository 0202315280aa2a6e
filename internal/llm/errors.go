package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFatalAPI marks provider errors that will not succeed on retry, such
// as exhausted quota or bad credentials. Callers check it with errors.Is
// to tell a dead provider from a transient failure; the router escalates
// these in its logs.
var ErrFatalAPI = errors.New("fatal API error")

var fatalMarkers = []string{
	"credit balance",
	"rate limit",
	"quota exceeded",
	"billing",
	"invalid api key",
	"authentication failed",
	"unauthorized",
	"401",
	"403",
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range fatalMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// wrapFatalError tags fatal provider errors with ErrFatalAPI. Non-fatal
// errors pass through unchanged.
func wrapFatalError(err error) error {
	if err == nil {
		return nil
	}
	if isFatalAPIError(err) {
		return fmt.Errorf("%w: %w", ErrFatalAPI, err)
	}
	return err
}
