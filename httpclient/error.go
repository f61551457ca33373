package httpclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"

	"github.com/circleci/daprit/o11y"
)

// HTTPError is returned when the response status code is not 2XX
type HTTPError struct {
	method   string
	route    string
	code     int
	attempts int
	final    bool
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("the response from %s %s was %d (%s) (%d attempts)",
		e.method, e.route, e.code, http.StatusText(e.code), e.attempts)
}

func (e *HTTPError) Code() int {
	return e.code
}

// Is reports retried attempts, and a final 404, as o11y warnings so they are not traced as
// errors. A sidecar still booting answers health checks with 5XX.
func (e *HTTPError) Is(target error) bool {
	if !o11y.IsWarningNoUnwrap(target) {
		return false
	}
	return !e.final || e.code == http.StatusNotFound
}

// HasStatusCode reports whether err is an HTTPError with one of codes.
func HasStatusCode(err error, codes ...int) bool {
	e := &HTTPError{}
	if !errors.As(err, &e) {
		return false
	}
	for _, code := range codes {
		if e.code == code {
			return true
		}
	}
	return false
}

func statusError(r Request, code, attempts int) error {
	if code < 300 {
		return nil
	}
	err := &HTTPError{method: r.Method, route: r.Route, code: code, attempts: attempts}
	if code >= 500 {
		return err
	}
	return backoff.Permanent(err)
}

func finalise(err error) error {
	e := &HTTPError{}
	if errors.As(err, &e) {
		e.final = true
	}
	return err
}
