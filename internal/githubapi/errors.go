package githubapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/sakif/integration-dashboard/internal/apperror"
)

// wrapError converts a go-github error into the apperror taxonomy so the
// handler layer can pick the status code and the {"error", "details"} body.
//
// Context cancellation passes through untouched: the caller went away and
// there is nobody to show an error to.
func wrapError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return apperror.RateLimited("GitHub API rate limit exceeded", secondsUntil(rateErr.Rate.Reset.Time))
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		retry := 60
		if abuseErr.RetryAfter != nil {
			retry = int(math.Ceil(abuseErr.RetryAfter.Seconds()))
		}
		return apperror.RateLimited("GitHub secondary rate limit exceeded", retry)
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized:
			return apperror.Unauthorized("GitHub rejected the stored token; reconnect your account")
		case http.StatusForbidden:
			return apperror.Forbidden(fmt.Sprintf("GitHub denied access to %s", resource))
		case http.StatusNotFound:
			return apperror.NotFound("github "+resource, "current user")
		}
	}

	return apperror.Upstream(fmt.Sprintf("GitHub request for %s failed", resource), err)
}

// secondsUntil rounds up so a client never retries a second too early.
func secondsUntil(t time.Time) int {
	d := time.Until(t)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
