package remote

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v30/github"

	"github.com/redactyl/piiscan/internal/errs"
)

// classify maps a go-github error onto the errs taxonomy. Context errors and
// transport failures are wrapped and stay matchable.
func classify(err error, what string) error {
	var rl *github.RateLimitError
	if errors.As(err, &rl) {
		return &errs.RateLimitError{Reset: rl.Rate.Reset.Time, Err: err}
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return &errs.RateLimitError{RetryAfter: abuse.GetRetryAfter(), Err: err}
	}
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		switch er.Response.StatusCode {
		case http.StatusNotFound:
			return errs.Wrap(errs.ErrNotFound, err, what)
		case http.StatusTooManyRequests:
			return &errs.RateLimitError{RetryAfter: retryAfter(er.Response.Header), Err: err}
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
