package main

import (
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy retries rate-limited calls with a provider-hint-aware wait.
// Any other error, or a rate limit persisting past MaxRetries, propagates
// to the caller. Sleep is injectable so tests can record waits.
type RetryPolicy struct {
	MaxRetries  int
	DefaultWait time.Duration
	Sleep       func(time.Duration)
}

func NewRetryPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:  maxRetries,
		DefaultWait: 15 * time.Second,
		Sleep:       time.Sleep,
	}
}

// Do invokes call, sleeping and retrying on rate-limit errors.
func (p RetryPolicy) Do(call func() error) error {
	attempt := 0
	for {
		err := call()
		if err == nil {
			return nil
		}
		if !isRateLimited(err) || attempt >= p.MaxRetries {
			return err
		}
		wait := p.DefaultWait
		if hint, ok := retryAfterHint(err); ok {
			wait = hint + 500*time.Millisecond
		}
		attempt++
		log.Printf("llm rate limited wait=%s attempt=%d", wait, attempt)
		p.Sleep(wait)
	}
}

// isRateLimited detects provider throttling from the error text. The SDK
// surfaces 429s as errors whose message carries the status code.
func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate_limit")
}

var retryAfterRe = regexp.MustCompile(`try again in (\d+(?:\.\d+)?)s`)

// retryAfterHint parses a provider-supplied "try again in Ns" hint from the
// error message, if present.
func retryAfterHint(err error) (time.Duration, bool) {
	m := retryAfterRe.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	secs, perr := strconv.ParseFloat(m[1], 64)
	if perr != nil {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
