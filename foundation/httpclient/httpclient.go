// Package httpclient provides basic http functions
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// StatusError is returned when a request completes with a non 2xx status
type StatusError struct {
	Url        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned %d: %s", e.Url, e.StatusCode, e.Body)
}

// retryable is true for server errors and rate limiting
func (e *StatusError) retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// RetryPolicy controls how GetJSON retries failed requests
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryPolicy retries for a few seconds, short enough to fit inside a polling interval
var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: 500 * time.Millisecond,
	MaxElapsedTime:  5 * time.Second,
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxElapsedTime = p.MaxElapsedTime
	return backoff.WithContext(b, ctx)
}

// GetBytes retrieves the body of url with a GET request, retrying according to policy.
// Client errors (4xx) other than 429 Too Many Requests are not retried. notify is called before each retry
// and may be nil.
func GetBytes(ctx context.Context,
	client *http.Client,
	url string,
	policy RetryPolicy,
	notify func(err error, wait time.Duration)) ([]byte, error) {

	operation := func() ([]byte, error) {
		body, err := getBytes(ctx, client, url)
		if statusErr, ok := err.(*StatusError); ok && !statusErr.retryable() {
			return nil, backoff.Permanent(err)
		}
		return body, err
	}
	return backoff.RetryNotifyWithData(operation, policy.backOff(ctx), notify)
}

// GetJSON retrieves url and decodes its json body into v
func GetJSON(ctx context.Context,
	client *http.Client,
	url string,
	policy RetryPolicy,
	notify func(err error, wait time.Duration),
	v interface{}) error {

	body, err := GetBytes(ctx, client, url, policy, notify)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}

func getBytes(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Url: url, StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length]
}
