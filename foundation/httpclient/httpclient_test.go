package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
)

var testRetryPolicy = RetryPolicy{
	InitialInterval: time.Millisecond,
	MaxElapsedTime:  time.Second,
}

func TestGetBytes_retries(t *testing.T) {
	tests := []struct {
		name        string
		failures    []int
		wantErr     bool
		wantStatus  int
		wantCalls   int32
		wantRetries int
	}{
		{name: "success", wantCalls: 1},
		{name: "rate limited then success", failures: []int{http.StatusTooManyRequests, http.StatusTooManyRequests},
			wantCalls: 3, wantRetries: 2},
		{name: "server error then success", failures: []int{http.StatusBadGateway}, wantCalls: 2, wantRetries: 1},
		{name: "not found is not retried", failures: []int{http.StatusNotFound}, wantErr: true,
			wantStatus: http.StatusNotFound, wantCalls: 1},
		{name: "bad request is not retried", failures: []int{http.StatusBadRequest}, wantErr: true,
			wantStatus: http.StatusBadRequest, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				call := atomic.AddInt32(&calls, 1)
				if int(call) <= len(tt.failures) {
					w.WriteHeader(tt.failures[call-1])
					return
				}
				_, _ = w.Write([]byte("[1,2]"))
			}))
			defer server.Close()

			retries := 0
			body, err := GetBytes(context.Background(), server.Client(), server.URL, testRetryPolicy,
				func(err error, wait time.Duration) {
					retries++
				})

			is.Equal(atomic.LoadInt32(&calls), tt.wantCalls)
			is.Equal(retries, tt.wantRetries)
			if tt.wantErr {
				var statusError *StatusError
				is.True(errors.As(err, &statusError))
				is.Equal(statusError.StatusCode, tt.wantStatus)
				return
			}
			is.NoErr(err)
			is.Equal(string(body), "[1,2]")
		})
	}
}

func TestGetJSON(t *testing.T) {
	is := is.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name": "victoria"}`))
	}))
	defer server.Close()

	var decoded struct {
		Name string `json:"name"`
	}
	is.NoErr(GetJSON(context.Background(), server.Client(), server.URL, testRetryPolicy, nil, &decoded))
	is.Equal(decoded.Name, "victoria")

	var wrongShape []string
	is.True(GetJSON(context.Background(), server.Client(), server.URL, testRetryPolicy, nil, &wrongShape) != nil)
}
