package util

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Retry runs fn up to attempts times with exponential backoff capped at max.
// Errors wrapped with Permanent stop the loop immediately. The last error is returned.
func Retry(ctx context.Context, name string, attempts int, initial, max time.Duration, fn func() error) error {
	if attempts < 1 {
		// retry-go treats 0 as unlimited
		attempts = 1
	}
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(initial),
		retry.MaxDelay(max),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[%s] attempt %d/%d failed: %v", name, n+1, attempts, err)
		}),
	)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return retry.Unrecoverable(err)
}
