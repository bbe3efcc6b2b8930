package resilience

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusError is returned when the final attempt ends with a retryable status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("resilience: upstream responded %s", e.Status)
}

// HTTPClient sends requests through a breaker and retries transport errors,
// 429 and 5xx responses according to Retry.
type HTTPClient struct {
	Client  *http.Client
	Breaker *Breaker
	Retry   RetryPolicy
	// Timeout bounds each attempt. Zero uses Client.Timeout.
	Timeout time.Duration
}

// Do executes req. The body is buffered so it can be replayed between
// attempts. Non-retryable responses are returned to the caller unchanged.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	body, err := readBody(req)
	if err != nil {
		return nil, err
	}
	target := "default"
	if cl.Breaker != nil {
		target = cl.Breaker.Target()
	}

	var lastErr error
	maxAttempts := cl.Retry.attempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if cl.Breaker != nil {
			if err := cl.Breaker.Allow(ctx); err != nil {
				recordAttempt(target, "rejected")
				if lastErr != nil {
					return nil, errors.Join(err, lastErr)
				}
				return nil, err
			}
		}

		resp, err := cl.attempt(ctx, req, body)
		switch {
		case err != nil:
			lastErr = err
		case retryable(resp.StatusCode):
			lastErr = &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
			drain(resp)
		default:
			cl.report(ctx, nil)
			recordAttempt(target, "ok")
			return resp, nil
		}
		cl.report(ctx, lastErr)
		recordAttempt(target, "retry")

		if attempt == maxAttempts || ctx.Err() != nil {
			break
		}
		timer := time.NewTimer(cl.Retry.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (cl HTTPClient) attempt(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		resp, err := cl.Client.Do(cloneRequest(callCtx, req, body))
		if err != nil {
			cancel()
			return nil, err
		}
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	return cl.Client.Do(cloneRequest(callCtx, req, body))
}

func (cl HTTPClient) report(ctx context.Context, err error) {
	if cl.Breaker != nil {
		cl.Breaker.Report(ctx, err)
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer func() { _ = req.Body.Close() }()
	return io.ReadAll(req.Body)
}

func cloneRequest(ctx context.Context, req *http.Request, body []byte) *http.Request {
	clone := req.Clone(ctx)
	if body != nil {
		clone.Body = io.NopCloser(bytes.NewReader(body))
		clone.ContentLength = int64(len(body))
		clone.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	return clone
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// cancelOnClose releases the per-attempt deadline once the caller is done
// with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
