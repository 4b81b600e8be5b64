package llm

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

const (
	maxRetries       = 2
	defaultBaseDelay = time.Second
	maxRetryAfter    = 30 * time.Second
	dialTimeout      = 10 * time.Second
	requestTimeout   = 60 * time.Second
)

// retryTransport resends requests answered with 429 or a 5xx status, and
// requests that failed at the network level, up to retries extra times with
// exponential backoff. A larger Retry-After from the server wins over the
// computed delay. After the last attempt the response is returned untouched.
type retryTransport struct {
	next      http.RoundTripper
	retries   int
	baseDelay time.Duration
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func newRetryTransport(next http.RoundTripper) *retryTransport {
	return &retryTransport{
		next:      next,
		retries:   maxRetries,
		baseDelay: defaultBaseDelay,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// newHTTPClient is the client every provider shares.
func newHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout}).DialContext,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: requestTimeout,
	}
	return &http.Client{Transport: newRetryTransport(base)}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
	for attempt := 0; ; attempt++ {
		r := req
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r = req.Clone(ctx)
			r.Body = body
		}

		resp, err := t.next.RoundTrip(r)
		last := attempt >= t.retries || !replayable
		if err != nil {
			if last || ctx.Err() != nil {
				return nil, err
			}
			if err := t.sleep(ctx, t.backoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}
		if !retryable(resp.StatusCode) || last {
			return resp, nil
		}

		delay := t.backoff(attempt)
		if ra := retryAfter(resp.Header.Get("Retry-After"), t.now()); ra > delay {
			delay = min(ra, maxRetryAfter)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if err := t.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (t *retryTransport) backoff(attempt int) time.Duration {
	return t.baseDelay << attempt
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// retryAfter parses a Retry-After value given in seconds or as an HTTP date.
func retryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
