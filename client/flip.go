// Package client plays the memory game against a game server: a turn state
// machine, a local click limiter and an HTTP client that retries rate-limited
// flips.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/jason-s-yu/arcana-memory/protocol"
	"github.com/sirupsen/logrus"
)

// RetryPolicy controls how rate-limited flips are retried. The wait before
// retry n (1-based) is base * Factor^(n-1), where base is the server's
// backoff hint when it sends one and InitialDelay otherwise.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
}

// DefaultRetryPolicy is three attempts starting at 200ms, growing by 1.2.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond, Factor: 1.2}
}

// MaxBackoff caps every wait derived from a server backoff hint.
const MaxBackoff = time.Minute

// Delay returns the wait before retry n given the server's hint (0 if none),
// never more than MaxBackoff.
func (p RetryPolicy) Delay(n int, hint time.Duration) time.Duration {
	base := hint
	if base <= 0 {
		base = p.InitialDelay
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	d := math.Round(float64(base) * math.Pow(factor, float64(n-1)))
	if d > float64(MaxBackoff) {
		return MaxBackoff
	}
	return time.Duration(d)
}

// backoffDuration converts a backoff in seconds from the server, capped at
// MaxBackoff. Non-positive values mean no hint.
func backoffDuration(seconds float64) time.Duration {
	switch {
	case seconds <= 0 || math.IsNaN(seconds):
		return 0
	case seconds >= MaxBackoff.Seconds():
		return MaxBackoff
	}
	return time.Duration(seconds * float64(time.Second))
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FlipClient talks to the game server. The session cookie is kept in the
// HTTP client's cookie jar.
type FlipClient struct {
	base   *url.URL
	http   *http.Client
	policy RetryPolicy
	sleep  SleepFunc
	log    logrus.FieldLogger
}

// FlipOption customizes a FlipClient.
type FlipOption func(*FlipClient)

// WithHTTPClient replaces the HTTP client. It should carry a cookie jar.
func WithHTTPClient(c *http.Client) FlipOption {
	return func(f *FlipClient) { f.http = c }
}

func WithRetryPolicy(p RetryPolicy) FlipOption {
	return func(f *FlipClient) { f.policy = p }
}

func WithSleep(s SleepFunc) FlipOption {
	return func(f *FlipClient) { f.sleep = s }
}

func WithLogger(l logrus.FieldLogger) FlipOption {
	return func(f *FlipClient) { f.log = l }
}

// NewFlipClient returns a client for the server at baseURL.
func NewFlipClient(baseURL string, opts ...FlipOption) (*FlipClient, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	f := &FlipClient{
		base:   u,
		http:   &http.Client{Jar: jar, Timeout: 10 * time.Second},
		policy: DefaultRetryPolicy(),
		sleep:  Sleep,
		log:    logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.policy.MaxAttempts < 1 {
		f.policy.MaxAttempts = 1
	}
	return f, nil
}

// Flip asks the server to flip the card at index. A response with
// Valid=false is returned as a result, not an error.
//
// 429 responses are retried according to the retry policy; when every attempt
// is rate limited the error wraps ErrRateLimitExceeded. Every other failure is
// a *NetworkError and is not retried.
func (f *FlipClient) Flip(ctx context.Context, index int) (protocol.FlipResult, error) {
	op := fmt.Sprintf("flip %d", index)
	for attempt := 1; ; attempt++ {
		var res protocol.FlipResult
		status, err := f.post(ctx, op, protocol.FlipPath(index), &res)
		if err != nil {
			return protocol.FlipResult{}, err
		}
		if status != http.StatusTooManyRequests {
			return res, nil
		}

		if attempt >= f.policy.MaxAttempts {
			f.log.WithFields(logrus.Fields{"index": index, "attempts": attempt}).Warn("Giving up on rate-limited flip.")
			return protocol.FlipResult{}, fmt.Errorf("%s: %w after %d attempts", op, ErrRateLimitExceeded, attempt)
		}
		hint := backoffDuration(res.Backoff)
		wait := f.policy.Delay(attempt, hint)
		f.log.WithFields(logrus.Fields{"index": index, "attempt": attempt, "wait": wait}).Debug("Flip rate limited, retrying.")
		if err := f.sleep(ctx, wait); err != nil {
			return protocol.FlipResult{}, &NetworkError{Op: op, Err: err}
		}
	}
}

// NewGame asks the server to deal a new board for this session.
func (f *FlipClient) NewGame(ctx context.Context) error {
	var res protocol.NewGameResponse
	status, err := f.post(ctx, "new game", protocol.PathNewGame, &res)
	if err != nil {
		return err
	}
	if status == http.StatusTooManyRequests || !res.Success {
		return &NetworkError{Op: "new game", StatusCode: status, Message: "server did not start a new game"}
	}
	return nil
}

// post sends an empty POST and decodes a 2xx or 429 body into out. It returns
// the status code for those two cases and a *NetworkError otherwise.
func (f *FlipClient) post(ctx context.Context, op, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.base.JoinPath(path).String(), nil)
	if err != nil {
		return 0, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return 0, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		// The body is optional on 429; a missing or unreadable one means no hint.
		_ = json.Unmarshal(body, out)
		return resp.StatusCode, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.Unmarshal(body, out); err != nil {
			return 0, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		return resp.StatusCode, nil
	default:
		ne := &NetworkError{Op: op, StatusCode: resp.StatusCode}
		var er protocol.ErrorResponse
		if json.Unmarshal(body, &er) == nil {
			ne.Message = er.Error
		}
		return 0, ne
	}
}
