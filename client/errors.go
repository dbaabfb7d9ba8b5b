package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInvalidMove is returned when a click breaks a rule that can be
	// checked locally. No request is sent.
	ErrInvalidMove = errors.New("invalid move")
	// ErrRateLimited is returned when a click arrives inside the local click
	// interval or a server backoff window. No request is sent.
	ErrRateLimited = errors.New("clicking too fast")
	// ErrRateLimitExceeded is returned when the server kept answering 429
	// until the retry budget ran out.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// NetworkError is a transport failure or a non-2xx response other than 429.
// It is never retried.
type NetworkError struct {
	Op         string
	StatusCode int    // 0 for transport errors
	Message    string // server-provided error text, if any
	Err        error
}

func (e *NetworkError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, "server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
		if e.Message != "" {
			b.WriteString(": " + e.Message)
		}
	}
	if e.Err != nil {
		if e.StatusCode != 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerRejectedError means the server answered valid:false for a move that
// looked legal locally, usually because the local board is stale.
type ServerRejectedError struct {
	Message string
	Backoff time.Duration
}

func (e *ServerRejectedError) Error() string {
	return "move rejected by server: " + e.Message
}
