package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout = 15 * time.Second
	// error bodies are truncated to this size
	maxErrorBody = 1024
)

// Option configures gateway HTTP transport
type Option func(*client)

// WithHTTPClient sets HTTP client used for gateway calls
func WithHTTPClient(c *http.Client) Option {
	return func(cl *client) {
		cl.http = c
	}
}

// WithTimeout sets timeout of one gateway call
func WithTimeout(d time.Duration) Option {
	return func(cl *client) {
		cl.timeout = d
	}
}

type client struct {
	http    *http.Client
	timeout time.Duration
}

func newClient(opts ...Option) *client {
	c := &client{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout: c.timeout,
		}
	}
	return c
}

// statusError is non-2xx answer of gateway
type statusError struct {
	Code int
	Body []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// errRequest marks failures that happen before request is sent
var errRequest = errors.New("prepare request")

func requestError(err error) error {
	return fmt.Errorf("%w: %v", errRequest, err)
}

// ambiguous reports whether gateway may have executed the call that
// failed with err. Only unsent requests and 4xx answers are definite.
func ambiguous(err error) bool {
	if errors.Is(err, errRequest) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError
	}
	return true
}

func notFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// do sends request and decodes JSON answer into out
func (c *client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &statusError{Code: resp.StatusCode, Body: body}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
