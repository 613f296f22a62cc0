// Package httputil provides a thin wrapper around the standard HTTP client
// with uniform error classification and optional retry.
package httputil

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff"
)

const defaultTimeout = 60 * time.Second

// StatusError occurs if an HTTP response has an unexpected status code.
type StatusError struct {
	Method       string
	URL          string
	Status       int
	Header       http.Header
	ResponseDump string
}

// NewStatusError returns a new StatusError. Consumes resp.Body.
func NewStatusError(resp *http.Response) StatusError {
	defer resp.Body.Close()
	respBytes, err := ioutil.ReadAll(resp.Body)
	respDump := string(respBytes)
	if err != nil {
		respDump = fmt.Sprintf("failed to dump response: %s", err)
	}
	return StatusError{
		Method:       resp.Request.Method,
		URL:          resp.Request.URL.String(),
		Status:       resp.StatusCode,
		Header:       resp.Header,
		ResponseDump: respDump,
	}
}

func (e StatusError) Error() string {
	if e.ResponseDump == "" {
		return fmt.Sprintf("%s %s %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s %d: %s", e.Method, e.URL, e.Status, e.ResponseDump)
}

// IsStatus returns true if err is a StatusError of the given status.
func IsStatus(err error, status int) bool {
	statusErr, ok := err.(StatusError)
	return ok && statusErr.Status == status
}

// IsNotFound returns true if err is a 404 StatusError.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// IsAuthError returns true if err is a 401 or 403 StatusError.
func IsAuthError(err error) bool {
	return IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusForbidden)
}

// IsRateLimit returns true if err is a 429 StatusError.
func IsRateLimit(err error) bool {
	return IsStatus(err, http.StatusTooManyRequests)
}

// IsRetryable returns true if err is a transient StatusError (429 or 5xx).
func IsRetryable(err error) bool {
	statusErr, ok := err.(StatusError)
	return ok && (statusErr.Status == http.StatusTooManyRequests || statusErr.Status >= 500)
}

// NetworkError occurs on any Send error which was not a StatusError.
type NetworkError struct {
	err error
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("network error: %s", e.err)
}

// IsNetworkError returns true if err is a NetworkError.
func IsNetworkError(err error) bool {
	_, ok := err.(NetworkError)
	return ok
}

type sendOptions struct {
	body          io.Reader
	timeout       time.Duration
	headers       map[string]string
	acceptedCodes map[int]bool
	basicAuth     *url.Userinfo
	redirect      func(req *http.Request, via []*http.Request) error
	transport     http.RoundTripper

	retry struct {
		max        int
		minBackoff time.Duration
		maxBackoff time.Duration
	}
}

// SendOption specifies options for an HTTP request, overwriting the default
// value in sendOptions.
type SendOption struct {
	f func(*sendOptions)
}

// SendBody specifies a body for the request.
func SendBody(body io.Reader) SendOption {
	return SendOption{func(o *sendOptions) { o.body = body }}
}

// SendTimeout specifies a timeout for the request.
func SendTimeout(timeout time.Duration) SendOption {
	return SendOption{func(o *sendOptions) { o.timeout = timeout }}
}

// SendHeaders specifies headers for the request.
func SendHeaders(headers map[string]string) SendOption {
	return SendOption{func(o *sendOptions) { o.headers = headers }}
}

// SendAcceptedCodes specifies accepted status codes for the request.
func SendAcceptedCodes(codes ...int) SendOption {
	m := make(map[int]bool)
	for _, c := range codes {
		m[c] = true
	}
	return SendOption{func(o *sendOptions) { o.acceptedCodes = m }}
}

// SendBasicAuth attaches basic auth credentials to the request.
func SendBasicAuth(user, password string) SendOption {
	return SendOption{func(o *sendOptions) {
		o.basicAuth = url.UserPassword(user, password)
	}}
}

// SendNoRedirect prevents the client from following redirects.
func SendNoRedirect() SendOption {
	return SendOption{func(o *sendOptions) {
		o.redirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}}
}

// SendTransport specifies a transport for the request. Intended for tests.
func SendTransport(transport http.RoundTripper) SendOption {
	return SendOption{func(o *sendOptions) { o.transport = transport }}
}

// SendRetry retries the request on network errors and retryable status codes
// with exponential backoff, making at most max+1 attempts.
func SendRetry(max int, min, cap time.Duration) SendOption {
	return SendOption{func(o *sendOptions) {
		o.retry.max = max
		if min > 0 {
			o.retry.minBackoff = min
		}
		if cap > 0 {
			o.retry.maxBackoff = cap
		}
	}}
}

// Send sends an HTTP request and returns the response, classifying failures
// into StatusError and NetworkError.
func Send(method, rawurl string, options ...SendOption) (*http.Response, error) {
	opts := sendOptions{
		body:          bytes.NewReader(nil),
		timeout:       defaultTimeout,
		acceptedCodes: map[int]bool{http.StatusOK: true},
	}
	opts.retry.minBackoff = time.Second
	opts.retry.maxBackoff = 30 * time.Second
	for _, opt := range options {
		opt.f(&opts)
	}

	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("parse url: %s", err)
	}
	if opts.basicAuth != nil {
		u.User = opts.basicAuth
	}

	// Retried requests must be able to rewind the body.
	var bodyBytes []byte
	if opts.body != nil {
		bodyBytes, err = ioutil.ReadAll(opts.body)
		if err != nil {
			return nil, fmt.Errorf("read body: %s", err)
		}
	}

	client := &http.Client{
		Timeout:       opts.timeout,
		CheckRedirect: opts.redirect,
		Transport:     opts.transport,
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     opts.retry.minBackoff,
		RandomizationFactor: 0.05,
		Multiplier:          2,
		MaxInterval:         opts.retry.maxBackoff,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	var resp *http.Response
	for attempt := 0; ; attempt++ {
		req, reqErr := http.NewRequest(method, u.String(), bytes.NewReader(bodyBytes))
		if reqErr != nil {
			return nil, fmt.Errorf("new request: %s", reqErr)
		}
		for key, val := range opts.headers {
			req.Header.Set(key, val)
		}

		resp, err = client.Do(req)
		if err != nil {
			err = NetworkError{err}
		} else if !opts.acceptedCodes[resp.StatusCode] {
			err = NewStatusError(resp)
		} else {
			return resp, nil
		}
		if attempt >= opts.retry.max || !(IsNetworkError(err) || IsRetryable(err)) {
			return nil, err
		}
		time.Sleep(b.NextBackOff())
	}
}

// Get sends a GET request.
func Get(url string, options ...SendOption) (*http.Response, error) {
	return Send("GET", url, options...)
}

// Post sends a POST request.
func Post(url string, options ...SendOption) (*http.Response, error) {
	return Send("POST", url, options...)
}

// Delete sends a DELETE request.
func Delete(url string, options ...SendOption) (*http.Response, error) {
	return Send("DELETE", url, options...)
}
