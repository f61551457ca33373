// Package httpclient is an o11y instrumented HTTP client for talking to a Dapr sidecar's HTTP
// API. Calls are retried on transport failures and 5XX responses until the client Timeout.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/honeycombio/beeline-go/propagation"

	"github.com/circleci/daprit/o11y"
)

const JSON = "application/json; charset=utf-8"

// AppIDHeader routes a sidecar service invocation to the named app.
const AppIDHeader = "dapr-app-id"

// defaultRequestTimeout applies to each attempt when the Request sets none.
const defaultRequestTimeout = 5 * time.Second

// Config provides the client configuration
type Config struct {
	// Name identifies the client in spans and metrics
	Name string
	// BaseURL is the sidecar address, e.g. http://127.0.0.1:3500
	BaseURL string
	// AppID if set is sent in the dapr-app-id header on every request.
	AppID string
	// Timeout bounds a call including all of its retries. Zero retries until the context ends.
	Timeout time.Duration
}

// Client is the o11y instrumented http client.
type Client struct {
	name       string
	baseURL    string
	appID      string
	timeout    time.Duration
	httpClient *http.Client
}

func New(cfg Config) *Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxConnsPerHost = 4
	t.MaxIdleConnsPerHost = 4

	return &Client{
		name:       cfg.Name,
		baseURL:    cfg.BaseURL,
		appID:      cfg.AppID,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Transport: t},
	}
}

// BaseURL returns the address the client sends requests to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CloseIdleConnections releases pooled connections, used when a sidecar is stopped.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

type Decoder func(r io.Reader) error

// Request is an individual http request that the Client will send
type Request struct {
	Method  string
	Route   string
	Body    interface{} // sent as JSON when set
	Decoder Decoder     // decodes a 2XX response body when set
	Headers map[string]string
	Timeout time.Duration // per attempt
	Query   url.Values

	url string
}

// NewRequest creates a request whose span carries the unformatted route, keeping the
// cardinality of traced routes low.
func NewRequest(method, route string, timeout time.Duration, routeParams ...interface{}) Request {
	return Request{
		Method:  method,
		Route:   route,
		Timeout: timeout,
		url:     fmt.Sprintf(route, routeParams...),
	}
}

// Call sends the request, retrying transport errors and 5XX responses. A response outside
// the 2XX range ends in an *HTTPError.
func (c *Client) Call(ctx context.Context, r Request) (err error) {
	ctx, span := o11y.StartSpan(ctx, fmt.Sprintf("httpclient: %s %s", c.name, r.Route))
	defer o11y.End(span, &err)

	if r.url == "" {
		r.url = r.Route
	}
	u, err := url.Parse(c.baseURL + r.url)
	if err != nil {
		return err
	}
	u.RawQuery = r.Query.Encode()

	var body []byte
	if r.Body != nil {
		body, err = json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("could not json encode request: %w", err)
		}
	}

	attempts := 0
	attempt := func() error {
		attempts++
		return c.attempt(ctx, r, u.String(), body, attempts)
	}

	var bo backoff.BackOff
	if c.timeout > 0 {
		ebo := backoff.NewExponentialBackOff()
		ebo.InitialInterval = 50 * time.Millisecond
		ebo.MaxElapsedTime = c.timeout
		bo = ebo
	} else {
		bo = backoff.NewConstantBackOff(100 * time.Millisecond)
	}
	err = backoff.Retry(attempt, backoff.WithContext(bo, ctx))
	span.AddField("attempts", attempts)
	return finalise(err)
}

func (c *Client) attempt(ctx context.Context, r Request, u string, body []byte, n int) (err error) {
	ctx, span := o11y.StartSpan(ctx, "httpclient: attempt")
	defer o11y.End(span, &err)
	before := time.Now()

	timeout := r.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, u, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", JSON)
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
	}
	if c.appID != "" {
		req.Header.Set(AppIDHeader, c.appID)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Add(propagation.TracePropagationHTTPHeader, span.SerializeHeaders())

	span.AddRawField("http.client_name", c.name)
	span.AddRawField("http.route", r.Route)
	span.AddRawField("http.method", r.Method)
	span.AddRawField("http.url", req.URL.String())
	span.AddRawField("http.attempt", n)

	res, err := c.httpClient.Do(req)
	if err != nil {
		ue := &url.Error{}
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("call: %s %s failed with: %w after %d attempt(s)", r.Method, r.Route, err, n)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()
	span.AddRawField("http.status_code", res.StatusCode)

	_ = o11y.FromContext(ctx).MetricsProvider().TimeInMilliseconds("httpclient",
		float64(time.Since(before).Nanoseconds())/1000000.0,
		[]string{
			"http.client_name:" + c.name,
			"http.route:" + r.Route,
			"http.method:" + r.Method,
			"http.status_code:" + strconv.Itoa(res.StatusCode),
		},
		1,
	)

	if err := statusError(r, res.StatusCode, n); err != nil {
		return err
	}
	if r.Decoder == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := r.Decoder(res.Body); err != nil {
		return backoff.Permanent(fmt.Errorf("call: %s %s decoding failed with: %w", r.Method, r.Route, err))
	}
	return nil
}

// NewJSONDecoder decodes a JSON response body into resp.
func NewJSONDecoder(resp interface{}) Decoder {
	return func(r io.Reader) error {
		if err := json.NewDecoder(r).Decode(resp); err != nil {
			return fmt.Errorf("failed to unmarshal: %w", err)
		}
		return nil
	}
}

// NewStringDecoder reads the whole response body into resp.
func NewStringDecoder(resp *string) Decoder {
	return func(r io.Reader) error {
		bs, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		*resp = string(bs)
		return nil
	}
}
