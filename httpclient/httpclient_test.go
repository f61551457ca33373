package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/honeycombio/beeline-go/propagation"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/daprit/o11y"
	"github.com/circleci/daprit/testing/testcontext"
)

func TestNewRequest_Formats(t *testing.T) {
	req := NewRequest("POST", "/v1.0/invoke/%s/method/ping", time.Second, "orders")
	assert.Check(t, cmp.Equal(req.url, "/v1.0/invoke/orders/method/ping"))
	assert.Check(t, cmp.Equal(req.Route, "/v1.0/invoke/%s/method/ping"))
	assert.Check(t, cmp.Equal(req.Method, "POST"))
	assert.Check(t, cmp.Equal(req.Timeout, time.Second))
}

func TestClient_Call_SendsAndDecodes(t *testing.T) {
	ctx := testcontext.Background()

	var got http.Header
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", JSON)
		_, _ = io.WriteString(w, `{"status": "ok"}`)
	}))
	t.Cleanup(server.Close)

	client := New(Config{Name: "sidecar", BaseURL: server.URL, AppID: "orders", Timeout: time.Second})
	req := NewRequest("POST", "/v1.0/invoke/%s/method/ping", time.Second, "orders")
	req.Body = map[string]string{"hello": "world"}
	resp := map[string]string{}
	req.Decoder = NewJSONDecoder(&resp)

	ctx, span := o11y.StartSpan(ctx, "test client span")
	err := client.Call(ctx, req)
	span.End()
	assert.Assert(t, err)

	assert.Check(t, cmp.DeepEqual(resp, map[string]string{"status": "ok"}))
	assert.Check(t, cmp.DeepEqual(gotBody, map[string]string{"hello": "world"}))
	assert.Check(t, cmp.Equal(got.Get(AppIDHeader), "orders"))
	assert.Check(t, cmp.Equal(got.Get("Content-Type"), JSON))
	assert.Check(t, cmp.Contains(got.Get(propagation.TracePropagationHTTPHeader), "trace_id="))
}

func TestClient_Call_RetriesServerErrors(t *testing.T) {
	ctx := testcontext.Background()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	client := New(Config{Name: "health", BaseURL: server.URL, Timeout: 5 * time.Second})
	var body string
	req := NewRequest("GET", "/v1.0/healthz", time.Second)
	req.Decoder = NewStringDecoder(&body)

	err := client.Call(ctx, req)
	assert.Check(t, err)
	assert.Check(t, cmp.Equal(atomic.LoadInt32(&calls), int32(3)))
	assert.Check(t, cmp.Equal(body, ""))
}

func TestClient_Call_StatusErrors(t *testing.T) {
	tests := []struct {
		name        string
		code        int
		wantCalls   int32
		wantWarning bool
	}{
		{name: "bad request is not retried", code: http.StatusBadRequest, wantCalls: 1},
		{name: "not found is a warning", code: http.StatusNotFound, wantCalls: 1, wantWarning: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.code)
			}))
			t.Cleanup(server.Close)

			client := New(Config{Name: "status", BaseURL: server.URL, Timeout: time.Second})
			err := client.Call(testcontext.Background(), NewRequest("GET", "/v1.0/metadata", time.Second))
			assert.Check(t, HasStatusCode(err, tt.code))
			assert.Check(t, cmp.Equal(o11y.IsWarning(err), tt.wantWarning))
			assert.Check(t, cmp.Equal(atomic.LoadInt32(&calls), tt.wantCalls))
		})
	}
}

func TestClient_Call_TimeoutBoundsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := New(Config{Name: "unhealthy", BaseURL: server.URL, Timeout: 200 * time.Millisecond})

	start := time.Now()
	err := client.Call(testcontext.Background(), NewRequest("GET", "/v1.0/healthz", time.Second))
	assert.Check(t, HasStatusCode(err, http.StatusInternalServerError))
	assert.Check(t, !o11y.IsWarning(err), "a final server error should be traced as an error")
	assert.Check(t, time.Since(start) < 2*time.Second)
}

func TestClient_Call_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(testcontext.Background(), 100*time.Millisecond)
	defer cancel()

	client := New(Config{Name: "cancelled", BaseURL: server.URL})
	err := client.Call(ctx, NewRequest("GET", "/v1.0/healthz", time.Second))
	assert.Check(t, err != nil)
}

func TestClient_Call_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := New(Config{Name: "gone", BaseURL: url, Timeout: 100 * time.Millisecond})
	err := client.Call(testcontext.Background(), NewRequest("GET", "/v1.0/healthz", time.Second))
	assert.Check(t, cmp.ErrorContains(err, "connection refused"))
	assert.Check(t, cmp.Equal(client.BaseURL(), url))
}
