package exa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string, retries int) *Client {
	return New(Options{
		APIKey:     "test-key",
		BaseURL:    url,
		MaxRetries: retries,
		Backoff:    time.Millisecond,
		Timeout:    2 * time.Second,
	})
}

func TestNew_Defaults(t *testing.T) {
	c := New(Options{APIKey: " key "})

	if c.baseURL != DefaultBaseURL {
		t.Errorf("Expected base URL %s, got %s", DefaultBaseURL, c.baseURL)
	}
	if c.apiKey != "key" {
		t.Errorf("Expected trimmed API key, got %q", c.apiKey)
	}
	if c.timeout != DefaultTimeout {
		t.Errorf("Expected timeout %s, got %s", DefaultTimeout, c.timeout)
	}
	if c.livecrawlTimeout != DefaultLivecrawlTimeout {
		t.Errorf("Expected livecrawl timeout %s, got %s", DefaultLivecrawlTimeout, c.livecrawlTimeout)
	}
	if c.MaxRetries() != 0 {
		t.Errorf("Expected 0 retries for zero options, got %d", c.MaxRetries())
	}
}

func TestNew_TrimTrailingSlash(t *testing.T) {
	c := New(Options{BaseURL: "https://api.test.com/"})
	if c.baseURL != "https://api.test.com" {
		t.Errorf("Expected base URL without trailing slash, got %s", c.baseURL)
	}
}

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != EndpointSearch {
			t.Errorf("Expected path %s, got %s", EndpointSearch, r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("Expected x-api-key header, got %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Expected JSON content type, got %q", got)
		}

		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Query != "golang" || req.NumResults != 3 {
			t.Errorf("Unexpected request: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"url":"https://go.dev"}]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 0)
	raw, err := c.Search(context.Background(), &SearchRequest{Query: "golang", NumResults: 3})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	var resp SearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Results) != 1 || *resp.Results[0].URL != "https://go.dev" {
		t.Errorf("Unexpected response: %s", raw)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 3)
	_, err := c.Answer(context.Background(), &AnswerRequest{Query: "q"})

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
	if terr.Kind != ErrUnavailable {
		t.Errorf("Expected kind %s, got %s", ErrUnavailable, terr.Kind)
	}
	if terr.Status != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", terr.Status)
	}
	// One initial attempt plus exactly three retries.
	if got := hits.Load(); got != 4 {
		t.Errorf("Expected 4 requests, got %d", got)
	}
	if terr.Attempts != 4 {
		t.Errorf("Expected 4 attempts recorded, got %d", terr.Attempts)
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests} {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(status)
			w.Write([]byte(`{"error":"bad"}`))
		}))

		c := newTestClient(server.URL, 3)
		_, err := c.FindSimilar(context.Background(), &FindSimilarRequest{URL: "https://a.com", NumResults: 1})
		server.Close()

		var terr *TransportError
		if !errors.As(err, &terr) {
			t.Fatalf("status %d: expected TransportError, got %v", status, err)
		}
		if terr.Kind != ErrClient || terr.Status != status {
			t.Errorf("status %d: got kind %s status %d", status, terr.Kind, terr.Status)
		}
		if terr.Body != `{"error":"bad"}` {
			t.Errorf("status %d: expected body excerpt, got %q", status, terr.Body)
		}
		if got := hits.Load(); got != 1 {
			t.Errorf("status %d: expected 1 request, got %d", status, got)
		}
	}
}

func TestClient_RecoversAfterTransientFailure(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"results":{}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, 2)
	raw, err := c.Contents(context.Background(), &ContentsRequest{IDs: []string{"a.com"}, Livecrawl: "never"})
	if err != nil {
		t.Fatalf("Contents failed: %v", err)
	}
	if string(raw) != `{"results":{}}` {
		t.Errorf("Unexpected body %s", raw)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("Expected 2 requests, got %d", got)
	}
}

func TestClient_AttemptTimeoutIsRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL, MaxRetries: 1, Backoff: time.Millisecond, Timeout: 20 * time.Millisecond})
	_, err := c.Search(context.Background(), &SearchRequest{Query: "slow"})

	var terr *TransportError
	if !errors.As(err, &terr) || terr.Kind != ErrUnavailable {
		t.Fatalf("Expected unavailable error, got %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("Expected 2 requests, got %d", got)
	}
}

func TestClient_CancelStopsRetryLoop(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL, MaxRetries: 5, Backoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for hits.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := c.Search(ctx, &SearchRequest{Query: "q"})
		done <- err
	}()

	select {
	case err := <-done:
		var terr *TransportError
		if !errors.As(err, &terr) || terr.Kind != ErrCanceled {
			t.Fatalf("Expected canceled error, got %v", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected error to wrap context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Retry loop did not stop after cancellation")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("Expected 1 request, got %d", got)
	}
}

func TestClient_ContentsUsesLivecrawlTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(60 * time.Millisecond)
		w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	c := New(Options{
		BaseURL:          server.URL,
		Timeout:          10 * time.Millisecond,
		LivecrawlTimeout: 2 * time.Second,
		MaxRetries:       -1,
	})

	if _, err := c.Contents(context.Background(), &ContentsRequest{IDs: []string{"a.com"}, Livecrawl: "always"}); err != nil {
		t.Errorf("Live crawl request should use the longer timeout: %v", err)
	}
	if _, err := c.Contents(context.Background(), &ContentsRequest{IDs: []string{"a.com"}, Livecrawl: "never"}); err == nil {
		t.Error("Cached request should time out with the short timeout")
	}
}

func TestBackoffFor(t *testing.T) {
	c := New(Options{Backoff: 100 * time.Millisecond})
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 800 * time.Millisecond},
		{40, 800 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := c.backoffFor(tt.retry); got != tt.want {
			t.Errorf("backoffFor(%d) = %s, want %s", tt.retry, got, tt.want)
		}
	}
}
