package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestHTTPSend(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	var requestIDs []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		requestIDs = append(requestIDs, r.Header.Get("X-Request-Id"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL, 2*time.Second)
	if err := tr.Send(context.Background(), []byte("line-1")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := tr.Send(context.Background(), []byte("line-2")); err != nil {
		t.Fatalf("send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 || bodies[0] != "line-1" || bodies[1] != "line-2" {
		t.Fatalf("bodies = %q", bodies)
	}
	if requestIDs[0] == "" || requestIDs[0] == requestIDs[1] {
		t.Fatalf("request ids not unique: %q", requestIDs)
	}
}

func TestHTTPNon2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "full", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewHTTP(srv.URL, 2*time.Second)
	if err := tr.Send(context.Background(), []byte("x")); err == nil {
		t.Fatalf("503 response reported as success")
	}
}

func TestHTTPUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr := NewHTTP(url, 500*time.Millisecond)
	if err := tr.Send(context.Background(), []byte("x")); err == nil {
		t.Fatalf("send to closed server succeeded")
	}
}
