package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(store.Options{
		State: func() map[string]any {
			return map[string]any{"count": 0.0, "title": "hello"}
		},
		Mutations: store.Builtins(),
		Actions: map[string]store.Action{
			"reset": func(ctx context.Context, s *store.Store, _ any) (any, error) {
				return "done", s.Commit(ctx, store.MutationSet, store.SetPayload{Key: "count", Value: 0.0})
			},
		},
		Getters: map[string]store.Getter{
			"shout": func(ctx context.Context, state *reactive.Observer) any {
				v, _ := state.Get(ctx, "title")
				return strings.ToUpper(v.(string))
			},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func newTestServer(t *testing.T, st *store.Store) *Server {
	t.Helper()
	return New(st, Config{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		SendBuffer: 4,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, rd))

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: response is not a JSON object: %q", method, path, rec.Body.String())
	}
	return rec.Code, out
}

func TestStateEndpoints(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	code, body := do(t, srv, http.MethodGet, "/state", "")
	if code != http.StatusOK || body["title"] != "hello" || body["count"] != 0.0 {
		t.Fatalf("GET /state = %d %v", code, body)
	}

	code, body = do(t, srv, http.MethodGet, "/state/title", "")
	if code != http.StatusOK || body["value"] != "hello" {
		t.Fatalf("GET /state/title = %d %v", code, body)
	}

	code, _ = do(t, srv, http.MethodGet, "/state/missing", "")
	if code != http.StatusNotFound {
		t.Fatalf("GET /state/missing = %d, want 404", code)
	}

	code, body = do(t, srv, http.MethodPut, "/state/title", `"world"`)
	if code != http.StatusOK || body["ok"] != true {
		t.Fatalf("PUT /state/title = %d %v", code, body)
	}
	code, body = do(t, srv, http.MethodGet, "/state/title", "")
	if body["value"] != "world" {
		t.Fatalf("title after PUT = %v", body["value"])
	}

	code, _ = do(t, srv, http.MethodPut, "/state/title", `{bad`)
	if code != http.StatusBadRequest {
		t.Fatalf("PUT with bad JSON = %d, want 400", code)
	}
	code, _ = do(t, srv, http.MethodPut, "/state/nope", `1`)
	if code != http.StatusNotFound {
		t.Fatalf("PUT unknown key = %d, want 404", code)
	}
}

func TestCommitDispatchGetter(t *testing.T) {
	st := newTestStore(t)
	srv := newTestServer(t, st)

	code, body := do(t, srv, http.MethodPost, "/commit/increment", `{"key":"count","by":2}`)
	if code != http.StatusOK || body["ok"] != true {
		t.Fatalf("commit = %d %v", code, body)
	}
	if v, _ := st.State().Peek("count"); v != 2.0 {
		t.Fatalf("count = %v, want 2", v)
	}

	code, _ = do(t, srv, http.MethodPost, "/commit/increment", `{"key":"title"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("increment on string = %d, want 400", code)
	}
	code, _ = do(t, srv, http.MethodPost, "/commit/nope", "")
	if code != http.StatusNotFound {
		t.Fatalf("unknown mutation = %d, want 404", code)
	}

	code, body = do(t, srv, http.MethodPost, "/dispatch/reset", "")
	if code != http.StatusOK || body["result"] != "done" {
		t.Fatalf("dispatch = %d %v", code, body)
	}

	code, body = do(t, srv, http.MethodGet, "/getters/shout", "")
	if code != http.StatusOK || body["value"] != "HELLO" {
		t.Fatalf("getter = %d %v", code, body)
	}
	code, _ = do(t, srv, http.MethodGet, "/getters/nope", "")
	if code != http.StatusNotFound {
		t.Fatalf("unknown getter = %d, want 404", code)
	}
}

func TestConcurrentCommitRequests(t *testing.T) {
	st := newTestStore(t)
	srv := newTestServer(t, st)

	const requests = 200
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/commit/increment", strings.NewReader(`{"key":"count"}`)))
			if rec.Code != http.StatusOK {
				t.Errorf("commit = %d %s", rec.Code, rec.Body.String())
			}
		}()
	}
	wg.Wait()

	if v, _ := st.State().Peek("count"); v != float64(requests) {
		t.Errorf("count = %v after %d concurrent commits, want %d", v, requests, requests)
	}
}

func TestWriteReportsSubscriberFailures(t *testing.T) {
	st := newTestStore(t)
	srv := newTestServer(t, st)

	failing := reactive.NewSubscriber(func() error { return errors.New("render failed") })
	_, _ = st.State().Get(reactive.WithSubscriber(context.Background(), failing), "title")

	code, body := do(t, srv, http.MethodPut, "/state/title", `"x"`)
	if code != http.StatusOK {
		t.Fatalf("PUT = %d, want 200 when only notification failed", code)
	}
	errs, _ := body["notify_errors"].([]any)
	if len(errs) != 1 || !strings.Contains(errs[0].(string), "render failed") {
		t.Fatalf("notify_errors = %v", body["notify_errors"])
	}
	if v, _ := st.State().Peek("title"); v != "x" {
		t.Fatal("write was not applied")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "reactor_http_requests_total") {
		t.Fatalf("metrics = %d\n%s", rec.Code, rec.Body.String())
	}
}

func TestNotifyOnly(t *testing.T) {
	se := &reactive.SubscriberError{SubscriberID: 1, Err: errors.New("x")}
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{se, true},
		{errors.Join(se, se), true},
		{errors.Join(se, reactive.ErrTypeMismatch), false},
		{reactive.ErrUnknownKey, false},
	}
	for _, tt := range tests {
		if got := notifyOnly(tt.err); got != tt.want {
			t.Errorf("notifyOnly(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestListenAndServeShutsDownOnCancel(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if err := srv.Serve(context.Background(), ln); !errors.Is(err, ErrServerClosed) {
		t.Fatalf("Serve after shutdown = %v, want ErrServerClosed", err)
	}
}
