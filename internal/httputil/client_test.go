package httputil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStandardClient_Wraps(t *testing.T) {
	custom := &http.Client{}
	if client := NewStandardClient(custom); client.Client != custom {
		t.Error("expected the custom client to be wrapped")
	}
	if client := NewStandardClient(nil); client.Client != http.DefaultClient {
		t.Error("expected nil to fall back to http.DefaultClient")
	}
}

func TestMockHTTPClient_RecordsPost(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `{"content":"looks like a TLS probe"}`)

	resp, err := mock.Post("http://analysis.local/v1/messages", "application/json",
		strings.NewReader(`{"model":"small"}`))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusOK)
	}

	req := mock.GetRequest(0)
	if req == nil {
		t.Fatal("expected the request to be recorded")
	}
	if req.Method != http.MethodPost {
		t.Errorf("got method %s, want POST", req.Method)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("got Content-Type %q", got)
	}

	// The recorded body must survive the request being consumed.
	if got := mock.GetRequestBody(0); got != `{"model":"small"}` {
		t.Errorf("got recorded body %q", got)
	}
}

func TestMockHTTPClient_RepliesInQueueOrder(t *testing.T) {
	queued := []struct {
		status int
		body   string
	}{
		{http.StatusOK, "first"},
		{http.StatusAccepted, "second"},
		{http.StatusNoContent, "third"},
	}

	mock := NewMockHTTPClient()
	for _, q := range queued {
		mock.AddResponse(q.status, q.body)
	}

	for i, want := range queued {
		resp, err := mock.Post("http://analysis.local/v1/messages", "text/plain", nil)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != want.status {
			t.Errorf("request %d: got status %d, want %d", i, resp.StatusCode, want.status)
		}
		if string(body) != want.body {
			t.Errorf("request %d: got body %q, want %q", i, string(body), want.body)
		}
	}

	if mock.RequestCount() != len(queued) {
		t.Errorf("got %d recorded requests, want %d", mock.RequestCount(), len(queued))
	}
}

func TestMockHTTPClient_ErrorModes(t *testing.T) {
	t.Run("queued error", func(t *testing.T) {
		mock := NewMockHTTPClient()
		wantErr := errors.New("connection refused")
		mock.AddErrorResponse(wantErr)

		if _, err := mock.Post("http://analysis.local/v1/messages", "text/plain", nil); err != wantErr {
			t.Errorf("got error %v, want %v", err, wantErr)
		}
	})

	t.Run("default error when queue empty", func(t *testing.T) {
		mock := NewMockHTTPClient()
		wantErr := errors.New("network unreachable")
		mock.DefaultError = wantErr

		if _, err := mock.Post("http://analysis.local/v1/messages", "text/plain", nil); err != wantErr {
			t.Errorf("got error %v, want %v", err, wantErr)
		}
	})

	t.Run("nothing staged yields empty 200", func(t *testing.T) {
		mock := NewMockHTTPClient()

		resp, err := mock.Post("http://analysis.local/v1/messages", "text/plain", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusOK)
		}
	})
}

func TestMockHTTPClient_DoFuncOverridesQueue(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "queued but never used")
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusTeapot,
			Body:       io.NopCloser(strings.NewReader("custom")),
			Request:    req,
		}, nil
	}

	resp, err := mock.Post("http://analysis.local/v1/messages", "text/plain", nil)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusTeapot)
	}
}

func TestMockHTTPClient_GetRequestBounds(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.Post("http://analysis.local/first", "text/plain", nil)
	mock.Post("http://analysis.local/second", "text/plain", nil)

	for i, want := range []string{"first", "second"} {
		req := mock.GetRequest(i)
		if req == nil || !strings.Contains(req.URL.String(), want) {
			t.Errorf("GetRequest(%d) should return the %s request", i, want)
		}
	}
	if mock.GetRequest(2) != nil {
		t.Error("out-of-range index should return nil")
	}
	if mock.GetRequest(-1) != nil {
		t.Error("negative index should return nil")
	}
}

func TestMockHTTPClient_Reset(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "stale")
	mock.DefaultError = errors.New("stale")
	mock.Post("http://analysis.local/v1/messages", "application/json", strings.NewReader("{}"))

	mock.Reset()

	if len(mock.Requests) != 0 || len(mock.RequestBodies) != 0 {
		t.Error("Reset should clear recorded requests")
	}
	if len(mock.Responses) != 0 {
		t.Error("Reset should clear queued responses")
	}
	if mock.DefaultError != nil {
		t.Error("Reset should clear DefaultError")
	}
}

func TestStandardClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("accepted"))
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodPut, server.URL+"/resource", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := NewStandardClient(nil).Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	if body, _ := io.ReadAll(resp.Body); string(body) != "accepted" {
		t.Errorf("got body %q, want accepted", string(body))
	}
}

func TestStandardClient_Post(t *testing.T) {
	const payload = `{"prompt":"describe this packet"}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", got)
		}
		if body, _ := io.ReadAll(r.Body); string(body) != payload {
			t.Errorf("got forwarded body %s", string(body))
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":123}`))
	}))
	defer server.Close()

	resp, err := NewStandardClient(nil).Post(server.URL+"/v1/messages", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if body, _ := io.ReadAll(resp.Body); string(body) != `{"id":123}` {
		t.Errorf("got body %q", string(body))
	}
}
