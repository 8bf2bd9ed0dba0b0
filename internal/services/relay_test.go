package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPRelay_PostsJSON(t *testing.T) {
	var gotBody []byte
	var gotType, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	r := NewHTTPRelay(time.Second)
	if err := r.Relay(context.Background(), srv.URL, []byte(`{"update_id":1}`)); err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if gotMethod != http.MethodPost || gotType != "application/json" || string(gotBody) != `{"update_id":1}` {
		t.Fatalf("got %s %s %q", gotMethod, gotType, gotBody)
	}
}

func TestHTTPRelay_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := NewHTTPRelay(time.Second).Relay(context.Background(), srv.URL, nil); err == nil {
		t.Fatalf("expected error on 500")
	}
}

func TestHTTPRelay_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	r := NewHTTPRelay(50 * time.Millisecond)
	if err := r.Relay(context.Background(), srv.URL, nil); err == nil {
		t.Fatalf("expected timeout error")
	}
}
