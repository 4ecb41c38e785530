package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pulsewatch/backend/internal/config"
)

func TestListStreams(t *testing.T) {
	var gotPath, gotPrefix, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPrefix = r.URL.Query().Get("prefix")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"streams":["/app/checkout/web","/app/checkout/worker"]}`))
	}))
	defer server.Close()

	c := NewLogSourceClient(config.LogSourceConfig{BaseURL: server.URL, APIToken: "token-1"})

	streams, err := c.ListStreams(context.Background(), "/app/checkout")
	if err != nil {
		t.Fatalf("ListStreams error: %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("streams = %v", streams)
	}
	if gotPath != "/v1/streams" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotPrefix != "/app/checkout" {
		t.Fatalf("prefix = %q", gotPrefix)
	}
	if gotAuth != "Bearer token-1" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestFetchEventsPagination(t *testing.T) {
	var gotStart, gotEnd, gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStart = r.URL.Query().Get("start")
		gotEnd = r.URL.Query().Get("end")
		gotToken = r.URL.Query().Get("page_token")
		w.Write([]byte(`{
			"events": [{"stream_id": "/app/checkout/web", "timestamp_ms": 1000, "message": "error: boom"}],
			"next_page_token": "page-2"
		}`))
	}))
	defer server.Close()

	c := NewLogSourceClient(config.LogSourceConfig{BaseURL: server.URL})

	page, err := c.FetchEvents(context.Background(), "/app/checkout", 1000, 2000, "page-1")
	if err != nil {
		t.Fatalf("FetchEvents error: %v", err)
	}
	if len(page.Events) != 1 || page.Events[0].Message != "error: boom" {
		t.Fatalf("events = %+v", page.Events)
	}
	if page.NextPageToken != "page-2" {
		t.Fatalf("nextPageToken = %q", page.NextPageToken)
	}
	if gotStart != "1000" || gotEnd != "2000" || gotToken != "page-1" {
		t.Fatalf("query = start=%s end=%s token=%s", gotStart, gotEnd, gotToken)
	}
}

func TestFetchEventsNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewLogSourceClient(config.LogSourceConfig{BaseURL: server.URL})

	if _, err := c.FetchEvents(context.Background(), "/app/checkout", 0, 1, ""); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

func TestNoAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"streams":[]}`))
	}))
	defer server.Close()

	c := NewLogSourceClient(config.LogSourceConfig{BaseURL: server.URL})

	if _, err := c.ListStreams(context.Background(), "/app"); err != nil {
		t.Fatalf("ListStreams error: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
}
