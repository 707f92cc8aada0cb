package realtime_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prism/internal/catalog"
	"prism/internal/realtime"
)

func TestEventsHierarchy(t *testing.T) {
	events := realtime.Events("vid", "rend", "update")
	want := []string{
		"videos.vid.renditions.rend.update",
		"videos.vid.renditions.rend",
		"videos.vid.renditions.*.update",
		"videos.vid.renditions.*",
	}
	if len(events) != len(want) {
		t.Fatalf("events: got %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events: got %v, want %v", events, want)
		}
	}
}

func TestRolesBucketSecurity(t *testing.T) {
	bucket := &catalog.Bucket{
		FileSecurity: false,
		Permissions:  []string{"read(any)"},
	}
	file := &catalog.File{Permissions: []string{"read(user:a)"}}

	roles := realtime.Roles(bucket, file)
	if len(roles) != 1 || roles[0] != "read(any)" {
		t.Fatalf("roles: %v", roles)
	}
}

func TestRolesFileSecurityMerges(t *testing.T) {
	bucket := &catalog.Bucket{
		FileSecurity: true,
		Permissions:  []string{"read(any)", "read(user:a)"},
	}
	file := &catalog.File{Permissions: []string{"read(user:a)", "read(user:b)"}}

	roles := realtime.Roles(bucket, file)
	want := []string{"read(any)", "read(user:a)", "read(user:b)"}
	if len(roles) != len(want) {
		t.Fatalf("roles: got %v, want %v", roles, want)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("roles: got %v, want %v", roles, want)
		}
	}
}

func TestNewPublisherReturnsNoopWhenEndpointMissing(t *testing.T) {
	pub := realtime.NewPublisher("", time.Second)
	if err := pub.Publish(context.Background(), realtime.Message{}); err != nil {
		t.Fatalf("expected noop publisher to return nil, got %v", err)
	}
}

func TestHTTPPublisherSendsMessage(t *testing.T) {
	var received realtime.Message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type: %q", r.Header.Get("Content-Type"))
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pub := realtime.NewPublisher(server.URL, time.Second)
	msg := realtime.Message{
		ProjectID: "console",
		Events:    realtime.Events("vid", "rend", "create"),
		Channels:  realtime.Channels("vid", "rend"),
		Roles:     []string{"read(any)"},
		Payload:   map[string]any{"status": "started"},
	}
	if err := pub.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if received.ProjectID != "console" {
		t.Fatalf("project: %q", received.ProjectID)
	}
	if len(received.Events) == 0 || received.Events[0] != "videos.vid.renditions.rend.create" {
		t.Fatalf("events: %v", received.Events)
	}
	if received.Payload["status"] != "started" {
		t.Fatalf("payload: %v", received.Payload)
	}
}

func TestHTTPPublisherReportsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	pub := realtime.NewPublisher(server.URL, time.Second)
	if err := pub.Publish(context.Background(), realtime.Message{}); err == nil {
		t.Fatal("expected error for gateway failure")
	}
}
