package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"prism/internal/catalog"
)

const userAgent = "Prism/0.1.0"

// Message is one realtime publication: the event name hierarchy, the
// channels to fan out on, the roles allowed to receive it, and the payload.
type Message struct {
	ProjectID string         `json:"projectId"`
	Events    []string       `json:"events"`
	Channels  []string       `json:"channels"`
	Roles     []string       `json:"roles"`
	Payload   map[string]any `json:"payload"`
}

// Publisher delivers realtime messages.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Events expands a rendition action into its event name hierarchy, most
// specific first.
func Events(videoID, renditionID, action string) []string {
	return []string{
		fmt.Sprintf("videos.%s.renditions.%s.%s", videoID, renditionID, action),
		fmt.Sprintf("videos.%s.renditions.%s", videoID, renditionID),
		fmt.Sprintf("videos.%s.renditions.*.%s", videoID, action),
		fmt.Sprintf("videos.%s.renditions.*", videoID),
	}
}

// Channels returns the subscription channels a rendition event fans out on.
func Channels(videoID, renditionID string) []string {
	return []string{
		"videos",
		"videos." + videoID,
		"videos." + videoID + ".renditions." + renditionID,
	}
}

// Roles resolves who may receive an event for a file: the bucket's
// permissions, merged with the file's own when the bucket delegates
// security to file level.
func Roles(bucket *catalog.Bucket, file *catalog.File) []string {
	if bucket == nil {
		return nil
	}
	if !bucket.FileSecurity || file == nil {
		return append([]string(nil), bucket.Permissions...)
	}
	merged := append([]string(nil), bucket.Permissions...)
	seen := make(map[string]struct{}, len(merged))
	for _, role := range merged {
		seen[role] = struct{}{}
	}
	for _, role := range file.Permissions {
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		merged = append(merged, role)
	}
	return merged
}

// NewPublisher builds an HTTP publisher for the given gateway endpoint, or
// a noop publisher when the endpoint is empty.
func NewPublisher(endpoint string, timeout time.Duration) Publisher {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Noop{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpPublisher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Noop discards every message.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, Message) error { return nil }

type httpPublisher struct {
	endpoint string
	client   *http.Client
}

func (p *httpPublisher) Publish(ctx context.Context, msg Message) error {
	if p == nil || p.client == nil {
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode realtime message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build realtime request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send realtime message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("realtime gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

var _ Publisher = (*httpPublisher)(nil)
