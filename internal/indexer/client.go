// Package indexer is a client for the external video analysis service. A
// video is uploaded once with a callback URL attached; the service posts
// state changes back to us, so we never poll a long-running job.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds each analysis-service HTTP call.
const DefaultTimeout = 60 * time.Second

// UpstreamError indicates a non-success response from the analysis service.
type UpstreamError struct {
	Operation  string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("indexer %s failed with status %d", e.Operation, e.StatusCode)
}

// Client talks to the analysis service's account-scoped video API.
type Client struct {
	baseURL     string
	accessToken string
	callbackURL string
	http        *http.Client
	log         zerolog.Logger
}

// NewClient builds an analysis-service client.
func NewClient(baseURL, accessToken, callbackURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		callbackURL: callbackURL,
		http:        &http.Client{Timeout: DefaultTimeout},
		log:         log.With().Str("component", "indexer").Logger(),
	}
}

// Upload submits a video by source URL and returns the service-assigned video
// ID. The configured callback URL is attached so completion arrives as an
// inbound notification.
func (c *Client) Upload(ctx context.Context, name, sourceURL string) (string, error) {
	params := url.Values{
		"accessToken": {c.accessToken},
		"name":        {name},
		"privacy":     {"Private"},
		"videoUrl":    {sourceURL},
		"callbackUrl": {c.callbackURL},
	}

	endpoint := fmt.Sprintf("%s/videos?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("indexer upload request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{Operation: "upload", StatusCode: resp.StatusCode}
	}

	var video Video
	if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	if video.ID == "" {
		return "", fmt.Errorf("indexer upload response has no video id")
	}

	c.log.Info().Str("video", name).Str("video_id", video.ID).Msg("video submitted for analysis")
	return video.ID, nil
}

// GetIndex fetches the full analysis document for a processed video. The
// document is returned raw; extraction is the metadata extractor's job.
func (c *Client) GetIndex(ctx context.Context, videoID string) ([]byte, error) {
	params := url.Values{
		"accessToken": {c.accessToken},
		"language":    {"English"},
	}

	endpoint := fmt.Sprintf("%s/videos/%s/index?%s", c.baseURL, url.PathEscape(videoID), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create index request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer index request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Operation: "get index", StatusCode: resp.StatusCode}
	}

	doc, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read index response: %w", err)
	}
	return doc, nil
}
