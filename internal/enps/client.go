// Package enps is a client for the ENPS newsroom system. It covers the three
// calls the pipeline needs: Logon for a session token, Search to judge whether
// an uploaded video is a story package, and BasicContent for the script
// overview and production markup that travel with the story.
package enps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hearstlab/storyshare/internal/config"
	"github.com/hearstlab/storyshare/internal/stations"
)

// DefaultTimeout is the per-request HTTP timeout for newsroom calls.
const DefaultTimeout = 30 * time.Second

// storyType is the newsroom content type code for a story.
const storyType = 3

// packageSuffix is the title suffix marking a finished package.
const packageSuffix = "PKG"

// SearchResult carries the fields the pipeline needs from a newsroom search
// hit.
type SearchResult struct {
	// IsStoryAndPackage is true when the asset's type is "story" and its
	// title carries the package suffix.
	IsStoryAndPackage bool
	// GUID identifies the story for the follow-up BasicContent call.
	GUID string
	// Path is the story's location on the newsroom server.
	Path string
	// Slug is the title with the trailing type suffix removed.
	Slug string
	// ModTime is the story's last modification time.
	ModTime time.Time
	// RawModTime is the unparsed modification timestamp as the newsroom
	// reports it.
	RawModTime string
}

// BasicContent carries the production fields fetched for an eligible story.
type BasicContent struct {
	OverviewText string
	// MediaObject is the embedded production markup blob, kept opaque here.
	MediaObject string
	Creator     string
	RawModTime  string
	// HearstShare is the force-distribute override set by producers.
	HearstShare bool
}

// objectProperty is the FieldName/FieldValue pair shape the newsroom API uses
// for every record.
type objectProperty struct {
	FieldName  string          `json:"FieldName"`
	FieldValue json.RawMessage `json:"FieldValue"`
}

// modTimeLayouts are tried in order when parsing newsroom timestamps.
var modTimeLayouts = []string{
	"1/2/2006 3:04:05 PM",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Client talks to one station's ENPS server.
type Client struct {
	cfg     config.EnpsConfig
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger

	sessionID string
}

// NewClient builds an ENPS client. The limiter throttles requests so a burst
// of arrival events cannot flood the newsroom server.
func NewClient(cfg config.EnpsConfig, log zerolog.Logger) *Client {
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		log:     log.With().Str("component", "enps").Logger(),
	}
}

// Login establishes a newsroom session and stores the session token used by
// subsequent calls. A non-success response is an AuthError.
func (c *Client) Login(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("failed to wait for enps limiter: %w", err)
	}

	form := url.Values{
		"staffUserId":  {c.cfg.StaffUserID},
		"domainuserId": {c.cfg.DomainUser},
		"password":     {c.cfg.Password},
		"domainName":   {c.cfg.DomainUser},
		"devKey":       {c.cfg.DevKey},
		"iClientType":  {c.cfg.ClientType},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/Logon", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create logon request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("enps logon request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &AuthError{StatusCode: resp.StatusCode}
	}

	var logon struct {
		SessionID string `json:"SessionID"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&logon); err != nil {
		return fmt.Errorf("failed to parse logon response: %w", err)
	}
	if logon.SessionID == "" {
		return &AuthError{StatusCode: resp.StatusCode}
	}

	c.sessionID = logon.SessionID
	c.log.Debug().Msg("newsroom session established")
	return nil
}

// Search queries the station's newsroom database for the named proxy video
// and reports whether it is a story package, along with the identifiers
// needed for the BasicContent follow-up. The station entry supplies the
// database, script location and proxy server prefix to search under.
func (c *Client) Search(ctx context.Context, videoName string, station stations.Station) (*SearchResult, error) {
	body := map[string]any{
		"Database":        station.Database,
		"ExactMatch":      true,
		"MaxRows":         200,
		"NOMContentDates": map[string]any{"All": true},
		"NOMContentTypes": map[string]any{"Scripts": true},
		"NOMLocations": []map[string]any{{
			"BasePath":       station.Basepath,
			"SearchArchives": false,
			"SearchTrash":    false,
			"SearchWIP":      true,
		}},
		"QueryTerms": station.ServerAddress + videoName,
		"SortByRank": false,
		"SearchWires": false,
		"zFields":    []string{},
	}

	var search struct {
		SearchResults []struct {
			ObjectProperties []objectProperty `json:"ObjectProperties"`
		} `json:"SearchResults"`
	}
	if err := c.post(ctx, "/Search", body, &search); err != nil {
		return nil, err
	}

	result := &SearchResult{}
	if len(search.SearchResults) == 0 {
		return result, nil
	}

	var isStory, isPackage bool
	for _, prop := range search.SearchResults[0].ObjectProperties {
		value := rawString(prop.FieldValue)
		switch strings.ToLower(prop.FieldName) {
		case "guid":
			result.GUID = value
		case "type":
			if code, err := strconv.Atoi(value); err == nil && code == storyType {
				isStory = true
			}
		case "modtime":
			result.RawModTime = value
			if t, err := parseModTime(value); err == nil {
				result.ModTime = t
			} else {
				c.log.Warn().Str("modtime", value).Msg("unparseable modtime in search result")
			}
		case "path":
			result.Path = value
		case "title":
			slug, suffix := splitTitle(value)
			result.Slug = slug
			if suffix == packageSuffix {
				isPackage = true
			}
		}
	}

	result.IsStoryAndPackage = isStory && isPackage
	c.log.Debug().
		Str("video", videoName).
		Bool("story_and_pkg", result.IsStoryAndPackage).
		Str("slug", result.Slug).
		Msg("newsroom search complete")
	return result, nil
}

// GetBasicContent fetches the story overview text, production markup, creator
// and modification timestamp for a story found via Search.
func (c *Client) GetBasicContent(ctx context.Context, path, guid string) (*BasicContent, error) {
	body := []map[string]any{{
		"database":         "ENPS",
		"path":             path,
		"guid":             guid,
		"hitHighlightTerm": "",
		"returnTextLevel":  "FULL",
	}}

	// The endpoint answers with a single-element array mirroring the request.
	var results []struct {
		ObjectProperties []objectProperty `json:"ObjectProperties"`
	}
	if err := c.post(ctx, "/BasicContent", body, &results); err != nil {
		return nil, err
	}

	content := &BasicContent{}
	if len(results) == 0 {
		return content, nil
	}

	for _, prop := range results[0].ObjectProperties {
		switch strings.ToLower(prop.FieldName) {
		case "text":
			content.OverviewText = rawString(prop.FieldValue)
		case "textcommands":
			content.MediaObject = rawString(prop.FieldValue)
		case "creator":
			content.Creator = rawString(prop.FieldValue)
		case "modtime":
			content.RawModTime = rawString(prop.FieldValue)
		case "hearstshare":
			content.HearstShare = rawBool(prop.FieldValue)
		}
	}
	return content, nil
}

// post sends an authenticated JSON request and decodes the response into out.
func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("failed to wait for enps limiter: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ENPS-TOKEN", c.sessionID)

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Endpoint: endpoint, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &RequestError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Endpoint: endpoint, Cause: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", endpoint, err)
	}
	return nil
}

// splitTitle separates a newsroom title into slug and trailing type suffix,
// e.g. "Storm-PKG" -> ("Storm", "PKG"). Titles without a dash have no suffix.
func splitTitle(title string) (slug, suffix string) {
	idx := strings.LastIndex(title, "-")
	if idx < 0 {
		return title, ""
	}
	return title[:idx], title[idx+1:]
}

// parseModTime tries the known newsroom timestamp layouts.
func parseModTime(value string) (time.Time, error) {
	for _, layout := range modTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", value)
}

// rawString decodes a JSON field value that may be a string or another
// scalar, returning its string form.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

// rawBool decodes a JSON field value that may be a bool or a string flag.
func rawBool(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	s := strings.ToLower(rawString(raw))
	return s == "true" || s == "1" || s == "yes"
}
