// Package interest decides which stations receive a story, either by
// force-share fan-out or by asking the reasoning service to match the story's
// topics against each station's recent coverage.
package interest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/hearstlab/storyshare/internal/llm"
	"github.com/hearstlab/storyshare/internal/prompts"
	"github.com/hearstlab/storyshare/internal/schemas"
	"github.com/hearstlab/storyshare/internal/stations"
	"github.com/hearstlab/storyshare/internal/store"
)

// Retry tuning for provider quota rejections.
const (
	maxAttempts = 5
	baseDelay   = 2 * time.Second
)

// RateLimitError indicates the reasoning service kept rejecting the request
// for quota after all retries.
type RateLimitError struct {
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("reasoning service rate limited after %d attempts", e.Attempts)
}

// UpstreamError indicates a non-retryable reasoning service failure.
type UpstreamError struct {
	Cause error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("reasoning service request failed: %v", e.Cause)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// TopicSource supplies the recent-topic snapshot fed to the reasoning
// service.
type TopicSource interface {
	StationTopicsSince(ctx context.Context, exclude string, window time.Duration) ([]store.StationTopics, error)
}

// Resolver determines the stations interested in a story.
type Resolver struct {
	llm      llm.Client
	topics   TopicSource
	registry *stations.Registry
	window   time.Duration

	// sem bounds concurrent reasoning-service calls across the process.
	sem   *semaphore.Weighted
	sleep func(time.Duration)
	log   zerolog.Logger
}

// NewResolver builds an interest resolver. maxConcurrent bounds in-flight
// reasoning-service calls.
func NewResolver(client llm.Client, topics TopicSource, registry *stations.Registry, window time.Duration, maxConcurrent int64, log zerolog.Logger) *Resolver {
	return &Resolver{
		llm:      client,
		topics:   topics,
		registry: registry,
		window:   window,
		sem:      semaphore.NewWeighted(maxConcurrent),
		sleep:    time.Sleep,
		log:      log.With().Str("component", "interest").Logger(),
	}
}

// Resolve returns the stations interested in a story with the given topics.
// A force-shared story goes to every station except the origin without
// consulting the reasoning service.
func (r *Resolver) Resolve(ctx context.Context, topics []string, origin string, forceShare bool) ([]string, error) {
	if forceShare {
		interested := r.registry.NamesExcluding(origin)
		r.log.Info().Str("origin", origin).Strs("stations", interested).Msg("force share, fanning out to all stations")
		return interested, nil
	}

	snapshot, err := r.topics.StationTopicsSince(ctx, origin, r.window)
	if err != nil {
		return nil, fmt.Errorf("failed to load station topic snapshot: %w", err)
	}

	prompt := r.buildPrompt(snapshot, topics)

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire resolve slot: %w", err)
	}
	defer r.sem.Release(1)

	raw, err := r.generateWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if err := schemas.Validate(schemas.InterestedStations, raw); err != nil {
		return nil, fmt.Errorf("reasoning service returned malformed interest list: %w", err)
	}

	var parsed struct {
		InterestedStations []string `json:"interestedStations"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse interest list: %w", err)
	}

	interested := r.filterKnown(parsed.InterestedStations, origin)
	r.log.Info().Str("origin", origin).Strs("stations", interested).Msg("interest resolved")
	return interested, nil
}

// generateWithRetry calls the reasoning service, backing off exponentially on
// quota rejections. Other errors fail immediately.
func (r *Resolver) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := r.llm.GenerateJSON(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		if !llm.RateLimited(err) {
			return "", &UpstreamError{Cause: err}
		}

		lastErr = err
		if attempt < maxAttempts {
			delay := baseDelay << (attempt - 1)
			r.log.Warn().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("reasoning service rate limited, backing off")
			r.sleep(delay)
		}
	}

	r.log.Error().Err(lastErr).Msg("reasoning service rate limited on final attempt")
	return "", &RateLimitError{Attempts: maxAttempts}
}

// buildPrompt renders the interest prompt from the topic snapshot and the
// story's own topics.
func (r *Resolver) buildPrompt(snapshot []store.StationTopics, topics []string) string {
	var sb strings.Builder
	for _, st := range snapshot {
		sb.WriteString(st.StationName)
		sb.WriteString(": ")
		sb.WriteString(strings.Join(st.Topics, ", "))
		sb.WriteString("\n")
	}

	template := prompts.MustGet("interest.json", "resolve-interest")
	return prompts.Format(template, map[string]string{
		"StationTopics": sb.String(),
		"VideoTopics":   strings.Join(topics, ", "),
	})
}

// filterKnown drops unknown station names and the origin from the reasoning
// service's answer.
func (r *Resolver) filterKnown(names []string, origin string) []string {
	var interested []string
	for _, name := range names {
		if name == origin {
			continue
		}
		if _, err := r.registry.Get(name); err != nil {
			r.log.Warn().Str("station", name).Msg("reasoning service named an unknown station, dropping")
			continue
		}
		interested = append(interested, name)
	}
	return interested
}
