// Package store provides PostgreSQL persistence for story records.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Story is the persisted record tracking a video through the pipeline, from
// submission through feed delivery.
type Story struct {
	ID          uuid.UUID `json:"id"`
	StationName string    `json:"station_name"`
	VideoName   string    `json:"video_name"`
	// VideoID is the identifier assigned by the analysis service at
	// submission time; callbacks carry it, so it is stored immediately.
	VideoID       string    `json:"video_id"`
	StoryDateTime time.Time `json:"story_date_time"`
	Topics        []string  `json:"topics"`

	EnpsSlug        string `json:"enps_slug"`
	EnpsMediaObject string `json:"enps_media_object"`
	EnpsFromPerson  string `json:"enps_from_person"`
	// EnpsVideoTimestamp is kept in the newsroom's raw string form so the
	// feed builder can reformat it without a round-trip through time.Time.
	EnpsVideoTimestamp string `json:"enps_video_timestamp"`
	EnpsHearstShare    bool   `json:"enps_hearst_share"`

	VideoOverviewText string `json:"video_overview_text"`

	// State is the pipeline progress marker. The callback handler consults it
	// to reject duplicate or stale analysis callbacks.
	State string `json:"state"`
}

// StationTopics groups the recent topics of one station for the interest
// snapshot fed to the reasoning service.
type StationTopics struct {
	StationName string   `json:"station_name"`
	Topics      []string `json:"topics"`
}

// Store wraps a PostgreSQL connection pool.
type Store struct {
	pool *pgxpool.Pool

	// now is swapped out in tests to pin the topic-window cutoff.
	now func() time.Time
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool, now: time.Now}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the stories table if it does not exist. The unique
// constraint on (station_name, video_name) is what makes story creation
// idempotent under duplicate arrival events.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS stories (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			station_name TEXT NOT NULL,
			video_name TEXT NOT NULL,
			video_id TEXT NOT NULL DEFAULT '',
			story_date_time TIMESTAMPTZ NOT NULL,
			topics TEXT[] NOT NULL DEFAULT '{}',
			enps_slug TEXT NOT NULL DEFAULT '',
			enps_media_object TEXT NOT NULL DEFAULT '',
			enps_from_person TEXT NOT NULL DEFAULT '',
			enps_video_timestamp TEXT NOT NULL DEFAULT '',
			enps_hearst_share BOOLEAN NOT NULL DEFAULT FALSE,
			video_overview_text TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT 'Submitted',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (station_name, video_name)
		)`)
	if err != nil {
		return fmt.Errorf("failed to migrate stories table: %w", err)
	}
	return nil
}

const storyColumns = `id, station_name, video_name, video_id, story_date_time, topics,
	enps_slug, enps_media_object, enps_from_person, enps_video_timestamp,
	enps_hearst_share, video_overview_text, state`

// CreateStory inserts a story record. A second insert for the same station
// and video name is a no-op; the existing record is returned either way.
func (s *Store) CreateStory(ctx context.Context, story *Story) (*Story, error) {
	if story.ID == uuid.Nil {
		story.ID = uuid.New()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO stories (id, station_name, video_name, video_id, story_date_time, topics,
			enps_slug, enps_media_object, enps_from_person, enps_video_timestamp,
			enps_hearst_share, video_overview_text, state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (station_name, video_name) DO NOTHING`,
		story.ID, story.StationName, story.VideoName, story.VideoID,
		story.StoryDateTime, story.Topics, story.EnpsSlug, story.EnpsMediaObject,
		story.EnpsFromPerson, story.EnpsVideoTimestamp, story.EnpsHearstShare,
		story.VideoOverviewText, story.State,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}

	return s.GetStoryByVideoName(ctx, story.StationName, story.VideoName)
}

// GetStoryByVideoID retrieves the story submitted under the given analysis
// service video ID. Returns nil when no such story exists.
func (s *Store) GetStoryByVideoID(ctx context.Context, videoID string) (*Story, error) {
	return s.getStory(ctx,
		fmt.Sprintf(`SELECT %s FROM stories WHERE video_id = $1`, storyColumns), videoID)
}

// GetStoryByVideoName retrieves a story by its station and proxy video name.
// Returns nil when no such story exists.
func (s *Store) GetStoryByVideoName(ctx context.Context, stationName, videoName string) (*Story, error) {
	return s.getStory(ctx,
		fmt.Sprintf(`SELECT %s FROM stories WHERE station_name = $1 AND video_name = $2`, storyColumns),
		stationName, videoName)
}

func (s *Store) getStory(ctx context.Context, query string, args ...any) (*Story, error) {
	var story Story
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&story.ID, &story.StationName, &story.VideoName, &story.VideoID,
		&story.StoryDateTime, &story.Topics, &story.EnpsSlug, &story.EnpsMediaObject,
		&story.EnpsFromPerson, &story.EnpsVideoTimestamp, &story.EnpsHearstShare,
		&story.VideoOverviewText, &story.State,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return &story, nil
}

// UpdateStory writes back the mutable fields of an existing story.
func (s *Store) UpdateStory(ctx context.Context, story *Story) error {
	result, err := s.pool.Exec(ctx,
		`UPDATE stories SET video_id = $2, topics = $3, enps_slug = $4,
			enps_media_object = $5, enps_from_person = $6, enps_video_timestamp = $7,
			enps_hearst_share = $8, video_overview_text = $9, state = $10
		 WHERE id = $1`,
		story.ID, story.VideoID, story.Topics, story.EnpsSlug,
		story.EnpsMediaObject, story.EnpsFromPerson, story.EnpsVideoTimestamp,
		story.EnpsHearstShare, story.VideoOverviewText, story.State,
	)
	if err != nil {
		return fmt.Errorf("failed to update story: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("story not found: %s", story.ID)
	}
	return nil
}

// DeleteStory removes a story record, typically after a failed analysis so
// the video can be resubmitted.
func (s *Store) DeleteStory(ctx context.Context, id uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM stories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("story not found: %s", id)
	}
	return nil
}

// StationTopicsSince returns each station's topics from stories dated inside
// the trailing window, excluding the named station. Stations with no topics
// in the window are omitted.
func (s *Store) StationTopicsSince(ctx context.Context, exclude string, window time.Duration) ([]StationTopics, error) {
	since := s.now().Add(-window)
	rows, err := s.pool.Query(ctx,
		`SELECT station_name, topics FROM stories
		 WHERE station_name <> $1 AND story_date_time >= $2 AND cardinality(topics) > 0
		 ORDER BY station_name, story_date_time DESC`,
		exclude, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query station topics: %w", err)
	}
	defer rows.Close()

	byStation := map[string]int{}
	var snapshot []StationTopics
	for rows.Next() {
		var station string
		var topics []string
		if err := rows.Scan(&station, &topics); err != nil {
			return nil, fmt.Errorf("failed to scan station topics: %w", err)
		}
		idx, ok := byStation[station]
		if !ok {
			idx = len(snapshot)
			byStation[station] = idx
			snapshot = append(snapshot, StationTopics{StationName: station})
		}
		snapshot[idx].Topics = append(snapshot[idx].Topics, topics...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read station topics: %w", err)
	}
	return snapshot, nil
}
