// Package pipeline orchestrates a video's path from arrival through analysis,
// interest resolution and feed delivery. Each triggering event runs one
// independent pipeline instance; the Story record bridges the asynchronous
// gap between submission and the analysis callback.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hearstlab/storyshare/internal/enps"
	"github.com/hearstlab/storyshare/internal/feed"
	"github.com/hearstlab/storyshare/internal/indexer"
	"github.com/hearstlab/storyshare/internal/insights"
	"github.com/hearstlab/storyshare/internal/stations"
	"github.com/hearstlab/storyshare/internal/store"
)

// ErrNotEligible marks a video the eligibility gate turned away. A skip is a
// normal outcome, not a failure.
var ErrNotEligible = errors.New("video is not eligible for processing")

// ArrivalEvent is an object-arrival notification from station storage.
type ArrivalEvent struct {
	Name      string    `json:"name"`
	URI       string    `json:"uri"`
	CreatedAt time.Time `json:"created_at"`
}

// Newsroom is the slice of the newsroom client the pipeline consumes.
type Newsroom interface {
	Login(ctx context.Context) error
	Search(ctx context.Context, videoName string, station stations.Station) (*enps.SearchResult, error)
	GetBasicContent(ctx context.Context, path, guid string) (*enps.BasicContent, error)
}

// Analyzer is the slice of the analysis-service client the pipeline consumes.
type Analyzer interface {
	Upload(ctx context.Context, name, sourceURL string) (string, error)
	GetIndex(ctx context.Context, videoID string) ([]byte, error)
}

// Storage is the slice of the story store the pipeline consumes.
type Storage interface {
	CreateStory(ctx context.Context, story *store.Story) (*store.Story, error)
	GetStoryByVideoID(ctx context.Context, videoID string) (*store.Story, error)
	UpdateStory(ctx context.Context, story *store.Story) error
	DeleteStory(ctx context.Context, id uuid.UUID) error
}

// Resolver decides which stations receive a story.
type Resolver interface {
	Resolve(ctx context.Context, topics []string, origin string, forceShare bool) ([]string, error)
}

// Deliverer assembles and ships the feed document.
type Deliverer interface {
	Deliver(ctx context.Context, doc feed.Document) error
}

// ObjectStore removes the source object once analysis has consumed it.
type ObjectStore interface {
	Delete(ctx context.Context, uri string) error
}

// Pipeline wires the stages together.
type Pipeline struct {
	registry *stations.Registry
	newsroom Newsroom
	analyzer Analyzer
	storage  Storage
	resolver Resolver
	deliver  Deliverer
	objects  ObjectStore

	ageThreshold time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

// New builds a pipeline. ageThreshold bounds how old a video may be and still
// be processed without the force-share override.
func New(registry *stations.Registry, newsroom Newsroom, analyzer Analyzer, storage Storage,
	resolver Resolver, deliver Deliverer, objects ObjectStore, ageThreshold time.Duration, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		registry:     registry,
		newsroom:     newsroom,
		analyzer:     analyzer,
		storage:      storage,
		resolver:     resolver,
		deliver:      deliver,
		objects:      objects,
		ageThreshold: ageThreshold,
		now:          time.Now,
		log:          log.With().Str("component", "pipeline").Logger(),
	}
}

// HandleArrival runs the arrival half of the pipeline: gate the video against
// the newsroom, submit it for analysis, and persist the provisional story.
// An ineligible video is a clean skip.
func (p *Pipeline) HandleArrival(ctx context.Context, event ArrivalEvent) error {
	log := p.log.With().Str("video", event.Name).Logger()
	log.Info().Str("uri", event.URI).Msg("video arrival detected")

	stationName, station, err := p.stationFromURI(event.URI)
	if err != nil {
		return err
	}

	search, content, err := p.evaluateEligibility(ctx, event, station)
	if errors.Is(err, ErrNotEligible) {
		log.Info().Str("station", stationName).Msg("video skipped by eligibility gate")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Str("station", stationName).Str("slug", search.Slug).Msg("video eligible")

	story, err := p.submit(ctx, event, stationName, search, content)
	if err != nil {
		return err
	}

	log.Info().Str("video_id", story.VideoID).Str("state", string(StateSubmitted)).Msg("story submitted for analysis")
	return nil
}

// HandleCallback runs the callback half of the pipeline for a state change
// reported by the analysis service. Non-terminal states are acknowledged and
// ignored; Failed removes the provisional story; Processed drives the story
// through extraction, interest resolution and delivery.
func (p *Pipeline) HandleCallback(ctx context.Context, cb indexer.Callback) error {
	log := p.log.With().Str("video_id", cb.VideoID).Str("callback_state", string(cb.State)).Logger()

	if !cb.State.Terminal() {
		log.Debug().Msg("intermediate analysis state, nothing to do")
		return nil
	}

	story, err := p.storage.GetStoryByVideoID(ctx, cb.VideoID)
	if err != nil {
		return err
	}
	if story == nil {
		log.Warn().Msg("callback for unknown video, ignoring")
		return nil
	}

	current := State(story.State)
	if cb.State == indexer.StateFailed {
		if !current.CanAdvanceTo(StateFailed) {
			log.Warn().Str("story_state", story.State).Msg("failure callback for a finished story, ignoring")
			return nil
		}
		return p.abandonStory(ctx, story, log)
	}

	// A replayed success callback is only honored while the story is still
	// waiting on analysis; once delivered it must not ship again.
	if !current.CanAdvanceTo(StateAnalysisComplete) {
		log.Warn().Str("story_state", story.State).Msg("duplicate analysis callback, ignoring")
		return nil
	}

	meta, err := p.completeAnalysis(ctx, story, log)
	if err != nil {
		return err
	}

	p.extractMetadata(ctx, story, meta, log)
	p.cleanupSource(ctx, story, log)

	interested, err := p.resolveInterest(ctx, story, log)
	if err != nil {
		return err
	}
	if len(interested) == 0 {
		log.Info().Msg("no station interested, skipping delivery")
		return nil
	}

	return p.deliverStory(ctx, story, meta, interested, log)
}

// stationFromURI derives the origin station by matching the event URI against
// the registry's proxy server prefixes.
func (p *Pipeline) stationFromURI(uri string) (string, stations.Station, error) {
	for _, name := range p.registry.Names() {
		station, err := p.registry.Get(name)
		if err != nil {
			continue
		}
		if strings.HasPrefix(uri, station.ServerAddress) {
			return name, station, nil
		}
	}
	return "", stations.Station{}, fmt.Errorf("no station matches arrival uri %s", uri)
}

// evaluateEligibility gates the video against the newsroom. A video passes
// when the producer set the force-share flag, or when it is a finished story
// package no older than the age threshold.
func (p *Pipeline) evaluateEligibility(ctx context.Context, event ArrivalEvent, station stations.Station) (*enps.SearchResult, *enps.BasicContent, error) {
	if err := p.newsroom.Login(ctx); err != nil {
		return nil, nil, err
	}

	search, err := p.newsroom.Search(ctx, event.Name, station)
	if err != nil {
		return nil, nil, err
	}
	if search.GUID == "" {
		return nil, nil, ErrNotEligible
	}

	content, err := p.newsroom.GetBasicContent(ctx, search.Path, search.GUID)
	if err != nil {
		return nil, nil, err
	}

	if content.HearstShare {
		return search, content, nil
	}
	if !search.IsStoryAndPackage {
		return nil, nil, ErrNotEligible
	}
	if age := p.now().Sub(search.ModTime); age >= p.ageThreshold {
		return nil, nil, ErrNotEligible
	}
	return search, content, nil
}

// submit uploads the video for analysis and persists the provisional story.
// The analysis-assigned video ID is stored immediately so a later callback,
// including a failure, can find the record.
func (p *Pipeline) submit(ctx context.Context, event ArrivalEvent, stationName string, search *enps.SearchResult, content *enps.BasicContent) (*store.Story, error) {
	videoID, err := p.analyzer.Upload(ctx, event.Name, event.URI)
	if err != nil {
		return nil, err
	}

	story := &store.Story{
		State:              string(StateSubmitted),
		StationName:        stationName,
		VideoName:          event.Name,
		VideoID:            videoID,
		StoryDateTime:      search.ModTime,
		EnpsSlug:           search.Slug,
		EnpsMediaObject:    content.MediaObject,
		EnpsFromPerson:     content.Creator,
		EnpsVideoTimestamp: content.RawModTime,
		EnpsHearstShare:    content.HearstShare,
		VideoOverviewText:  content.OverviewText,
	}

	// Duplicate arrivals collapse onto the first record here.
	return p.storage.CreateStory(ctx, story)
}

// abandonStory removes the provisional record after a failed analysis so the
// video can be resubmitted later.
func (p *Pipeline) abandonStory(ctx context.Context, story *store.Story, log zerolog.Logger) error {
	if err := p.storage.DeleteStory(ctx, story.ID); err != nil {
		return err
	}
	log.Warn().Str("state", string(StateFailed)).Str("video", story.VideoName).Msg("analysis failed, story abandoned")
	return nil
}

// completeAnalysis fetches the analysis document and extracts story metadata.
func (p *Pipeline) completeAnalysis(ctx context.Context, story *store.Story, log zerolog.Logger) (*insights.Metadata, error) {
	doc, err := p.analyzer.GetIndex(ctx, story.VideoID)
	if err != nil {
		return nil, err
	}

	meta, err := insights.Extract(doc)
	if err != nil {
		return nil, err
	}

	log.Info().Str("state", string(StateAnalysisComplete)).Msg("analysis document retrieved")
	return meta, nil
}

// extractMetadata normalizes the topic list onto the story. A malformed topic
// string is logged and the story keeps its previous topics; the pipeline
// continues.
func (p *Pipeline) extractMetadata(ctx context.Context, story *store.Story, meta *insights.Metadata, log zerolog.Logger) {
	topics, err := insights.NormalizeTopics(meta.Topics)
	if err != nil {
		log.Warn().Err(err).Msg("topic normalization failed, continuing without topic update")
	} else {
		story.Topics = topics
	}

	if err := p.storage.UpdateStory(ctx, story); err != nil {
		log.Warn().Err(err).Msg("failed to persist extracted metadata")
		return
	}
	log.Info().Str("state", string(StateMetadataExtracted)).Strs("topics", story.Topics).Msg("metadata extracted")
}

// cleanupSource deletes the uploaded object from station storage. Best
// effort; the analysis service has its own copy by now.
func (p *Pipeline) cleanupSource(ctx context.Context, story *store.Story, log zerolog.Logger) {
	addr, err := p.registry.ServerAddress(story.StationName)
	if err != nil {
		return
	}
	uri := addr + story.VideoName
	if err := p.objects.Delete(ctx, uri); err != nil {
		log.Warn().Err(err).Str("uri", uri).Msg("failed to delete source object")
	}
}

// resolveInterest asks the resolver which stations receive the story.
func (p *Pipeline) resolveInterest(ctx context.Context, story *store.Story, log zerolog.Logger) ([]string, error) {
	interested, err := p.resolver.Resolve(ctx, story.Topics, story.StationName, story.EnpsHearstShare)
	if err != nil {
		return nil, err
	}
	log.Info().Str("state", string(StateInterestResolved)).Strs("stations", interested).Msg("interest resolved")
	return interested, nil
}

// deliverStory assembles and ships the feed document.
func (p *Pipeline) deliverStory(ctx context.Context, story *store.Story, meta *insights.Metadata, interested []string, log zerolog.Logger) error {
	doc := feed.Document{
		Slug:           story.EnpsSlug,
		MediaObject:    story.EnpsMediaObject,
		FromStation:    story.StationName,
		FromPerson:     story.EnpsFromPerson,
		VideoTimestamp: story.EnpsVideoTimestamp,
		Topics:         story.Topics,
		Keywords:       meta.Keywords + meta.Faces,
		OfInterestTo:   interested,
	}

	if err := p.deliver.Deliver(ctx, doc); err != nil {
		return err
	}

	// Persisting the state is what arms the duplicate-callback guard.
	story.State = string(StateDelivered)
	if err := p.storage.UpdateStory(ctx, story); err != nil {
		log.Warn().Err(err).Msg("failed to persist delivered state")
	}

	log.Info().Str("state", string(StateDelivered)).Str("slug", story.EnpsSlug).Msg("story delivered")
	return nil
}
