// Package blob holds the narrow object-store contract the pipeline needs:
// deleting a source video once analysis has picked it up.
package blob

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ObjectStore removes uploaded source objects after processing.
type ObjectStore interface {
	Delete(ctx context.Context, uri string) error
}

// NoopStore leaves source objects in place. Used when station storage is
// cleaned up out of band.
type NoopStore struct{}

func (NoopStore) Delete(context.Context, string) error { return nil }

// HTTPStore deletes objects with an HTTP DELETE against their URI, for
// storage fronted by a web endpoint.
type HTTPStore struct {
	http *http.Client
	log  zerolog.Logger
}

// NewHTTPStore builds an HTTP-backed object store.
func NewHTTPStore(log zerolog.Logger) *HTTPStore {
	return &HTTPStore{
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log.With().Str("component", "blob").Logger(),
	}
}

// Delete removes the object at the given URI. A missing object is not an
// error; cleanup is idempotent.
func (s *HTTPStore) Delete(ctx context.Context, uri string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, uri, nil)
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", uri, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to delete object %s: status %d", uri, resp.StatusCode)
	}

	s.log.Debug().Str("uri", uri).Msg("source object deleted")
	return nil
}
