// Package feed assembles the hearstXML delivery document for a shared story
// and pushes it to the distribution endpoint.
package feed

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// videoGenre is fixed: only finished packages travel through the pipeline.
const videoGenre = "PKG"

// Timestamp formats: the newsroom reports US-style timestamps; the feed wants
// a compact Eastern-time form.
const (
	sourceTimeLayout = "1/2/2006 3:04:05 PM"
	feedTimeLayout   = "20060102 15:04"
)

// DeliveryError indicates the assembled document could not be pushed to the
// distribution endpoint.
type DeliveryError struct {
	Filename string
	Cause    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver %s: %v", e.Filename, e.Cause)
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// Uploader pushes an assembled document to the distribution endpoint.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) error
}

// Document carries the story fields that go into the feed.
type Document struct {
	Slug string
	// MediaObject is the raw production markup from the newsroom, still
	// wrapped in its outer bracket characters.
	MediaObject string
	FromStation string
	FromPerson  string
	// VideoTimestamp is the newsroom modification time in its raw US form.
	VideoTimestamp string
	Topics         []string
	Keywords       string
	OfInterestTo   []string
}

// hearstXML is the delivery document. Element order is fixed; the ingesting
// system reads positionally.
type hearstXML struct {
	XMLName          xml.Name    `xml:"hearstXML"`
	MessageID        string      `xml:"messageID"`
	Slug             string      `xml:"slug"`
	MediaObject      mediaObject `xml:"mediaObject"`
	VideoGenre       string      `xml:"videoGenre"`
	FromStation      string      `xml:"fromStation"`
	FromPerson       string      `xml:"fromPerson"`
	VideoTimestamp   string      `xml:"videoTimestamp"`
	ProcessTimeStamp string      `xml:"processTimeStamp"`
	Subject          string      `xml:"subject"`
	Keywords         string      `xml:"keywords"`
	OfInterestTo     string      `xml:"ofInterestTo"`
}

type mediaObject struct {
	Markup string `xml:",innerxml"`
}

// Assembler builds and delivers feed documents.
type Assembler struct {
	uploader Uploader
	zone     *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

// NewAssembler builds a feed assembler delivering through the given uploader.
func NewAssembler(uploader Uploader, log zerolog.Logger) (*Assembler, error) {
	zone, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("failed to load feed time zone: %w", err)
	}
	return &Assembler{
		uploader: uploader,
		zone:     zone,
		now:      time.Now,
		log:      log.With().Str("component", "feed").Logger(),
	}, nil
}

// MessageID derives the deterministic document id from a slug: the first 7
// hex characters of its SHA-256 digest. Same slug, same id, so a re-delivery
// overwrites rather than duplicates.
func MessageID(slug string) string {
	digest := sha256.Sum256([]byte(slug))
	return hex.EncodeToString(digest[:])[:7]
}

// Build assembles the document and returns its XML bytes and message id.
func (a *Assembler) Build(doc Document) ([]byte, string, error) {
	messageID := MessageID(doc.Slug)

	out := hearstXML{
		MessageID:        messageID,
		Slug:             doc.Slug,
		MediaObject:      a.embedMarkup(doc.MediaObject),
		VideoGenre:       videoGenre,
		FromStation:      doc.FromStation,
		FromPerson:       doc.FromPerson,
		VideoTimestamp:   a.formatVideoTimestamp(doc.VideoTimestamp),
		ProcessTimeStamp: a.now().In(a.zone).Format(feedTimeLayout),
		Subject:          strings.Join(doc.Topics, ", "),
		Keywords:         doc.Keywords,
		OfInterestTo:     strings.Join(doc.OfInterestTo, ","),
	}

	data, err := xml.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("failed to assemble feed document: %w", err)
	}
	return append([]byte(xml.Header), data...), messageID, nil
}

// Deliver assembles the document and pushes it as <messageID>.xml. Build and
// transfer failures are fatal for the story; there is no retry.
func (a *Assembler) Deliver(ctx context.Context, doc Document) error {
	data, messageID, err := a.Build(doc)
	if err != nil {
		return err
	}

	filename := messageID + ".xml"
	if err := a.uploader.Upload(ctx, filename, data); err != nil {
		return &DeliveryError{Filename: filename, Cause: err}
	}

	a.log.Info().Str("file", filename).Str("slug", doc.Slug).Msg("feed document delivered")
	return nil
}

// embedMarkup prepares the newsroom production markup for embedding: the
// outer bracket characters are stripped and non-breaking spaces normalized.
// Markup that is not well-formed is embedded as escaped text instead of
// aborting the delivery.
func (a *Assembler) embedMarkup(raw string) mediaObject {
	markup := raw
	if len(markup) >= 2 {
		markup = markup[1 : len(markup)-1]
	}
	markup = strings.ReplaceAll(markup, "\u00a0", " ")

	if wellFormed(markup) {
		return mediaObject{Markup: markup}
	}

	a.log.Warn().Msg("production markup is not well-formed, embedding as text")
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(markup))
	return mediaObject{Markup: buf.String()}
}

// formatVideoTimestamp reformats the newsroom timestamp for the feed. An
// unparseable value passes through unchanged rather than dropping the field.
func (a *Assembler) formatVideoTimestamp(raw string) string {
	t, err := time.Parse(sourceTimeLayout, raw)
	if err != nil {
		a.log.Warn().Str("timestamp", raw).Msg("unparseable video timestamp, passing through")
		return raw
	}
	return t.Format(feedTimeLayout)
}

// wellFormed reports whether the markup parses as a balanced XML fragment.
func wellFormed(markup string) bool {
	decoder := xml.NewDecoder(strings.NewReader(markup))
	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return true
		}
		if err != nil {
			return false
		}
	}
}
