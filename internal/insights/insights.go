// Package insights extracts story metadata from the raw video analysis
// document and normalizes the topic list persisted with a story.
package insights

import (
	"encoding/json"
	"fmt"
	"strings"
)

// unknownFace marks face entries the analysis service could not identify.
// They carry no editorial value, so they are dropped from the metadata.
const unknownFace = "Unknown"

// Metadata is the pipe-delimited story metadata pulled out of an analysis
// document. Each non-empty field keeps a trailing separator so downstream
// consumers can split without special-casing the last element.
type Metadata struct {
	Topics     string
	Faces      string
	Keywords   string
	OCR        string
	Transcript string
}

// ParseError indicates the analysis document or a stored topic string did not
// have the expected shape.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse insights: %s", e.Reason)
}

// namedItem covers insight entries keyed by display name (topics, faces).
type namedItem struct {
	Name string `json:"name"`
}

// textItem covers insight entries keyed by recognized text (keywords, OCR,
// transcript lines).
type textItem struct {
	Text string `json:"text"`
}

type analysisDocument struct {
	Videos []struct {
		Insights struct {
			Topics     []namedItem `json:"topics"`
			Faces      []namedItem `json:"faces"`
			Keywords   []textItem  `json:"keywords"`
			OCR        []textItem  `json:"ocr"`
			Transcript []textItem  `json:"transcript"`
		} `json:"insights"`
	} `json:"videos"`
}

// Extract pulls the story metadata fields from a raw analysis document.
func Extract(doc []byte) (*Metadata, error) {
	var parsed analysisDocument
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse analysis document: %w", err)
	}
	if len(parsed.Videos) == 0 {
		return nil, &ParseError{Reason: "analysis document has no videos"}
	}

	in := parsed.Videos[0].Insights
	meta := &Metadata{
		Topics:     joinNames(in.Topics, false),
		Faces:      joinNames(in.Faces, true),
		Keywords:   joinTexts(in.Keywords),
		OCR:        joinTexts(in.OCR),
		Transcript: joinTexts(in.Transcript),
	}
	return meta, nil
}

// NormalizeTopics converts a pipe-delimited topic string, optionally prefixed
// with a label ("Topics: A|B|"), into a clean slice. A string yielding no
// topics is a ParseError.
func NormalizeTopics(raw string) ([]string, error) {
	s := raw
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[idx+1:]
	}

	var topics []string
	for _, part := range strings.Split(s, "|") {
		if t := strings.TrimSpace(part); t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		return nil, &ParseError{Reason: fmt.Sprintf("no topics in %q", raw)}
	}
	return topics, nil
}

func joinNames(items []namedItem, skipUnknown bool) string {
	var b strings.Builder
	for _, item := range items {
		if item.Name == "" {
			continue
		}
		if skipUnknown && strings.Contains(item.Name, unknownFace) {
			continue
		}
		b.WriteString(item.Name)
		b.WriteString("|")
	}
	return b.String()
}

func joinTexts(items []textItem) string {
	var b strings.Builder
	for _, item := range items {
		if item.Text == "" {
			continue
		}
		b.WriteString(item.Text)
		b.WriteString("|")
	}
	return b.String()
}
