// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citation maps grounding sources to short, stable URLs, inserts
// inline citation markers into search text, and substitutes the short URLs
// in a final answer with the real ones.
//
// Short URLs have the form <ShortURLPrefix><taskID>-<chunkIndex>. The task id
// keeps short URLs from concurrent search tasks disjoint, and the chunk index
// of the first chunk carrying a URL makes the mapping stable within a task.
package citation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/research-agent/pkg/types"
)

// ShortURLPrefix is prepended to every short URL.
const ShortURLPrefix = "https://vertexaisearch.cloud.google.com/id/"

// shortURLRe matches a complete short URL token. Both numbers are greedy so
// a short URL never matches inside a longer one (…/1-1 inside …/1-10).
var shortURLRe = regexp.MustCompile(regexp.QuoteMeta(ShortURLPrefix) + `(\d+)-(\d+)`)

// ShortURL returns the short URL for a chunk of a search task.
func ShortURL(taskID, chunkIndex int) string {
	return fmt.Sprintf("%s%d-%d", ShortURLPrefix, taskID, chunkIndex)
}

// ResolutionError describes a grounding chunk or support that could not be
// turned into a citation. It is reported for logging; the offending entry
// is skipped and resolution continues.
type ResolutionError struct {
	TaskID       int
	ChunkIndex   int
	SupportIndex int
	Reason       string
}

func (e *ResolutionError) Error() string {
	if e.ChunkIndex >= 0 {
		return fmt.Sprintf("task %d: chunk %d: %s", e.TaskID, e.ChunkIndex, e.Reason)
	}
	return fmt.Sprintf("task %d: support %d: %s", e.TaskID, e.SupportIndex, e.Reason)
}

// ResolveURLs maps each chunk URL to its short URL. A URL seen more than once
// keeps the short URL of its first chunk. Chunks without a URL are skipped.
func ResolveURLs(chunks []types.GroundingChunk, taskID int) map[string]string {
	resolved := make(map[string]string, len(chunks))
	for i, c := range chunks {
		url := strings.TrimSpace(c.URL)
		if url == "" {
			continue
		}
		if _, ok := resolved[url]; !ok {
			resolved[url] = ShortURL(taskID, i)
		}
	}
	return resolved
}

// Segment is one source attached to a citation.
type Segment struct {
	Label    string
	ShortURL string
	Value    string
}

// Citation marks a byte range of the search text and the sources backing it.
type Citation struct {
	StartIndex int
	EndIndex   int
	Segments   []Segment
}

// Build turns the grounding supports of resp into citations. Supports with
// an invalid range and chunk references that are out of range or carry no
// resolvable URL are skipped and reported as ResolutionErrors.
func Build(resp types.GroundedResponse, resolved map[string]string, taskID int) ([]Citation, []error) {
	var (
		citations []Citation
		problems  []error
	)
	for si, sup := range resp.Supports {
		if sup.StartIndex < 0 || sup.EndIndex <= sup.StartIndex || sup.EndIndex > len(resp.Text) {
			problems = append(problems, &ResolutionError{
				TaskID: taskID, ChunkIndex: -1, SupportIndex: si,
				Reason: fmt.Sprintf("invalid segment [%d,%d) for text of %d bytes", sup.StartIndex, sup.EndIndex, len(resp.Text)),
			})
			continue
		}

		c := Citation{StartIndex: sup.StartIndex, EndIndex: sup.EndIndex}
		for _, ci := range sup.ChunkIndices {
			if ci < 0 || ci >= len(resp.Chunks) {
				problems = append(problems, &ResolutionError{
					TaskID: taskID, ChunkIndex: ci, SupportIndex: si,
					Reason: "chunk index out of range",
				})
				continue
			}
			chunk := resp.Chunks[ci]
			short, ok := resolved[strings.TrimSpace(chunk.URL)]
			if !ok {
				problems = append(problems, &ResolutionError{
					TaskID: taskID, ChunkIndex: ci, SupportIndex: si,
					Reason: "missing url",
				})
				continue
			}
			c.Segments = append(c.Segments, Segment{
				Label:    label(chunk),
				ShortURL: short,
				Value:    strings.TrimSpace(chunk.URL),
			})
		}
		if len(c.Segments) > 0 {
			citations = append(citations, c)
		}
	}
	return citations, problems
}

// label derives a display label from the chunk title: the part before the
// first dot ("example.com" -> "example").
func label(c types.GroundingChunk) string {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return "source"
	}
	if parts := strings.Split(title, "."); len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return title
}

// InsertMarkers appends " [label](shortURL)" markers at the end of each cited
// range. Citations are applied from the highest offset down so earlier
// insertion points do not shift.
func InsertMarkers(text string, citations []Citation) string {
	ordered := make([]Citation, len(citations))
	copy(ordered, citations)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].EndIndex != ordered[j].EndIndex {
			return ordered[i].EndIndex > ordered[j].EndIndex
		}
		return ordered[i].StartIndex > ordered[j].StartIndex
	})

	out := text
	for _, c := range ordered {
		if c.EndIndex > len(out) {
			continue
		}
		var marker strings.Builder
		for _, s := range c.Segments {
			fmt.Fprintf(&marker, " [%s](%s)", s.Label, s.ShortURL)
		}
		out = out[:c.EndIndex] + marker.String() + out[c.EndIndex:]
	}
	return out
}

// Sources flattens citations into the sources of one task, one per short
// URL, in order of first citation. Segment holds the text of the first
// range that cites the source.
func Sources(text string, citations []Citation, taskID int) []types.Source {
	seen := make(map[string]bool)
	var sources []types.Source
	for _, c := range citations {
		for _, s := range c.Segments {
			if seen[s.ShortURL] {
				continue
			}
			seen[s.ShortURL] = true
			sources = append(sources, types.Source{
				Label:    s.Label,
				ShortURL: s.ShortURL,
				Value:    s.Value,
				Segment:  text[c.StartIndex:c.EndIndex],
				TaskID:   taskID,
			})
		}
	}
	return sources
}

// Substitute replaces every short URL token in answer with its resolved URL
// and returns the sources that were cited, deduplicated by short URL and in
// gathering order. Tokens with no matching source are left untouched.
func Substitute(answer string, gathered []types.Source) (string, []types.Source) {
	byShort := make(map[string]types.Source, len(gathered))
	for _, s := range gathered {
		if _, ok := byShort[s.ShortURL]; !ok {
			byShort[s.ShortURL] = s
		}
	}

	cited := make(map[string]bool)
	out := shortURLRe.ReplaceAllStringFunc(answer, func(tok string) string {
		s, ok := byShort[tok]
		if !ok {
			return tok
		}
		cited[tok] = true
		return s.Value
	})

	var used []types.Source
	for _, s := range gathered {
		if cited[s.ShortURL] {
			used = append(used, s)
			delete(cited, s.ShortURL)
		}
	}
	return out, used
}
