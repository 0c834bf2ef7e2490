// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citation

import (
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

// contextWindow is the number of bytes captured on each side of a marker
// for its surrounding text, trimmed to word boundaries.
const contextWindow = 100

// blockSeparator joins blocks when computing document-wide offsets. It
// matches how full text is assembled from blocks, so positions index into
// the same string.
const blockSeparator = "\n\n"

// Linker resolves citation markers against one document's bibliography.
type Linker struct {
	byID      map[string]types.Reference
	ordered   []types.Reference
	bySurname map[string][]types.Reference

	// zeroBased is set when the bibliography ids are exactly b0..b(n-1),
	// the GROBID numbering. Papers cite one-based, so marker [N] then
	// means entry b(N-1).
	zeroBased bool
}

// NewLinker builds a linker over the bibliography id space.
func NewLinker(refs []types.Reference) *Linker {
	l := &Linker{
		byID:      make(map[string]types.Reference, len(refs)),
		ordered:   refs,
		bySurname: make(map[string][]types.Reference),
		zeroBased: len(refs) > 0,
	}
	for i, r := range refs {
		l.byID[r.ID] = r
		if r.ID != "b"+strconv.Itoa(i) {
			l.zeroBased = false
		}
		if len(r.Authors) > 0 {
			key := surnameKey(r.Authors[0])
			if key != "" {
				l.bySurname[key] = append(l.bySurname[key], r)
			}
		}
	}
	return l
}

// surnameKey normalizes an author's family name for author-year matching.
func surnameKey(a types.Author) string {
	name := a.LastName
	if name == "" {
		// Raw names: last token approximates the surname.
		fields := strings.Fields(a.RawName)
		if len(fields) > 0 {
			name = fields[len(fields)-1]
		}
	}
	return strings.ToLower(name)
}

// Link scans blocks for citation markers and resolves each to bibliography
// ids, producing contexts in document order. Markers the extraction
// service already anchored take precedence over pattern scanning on the
// same span; markers that resolve to nothing are dropped with a
// diagnostic. Output is deterministic for identical input.
func (l *Linker) Link(blocks []types.TextBlock) []types.CitationContext {
	var contexts []types.CitationContext
	offset := 0

	for _, block := range blocks {
		contexts = append(contexts, l.linkBlock(block, offset)...)
		offset += len(block.Text) + len(blockSeparator)
	}

	return contexts
}

// span is a resolved marker: its location plus the ids it names.
type span struct {
	start, end int
	text       string
	ids        []string
}

// linkBlock resolves one block's markers.
func (l *Linker) linkBlock(block types.TextBlock, baseOffset int) []types.CitationContext {
	var spans []span

	// Anchored markers first.
	for _, m := range block.Markers {
		if m.Start < 0 || m.End > len(block.Text) || m.Start >= m.End {
			continue
		}
		text := block.Text[m.Start:m.End]
		ids := l.resolveAnchored(m, text)
		if len(ids) == 0 {
			slog.Debug("dropping unresolvable anchored marker",
				"marker", text, "target", m.TargetID)
			continue
		}
		spans = append(spans, span{start: m.Start, end: m.End, text: text, ids: ids})
	}

	// Pattern-scanned markers cover whatever the anchors missed.
	for _, m := range ScanMarkers(block.Text) {
		if overlapsAny(spans, m.Start, m.End) {
			continue
		}
		ids := l.resolveScanned(m)
		if len(ids) == 0 {
			slog.Debug("dropping unresolvable citation marker", "marker", m.Text)
			continue
		}
		spans = append(spans, span{start: m.Start, end: m.End, text: m.Text, ids: ids})
	}

	sortSpans(spans)

	contexts := make([]types.CitationContext, 0, len(spans))
	for _, s := range spans {
		contexts = append(contexts, types.CitationContext{
			Text:            sentenceAround(block.Text, s.start, s.end),
			ReferenceIDs:    s.ids,
			Position:        types.TextPosition{Page: block.Page, Offset: baseOffset + s.start},
			SurroundingText: window(block.Text, s.start, s.end),
		})
	}
	return contexts
}

// resolveAnchored resolves a service-anchored marker: the explicit target
// when it names a known entry, otherwise pattern resolution of the surface
// text.
func (l *Linker) resolveAnchored(m types.InlineMarker, text string) []string {
	if m.TargetID != "" {
		if _, ok := l.byID[m.TargetID]; ok {
			return []string{m.TargetID}
		}
		return nil
	}
	for _, scanned := range ScanMarkers(text) {
		if ids := l.resolveScanned(scanned); len(ids) > 0 {
			return ids
		}
	}
	return nil
}

// resolveScanned maps a scanned marker to bibliography ids. A marker
// naming several entries resolves to all of them; entries that cannot be
// resolved individually are dropped from the list.
func (l *Linker) resolveScanned(m Marker) []string {
	switch m.Kind {
	case KindNumeric:
		var ids []string
		for _, n := range m.Numbers {
			if id, ok := l.resolveNumber(n); ok {
				ids = append(ids, id)
			}
		}
		return ids
	case KindAuthorYear:
		for _, ref := range l.bySurname[strings.ToLower(m.Surname)] {
			if ref.Year == "" || ref.Year == m.Year {
				return []string{ref.ID}
			}
		}
	}
	return nil
}

// resolveNumber maps marker number N to an entry id. Against a dense
// zero-based bibliography (b0..b(n-1), the GROBID numbering) [N] means
// b(N-1), since papers cite one-based. Otherwise the exact id is tried
// first, then the zero-based shift, then positional order.
func (l *Linker) resolveNumber(n int) (string, bool) {
	if l.zeroBased {
		if n >= 1 && n <= len(l.ordered) {
			return l.ordered[n-1].ID, true
		}
		return "", false
	}
	if id := "b" + strconv.Itoa(n); l.has(id) {
		return id, true
	}
	if n >= 1 {
		if id := "b" + strconv.Itoa(n-1); l.has(id) {
			return id, true
		}
		if n <= len(l.ordered) {
			return l.ordered[n-1].ID, true
		}
	}
	return "", false
}

func (l *Linker) has(id string) bool {
	_, ok := l.byID[id]
	return ok
}

// overlapsAny reports whether [start,end) intersects an existing span.
func overlapsAny(spans []span, start, end int) bool {
	for _, s := range spans {
		if start < s.end && end > s.start {
			return true
		}
	}
	return false
}

func sortSpans(spans []span) {
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].start < spans[j-1].start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
}

// window returns a symmetric snippet around the marker, trimmed to word
// boundaries. Cuts never split a multi-byte rune.
func window(text string, start, end int) string {
	s := start - contextWindow
	if s < 0 {
		s = 0
	}
	for s < len(text) && !utf8.RuneStart(text[s]) {
		s++
	}
	e := end + contextWindow
	if e > len(text) {
		e = len(text)
	}
	for e > s && e < len(text) && !utf8.RuneStart(text[e]) {
		e--
	}
	snippet := text[s:e]
	if s > 0 {
		if i := strings.IndexByte(snippet, ' '); i >= 0 && i < contextWindow {
			snippet = snippet[i+1:]
		}
	}
	if e < len(text) {
		if i := strings.LastIndexByte(snippet, ' '); i >= 0 && i > len(snippet)-contextWindow {
			snippet = snippet[:i]
		}
	}
	return strings.TrimSpace(snippet)
}

// sentenceAround returns the sentence containing the marker span, bounded
// by sentence-ending punctuation followed by a space.
func sentenceAround(text string, start, end int) string {
	s := start
	for s > 0 {
		if isSentenceEnd(text, s-1) {
			break
		}
		s--
	}
	e := end
	for e < len(text) {
		if isSentenceEnd(text, e) {
			e++
			break
		}
		e++
	}
	return strings.TrimSpace(text[s:e])
}

// isSentenceEnd reports whether position i ends a sentence: terminal
// punctuation followed by a space or end of text.
func isSentenceEnd(text string, i int) bool {
	c := text[i]
	if c != '.' && c != '!' && c != '?' {
		return false
	}
	return i+1 >= len(text) || text[i+1] == ' ' || text[i+1] == '\n'
}
