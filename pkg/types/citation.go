// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Reference is one bibliography entry, scoped to a single document's
// extraction.
type Reference struct {
	// ID is the bibliography-local identifier (e.g. "b12").
	ID string `json:"id" yaml:"id"`

	// Title is the cited work's title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the cited work's authors.
	Authors []Author `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Journal is the venue, if known.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// Year is the publication year, if known.
	Year string `json:"year,omitempty" yaml:"year,omitempty"`
}

// TextPosition locates a citation marker within the document. Offset is a
// byte offset from the start of the body text and is the ordering key for
// contexts.
type TextPosition struct {
	Page   int `json:"page"`
	Offset int `json:"offset"`
}

// CitationContext is one place in the body text where one or more
// references are cited. A marker naming several references ([3,4]) yields a
// single context listing all of them.
type CitationContext struct {
	// Text is the citing sentence or marker span.
	Text string `json:"text"`

	// ReferenceIDs lists the bibliography ids the marker resolves to.
	// Never empty: unresolvable markers are dropped before this point.
	ReferenceIDs []string `json:"referenceIds"`

	// Position orders contexts by appearance in the document.
	Position TextPosition `json:"position"`

	// SurroundingText is a symmetric window of text around the marker.
	SurroundingText string `json:"surroundingText"`
}

// ReferenceUsage aggregates every context in which one reference is cited,
// in document order. A context naming several references appears under each
// of them; usages are not disjoint partitions.
type ReferenceUsage struct {
	Reference     Reference         `json:"reference"`
	UsageContexts []CitationContext `json:"usageContexts"`
}
