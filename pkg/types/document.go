// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// Author is one contributor to a document or a cited work. Structured name
// parts are preferred; RawName carries the unsplit form when the source
// markup has no structure.
type Author struct {
	// FirstName is the given name.
	FirstName string `json:"firstName,omitempty" yaml:"first_name,omitempty"`

	// MiddleName holds middle names or initials.
	MiddleName string `json:"middleName,omitempty" yaml:"middle_name,omitempty"`

	// LastName is the family name.
	LastName string `json:"lastName,omitempty" yaml:"last_name,omitempty"`

	// RawName is the unstructured name string when no parts could be split.
	RawName string `json:"rawName,omitempty" yaml:"raw_name,omitempty"`
}

// Empty reports whether the author carries no name at all. Empty authors
// are dropped during extraction.
func (a Author) Empty() bool {
	return a.FirstName == "" && a.MiddleName == "" && a.LastName == "" && a.RawName == ""
}

// DisplayName returns a printable form of the author name.
func (a Author) DisplayName() string {
	if a.RawName != "" {
		return a.RawName
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{a.FirstName, a.MiddleName, a.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// DocumentMetadata is the flat, best-effort view of one structured document.
// Every field degrades to its zero value rather than failing extraction.
type DocumentMetadata struct {
	// Title is the document title, or "Untitled Document" when absent.
	Title string `json:"title" yaml:"title"`

	// Authors lists the document authors in source order.
	Authors []Author `json:"authors" yaml:"authors"`

	// DOI is the Digital Object Identifier, if one was found.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Year is the publication year as it appeared in the source.
	Year string `json:"year,omitempty" yaml:"year,omitempty"`

	// Journal is the venue (journal, conference, or publisher).
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// FullText is the body text, paragraph blocks joined in document order.
	FullText string `json:"fullText" yaml:"full_text"`
}

// DocumentRecord is the stored form of a processed document. One record is
// persisted per document as a self-describing JSON unit; the document store
// owns records exclusively once written.
type DocumentRecord struct {
	// ID is the stable identifier derived from the title (or source filename).
	ID string `json:"id"`

	// Title is the extracted title.
	Title string `json:"title"`

	// Authors lists the document authors.
	Authors []Author `json:"authors"`

	// Content is the full body text.
	Content string `json:"content"`

	// FilePath is where this unit lives on disk.
	FilePath string `json:"filePath"`

	// SourcePDF is the path of the input the document was extracted from,
	// used to detect already-processed inputs.
	SourcePDF string `json:"sourcePdf"`

	// DOI, Year, and Journal carry the remaining metadata fields.
	DOI     string `json:"doi,omitempty"`
	Year    string `json:"year,omitempty"`
	Journal string `json:"journal,omitempty"`
}

// TextBlock is one paragraph-level block of body text from the structured
// document, in document order.
type TextBlock struct {
	// Text is the block's plain text.
	Text string `json:"text"`

	// Page is the 1-based page the block starts on (0 if unknown).
	Page int `json:"page"`

	// Markers lists citation markers the extraction service already
	// anchored to bibliography entries within this block.
	Markers []InlineMarker `json:"markers,omitempty"`
}

// InlineMarker is a citation marker carried by the source markup, already
// resolved to a bibliography entry.
type InlineMarker struct {
	// Start and End are byte offsets of the marker text within the block.
	Start int `json:"start"`
	End   int `json:"end"`

	// TargetID is the bibliography id the marker points at (e.g. "b12"),
	// without the leading '#'. Empty when the source left it unresolved.
	TargetID string `json:"targetId,omitempty"`
}
