// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metadata flattens a structured-document tree into a
// DocumentMetadata record. Extraction never fails: every field degrades to
// an empty value or a placeholder, and each lookup is a declarative chain
// of fallback paths tried in priority order.
package metadata

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/itisaevalex/citation-verifier-sub001/internal/grobid"
	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

// PlaceholderTitle is used when no title can be extracted.
const PlaceholderTitle = "Untitled Document"

// fieldPath is one lookup location for a scalar field.
type fieldPath struct {
	name string
	get  func(doc *grobid.TEIDocument) string
}

// Resolution records the outcome of resolving one field: the value found
// (if any) and the paths tried, so callers can distinguish "field absent"
// from "never looked" without reading logs.
type Resolution struct {
	Value string
	Found bool
	Tried []string
}

// resolve walks the chain and stops at the first non-empty value.
func resolve(doc *grobid.TEIDocument, paths []fieldPath) Resolution {
	var res Resolution
	for _, p := range paths {
		res.Tried = append(res.Tried, p.name)
		if v := strings.TrimSpace(p.get(doc)); v != "" {
			res.Value = v
			res.Found = true
			return res
		}
	}
	return res
}

var titlePaths = []fieldPath{
	{"fileDesc/titleStmt/title[type=main]", func(doc *grobid.TEIDocument) string {
		for _, t := range doc.Header.FileDesc.TitleStmt.Titles {
			if t.Type == "main" {
				return t.Value
			}
		}
		return ""
	}},
	{"fileDesc/titleStmt/title", func(doc *grobid.TEIDocument) string {
		for _, t := range doc.Header.FileDesc.TitleStmt.Titles {
			if v := strings.TrimSpace(t.Value); v != "" {
				return v
			}
		}
		return ""
	}},
	{"sourceDesc/biblStruct/analytic/title", func(doc *grobid.TEIDocument) string {
		if b := doc.Header.FileDesc.SourceDesc.BiblStruct; b != nil && b.Analytic != nil {
			for _, t := range b.Analytic.Titles {
				if v := strings.TrimSpace(t.Value); v != "" {
					return v
				}
			}
		}
		return ""
	}},
}

var doiPaths = []fieldPath{
	{"sourceDesc/biblStruct/analytic/idno[type=DOI]", func(doc *grobid.TEIDocument) string {
		if b := doc.Header.FileDesc.SourceDesc.BiblStruct; b != nil && b.Analytic != nil {
			return idnoOfType(b.Analytic.Idnos, "DOI")
		}
		return ""
	}},
	{"sourceDesc/biblStruct/monogr/idno[type=DOI]", func(doc *grobid.TEIDocument) string {
		if b := doc.Header.FileDesc.SourceDesc.BiblStruct; b != nil && b.Monogr != nil {
			return idnoOfType(b.Monogr.Idnos, "DOI")
		}
		return ""
	}},
}

var yearRe = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)

var yearPaths = []fieldPath{
	{"publicationStmt/date@when", func(doc *grobid.TEIDocument) string {
		if w := doc.Header.FileDesc.PublicationStmt.Date.When; len(w) >= 4 {
			return w[:4]
		}
		return ""
	}},
	{"sourceDesc/biblStruct/monogr/imprint/date@when", func(doc *grobid.TEIDocument) string {
		if b := doc.Header.FileDesc.SourceDesc.BiblStruct; b != nil && b.Monogr != nil {
			for _, d := range b.Monogr.Imprint.Dates {
				if len(d.When) >= 4 {
					return d.When[:4]
				}
			}
		}
		return ""
	}},
	{"publicationStmt/date", func(doc *grobid.TEIDocument) string {
		if m := yearRe.FindString(doc.Header.FileDesc.PublicationStmt.Date.Value); m != "" {
			return m
		}
		return ""
	}},
}

var journalPaths = []fieldPath{
	{"sourceDesc/biblStruct/monogr/title[level=j]", func(doc *grobid.TEIDocument) string {
		if b := doc.Header.FileDesc.SourceDesc.BiblStruct; b != nil && b.Monogr != nil {
			for _, t := range b.Monogr.Titles {
				if t.Level == "j" {
					return t.Value
				}
			}
		}
		return ""
	}},
	{"sourceDesc/biblStruct/monogr/title", func(doc *grobid.TEIDocument) string {
		if b := doc.Header.FileDesc.SourceDesc.BiblStruct; b != nil && b.Monogr != nil {
			for _, t := range b.Monogr.Titles {
				if v := strings.TrimSpace(t.Value); v != "" {
					return v
				}
			}
		}
		return ""
	}},
}

// idnoOfType returns the first identifier matching the type, case-insensitively.
func idnoOfType(idnos []grobid.Idno, typ string) string {
	for _, id := range idnos {
		if strings.EqualFold(id.Type, typ) {
			return id.Value
		}
	}
	return ""
}

// ExtractTitle resolves the document title, degrading to the placeholder.
func ExtractTitle(doc *grobid.TEIDocument) string {
	res := resolve(doc, titlePaths)
	if !res.Found {
		slog.Debug("title missing, using placeholder", "tried", res.Tried)
		return PlaceholderTitle
	}
	return res.Value
}

// ExtractAuthors collects document authors from the header, preferring the
// analytic author list. Authors with no extractable name are dropped.
func ExtractAuthors(doc *grobid.TEIDocument) []types.Author {
	b := doc.Header.FileDesc.SourceDesc.BiblStruct
	if b == nil {
		return nil
	}
	if b.Analytic != nil {
		if authors := grobid.ConvertAuthors(b.Analytic.Authors); len(authors) > 0 {
			return authors
		}
	}
	if b.Monogr != nil {
		return grobid.ConvertAuthors(b.Monogr.Authors)
	}
	return nil
}

// Extract flattens the structured-document tree into a best-effort
// DocumentMetadata. It is a pure transform with diagnostic logging only.
func Extract(doc *grobid.TEIDocument) types.DocumentMetadata {
	md := types.DocumentMetadata{
		Title:   ExtractTitle(doc),
		Authors: ExtractAuthors(doc),
		DOI:     resolve(doc, doiPaths).Value,
		Year:    resolve(doc, yearPaths).Value,
		Journal: resolve(doc, journalPaths).Value,
	}

	blocks := doc.Blocks()
	texts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		texts = append(texts, b.Text)
	}
	md.FullText = strings.Join(texts, "\n\n")

	slog.Debug("metadata extracted",
		"title", md.Title, "authors", len(md.Authors), "doi", md.DOI != "")
	return md
}
