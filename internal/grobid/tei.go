// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package grobid is the boundary to the fulltext-extraction service. It
// uploads PDFs for processing and parses the TEI markup the service
// returns into a typed structured-document tree.
package grobid

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

// TEIDocument is the typed structured-document tree: header metadata,
// paragraph-level body blocks, and the bibliography.
type TEIDocument struct {
	XMLName xml.Name `xml:"TEI"`
	Header  Header   `xml:"teiHeader"`
	Text    Text     `xml:"text"`
}

// Header carries the document-level metadata section.
type Header struct {
	FileDesc FileDesc `xml:"fileDesc"`
}

// FileDesc groups title, publication, and source descriptions.
type FileDesc struct {
	TitleStmt       TitleStmt       `xml:"titleStmt"`
	PublicationStmt PublicationStmt `xml:"publicationStmt"`
	SourceDesc      SourceDesc      `xml:"sourceDesc"`
}

// TitleStmt holds the document titles.
type TitleStmt struct {
	Titles []Title `xml:"title"`
}

// Title is a titled element with its TEI level and type attributes.
type Title struct {
	Level string `xml:"level,attr"`
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// PublicationStmt holds the publication date.
type PublicationStmt struct {
	Date Date `xml:"date"`
}

// SourceDesc holds the bibliographic self-description of the document.
type SourceDesc struct {
	BiblStruct *BiblStruct `xml:"biblStruct"`
}

// BiblStruct is one structured bibliographic entry, used both for the
// document's self-description and for bibliography entries in the back
// matter (where the xml:id attribute carries the entry id, e.g. "b12").
type BiblStruct struct {
	ID       string    `xml:"id,attr"`
	Analytic *Analytic `xml:"analytic"`
	Monogr   *Monogr   `xml:"monogr"`
}

// Analytic describes the article-level part of a bibliographic entry.
type Analytic struct {
	Titles  []Title     `xml:"title"`
	Authors []TEIAuthor `xml:"author"`
	Idnos   []Idno      `xml:"idno"`
}

// Monogr describes the container (journal, proceedings, monograph).
type Monogr struct {
	Titles  []Title     `xml:"title"`
	Authors []TEIAuthor `xml:"author"`
	Idnos   []Idno      `xml:"idno"`
	Imprint Imprint     `xml:"imprint"`
}

// Imprint holds publication dates within a monogr.
type Imprint struct {
	Dates []Date `xml:"date"`
}

// Date is a date element; When carries the machine-readable form.
type Date struct {
	Type  string `xml:"type,attr"`
	When  string `xml:"when,attr"`
	Value string `xml:",chardata"`
}

// Idno is an identifier element, e.g. type="DOI".
type Idno struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// TEIAuthor wraps a persName.
type TEIAuthor struct {
	PersName *PersName `xml:"persName"`
}

// PersName is a personal name, structured or raw.
type PersName struct {
	Forenames []Forename `xml:"forename"`
	Surname   string     `xml:"surname"`
	Raw       string     `xml:",chardata"`
}

// Forename is a given or middle name, distinguished by the type attribute.
type Forename struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// Text holds the body and back matter.
type Text struct {
	Body Body `xml:"body"`
	Back Back `xml:"back"`
}

// Body is the sequence of sections.
type Body struct {
	Divs []Div `xml:"div"`
}

// Div is one section: a heading plus paragraphs.
type Div struct {
	Head       string      `xml:"head"`
	Paragraphs []Paragraph `xml:"p"`
}

// Back holds the back-matter sections, including the bibliography.
type Back struct {
	Divs []BackDiv `xml:"div"`
}

// BackDiv is a typed back-matter section; type="references" carries the
// bibliography.
type BackDiv struct {
	Type     string   `xml:"type,attr"`
	ListBibl ListBibl `xml:"listBibl"`
}

// ListBibl is the list of bibliography entries.
type ListBibl struct {
	Entries []BiblStruct `xml:"biblStruct"`
}

// Paragraph is one paragraph of body text with its anchored citation
// markers. Mixed content is flattened: marker offsets index into Text.
type Paragraph struct {
	// Text is the flattened paragraph text.
	Text string

	// Refs lists the bibliographic <ref> markers in order of appearance.
	Refs []ParagraphRef

	// LastPageBreak is the page number of the last <pb> milestone inside
	// this paragraph, or 0 when the paragraph contains none.
	LastPageBreak int
}

// ParagraphRef is one anchored citation marker within a paragraph.
type ParagraphRef struct {
	// Target is the bibliography id the marker points at, without the
	// leading '#'. Empty when the service left the marker unresolved.
	Target string

	// Text is the marker's surface form, e.g. "[3]".
	Text string

	// Start and End are byte offsets of Text within Paragraph.Text.
	Start, End int
}

// refElement mirrors a <ref> for decoding.
type refElement struct {
	Type   string `xml:"type,attr"`
	Target string `xml:"target,attr"`
	Value  string `xml:",chardata"`
}

// UnmarshalXML flattens a paragraph's mixed content. Bibliographic refs
// keep their byte offsets; other inline markup contributes its direct
// character data; formulas and figures contribute nothing.
func (p *Paragraph) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var sb strings.Builder

	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)

		case xml.StartElement:
			switch t.Name.Local {
			case "ref":
				var r refElement
				if err := d.DecodeElement(&r, &t); err != nil {
					return err
				}
				off := sb.Len()
				sb.WriteString(r.Value)
				if r.Type == "bibr" {
					p.Refs = append(p.Refs, ParagraphRef{
						Target: strings.TrimPrefix(r.Target, "#"),
						Text:   r.Value,
						Start:  off,
						End:    sb.Len(),
					})
				}
			case "pb":
				for _, attr := range t.Attr {
					if attr.Name.Local == "n" {
						if n, err := strconv.Atoi(attr.Value); err == nil {
							p.LastPageBreak = n
						}
					}
				}
				if err := d.Skip(); err != nil {
					return err
				}
			default:
				var inner struct {
					Value string `xml:",chardata"`
				}
				if err := d.DecodeElement(&inner, &t); err != nil {
					return err
				}
				sb.WriteString(inner.Value)
			}

		case xml.EndElement:
			if t.Name == start.Name {
				p.Text = sb.String()
				return nil
			}
		}
	}
}

// ParseTEI parses TEI markup into a structured-document tree.
func ParseTEI(data []byte) (*TEIDocument, error) {
	var doc TEIDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing TEI: %w", err)
	}
	return &doc, nil
}

// Blocks flattens the body into paragraph-level text blocks in document
// order, tracking page numbers across <pb> milestones.
func (doc *TEIDocument) Blocks() []types.TextBlock {
	var blocks []types.TextBlock
	page := 1

	for _, div := range doc.Text.Body.Divs {
		for _, para := range div.Paragraphs {
			text := strings.TrimSpace(para.Text)
			if text == "" {
				continue
			}

			// Offsets shift by the amount trimmed from the front.
			shift := strings.Index(para.Text, text)

			block := types.TextBlock{Text: text, Page: page}
			for _, ref := range para.Refs {
				s, e := ref.Start-shift, ref.End-shift
				if s < 0 || e > len(text) {
					continue
				}
				block.Markers = append(block.Markers, types.InlineMarker{
					Start:    s,
					End:      e,
					TargetID: ref.Target,
				})
			}
			blocks = append(blocks, block)

			if para.LastPageBreak > 0 {
				page = para.LastPageBreak
			}
		}
	}

	return blocks
}

// References converts the back-matter bibliography into Reference records,
// in listing order.
func (doc *TEIDocument) References() []types.Reference {
	var refs []types.Reference

	for _, div := range doc.Text.Back.Divs {
		for _, entry := range div.ListBibl.Entries {
			if entry.ID == "" {
				continue
			}
			refs = append(refs, referenceFromBibl(entry))
		}
	}

	return refs
}

// referenceFromBibl flattens one bibliography entry.
func referenceFromBibl(entry BiblStruct) types.Reference {
	ref := types.Reference{ID: entry.ID}

	if a := entry.Analytic; a != nil {
		ref.Title = firstTitle(a.Titles)
		ref.Authors = ConvertAuthors(a.Authors)
	}
	if m := entry.Monogr; m != nil {
		if ref.Title == "" {
			ref.Title = firstTitle(m.Titles)
		} else {
			ref.Journal = firstTitle(m.Titles)
		}
		if len(ref.Authors) == 0 {
			ref.Authors = ConvertAuthors(m.Authors)
		}
		ref.Year = yearFromImprint(m.Imprint)
	}

	return ref
}

// firstTitle returns the first non-empty title value.
func firstTitle(titles []Title) string {
	for _, t := range titles {
		if v := strings.TrimSpace(t.Value); v != "" {
			return v
		}
	}
	return ""
}

// yearFromImprint extracts a 4-digit year from the published date,
// preferring the machine-readable when attribute.
func yearFromImprint(imp Imprint) string {
	for _, d := range imp.Dates {
		if d.Type != "" && d.Type != "published" {
			continue
		}
		if len(d.When) >= 4 {
			return d.When[:4]
		}
		if v := strings.TrimSpace(d.Value); len(v) >= 4 {
			return v[:4]
		}
	}
	return ""
}

// ConvertAuthors converts persName elements to Author records. Authors
// with no extractable name are dropped.
func ConvertAuthors(authors []TEIAuthor) []types.Author {
	var out []types.Author
	for _, a := range authors {
		author := authorFromPersName(a.PersName)
		if author.Empty() {
			continue
		}
		out = append(out, author)
	}
	return out
}

// authorFromPersName prefers structured name parts, falling back to the
// raw character data when the markup carries no structure.
func authorFromPersName(pn *PersName) types.Author {
	if pn == nil {
		return types.Author{}
	}

	var a types.Author
	for _, f := range pn.Forenames {
		v := strings.TrimSpace(f.Value)
		if v == "" {
			continue
		}
		switch f.Type {
		case "middle":
			a.MiddleName = v
		default:
			if a.FirstName == "" {
				a.FirstName = v
			}
		}
	}
	a.LastName = strings.TrimSpace(pn.Surname)

	if a.Empty() {
		a.RawName = strings.Join(strings.Fields(pn.Raw), " ")
	}
	return a
}
