package grobid

import (
	"testing"
)

const sampleTEI = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
 <teiHeader>
  <fileDesc>
   <titleStmt>
    <title level="a" type="main">Deep Learning for NLP</title>
   </titleStmt>
   <publicationStmt>
    <date type="published" when="2021-03-02">March 2021</date>
   </publicationStmt>
   <sourceDesc>
    <biblStruct>
     <analytic>
      <author><persName><forename type="first">Jane</forename><surname>Smith</surname></persName></author>
      <author><persName><forename type="first">Robert</forename><forename type="middle">Q</forename><surname>Jones</surname></persName></author>
      <idno type="DOI">10.1234/dl-nlp.2021</idno>
     </analytic>
     <monogr>
      <title level="j">Journal of Learning Systems</title>
      <imprint><date type="published" when="2021-03-02"/></imprint>
     </monogr>
    </biblStruct>
   </sourceDesc>
  </fileDesc>
 </teiHeader>
 <text>
  <body>
   <div>
    <head>Introduction</head>
    <p>Transformers changed the field <ref type="bibr" target="#b0">[1]</ref> almost overnight.</p>
    <p>Later work <ref type="bibr" target="#b1">[2]</ref> refined <ref type="bibr">[3]</ref> the approach.<pb n="2"/></p>
   </div>
   <div>
    <head>Methods</head>
    <p>We follow the original setup.</p>
   </div>
  </body>
  <back>
   <div type="references">
    <listBibl>
     <biblStruct xml:id="b0">
      <analytic>
       <title level="a">Attention Is All You Need</title>
       <author><persName><forename type="first">Ashish</forename><surname>Vaswani</surname></persName></author>
      </analytic>
      <monogr>
       <title level="m">Advances in Neural Information Processing Systems</title>
       <imprint><date type="published" when="2017"/></imprint>
      </monogr>
     </biblStruct>
     <biblStruct xml:id="b1">
      <monogr>
       <title level="m">Language Models are Few-Shot Learners</title>
       <author><persName>OpenAI Team</persName></author>
       <imprint><date type="published" when="2020-05-28"/></imprint>
      </monogr>
     </biblStruct>
    </listBibl>
   </div>
  </back>
 </text>
</TEI>`

func TestParseTEIHeader(t *testing.T) {
	doc, err := ParseTEI([]byte(sampleTEI))
	if err != nil {
		t.Fatalf("ParseTEI: %v", err)
	}

	titles := doc.Header.FileDesc.TitleStmt.Titles
	if len(titles) != 1 || titles[0].Value != "Deep Learning for NLP" {
		t.Errorf("titleStmt titles = %+v, want one main title", titles)
	}

	bibl := doc.Header.FileDesc.SourceDesc.BiblStruct
	if bibl == nil || bibl.Analytic == nil {
		t.Fatal("missing sourceDesc biblStruct analytic")
	}
	if got := len(bibl.Analytic.Authors); got != 2 {
		t.Fatalf("header authors = %d, want 2", got)
	}

	authors := ConvertAuthors(bibl.Analytic.Authors)
	if authors[0].FirstName != "Jane" || authors[0].LastName != "Smith" {
		t.Errorf("author[0] = %+v, want Jane Smith", authors[0])
	}
	if authors[1].MiddleName != "Q" {
		t.Errorf("author[1].MiddleName = %q, want Q", authors[1].MiddleName)
	}

	if bibl.Analytic.Idnos[0].Value != "10.1234/dl-nlp.2021" {
		t.Errorf("DOI = %q", bibl.Analytic.Idnos[0].Value)
	}
}

func TestBlocks(t *testing.T) {
	doc, err := ParseTEI([]byte(sampleTEI))
	if err != nil {
		t.Fatalf("ParseTEI: %v", err)
	}

	blocks := doc.Blocks()
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(blocks))
	}

	first := blocks[0]
	if first.Text != "Transformers changed the field [1] almost overnight." {
		t.Errorf("block[0].Text = %q", first.Text)
	}
	if len(first.Markers) != 1 {
		t.Fatalf("block[0] markers = %d, want 1", len(first.Markers))
	}
	m := first.Markers[0]
	if m.TargetID != "b0" {
		t.Errorf("marker target = %q, want b0", m.TargetID)
	}
	if first.Text[m.Start:m.End] != "[1]" {
		t.Errorf("marker span = %q, want [1]", first.Text[m.Start:m.End])
	}

	// Second paragraph: one resolved marker, one unresolved.
	second := blocks[1]
	if len(second.Markers) != 2 {
		t.Fatalf("block[1] markers = %d, want 2", len(second.Markers))
	}
	if second.Markers[0].TargetID != "b1" || second.Markers[1].TargetID != "" {
		t.Errorf("block[1] marker targets = %q, %q", second.Markers[0].TargetID, second.Markers[1].TargetID)
	}

	// The page break inside the second paragraph moves later blocks to page 2.
	if blocks[0].Page != 1 || blocks[1].Page != 1 || blocks[2].Page != 2 {
		t.Errorf("pages = %d, %d, %d, want 1, 1, 2", blocks[0].Page, blocks[1].Page, blocks[2].Page)
	}
}

func TestReferences(t *testing.T) {
	doc, err := ParseTEI([]byte(sampleTEI))
	if err != nil {
		t.Fatalf("ParseTEI: %v", err)
	}

	refs := doc.References()
	if len(refs) != 2 {
		t.Fatalf("got %d references, want 2", len(refs))
	}

	if refs[0].ID != "b0" || refs[0].Title != "Attention Is All You Need" {
		t.Errorf("refs[0] = %+v", refs[0])
	}
	if refs[0].Journal != "Advances in Neural Information Processing Systems" {
		t.Errorf("refs[0].Journal = %q", refs[0].Journal)
	}
	if refs[0].Year != "2017" {
		t.Errorf("refs[0].Year = %q, want 2017", refs[0].Year)
	}

	// b1 has no analytic; monogr title and raw author name apply.
	if refs[1].ID != "b1" || refs[1].Title != "Language Models are Few-Shot Learners" {
		t.Errorf("refs[1] = %+v", refs[1])
	}
	if len(refs[1].Authors) != 1 || refs[1].Authors[0].RawName != "OpenAI Team" {
		t.Errorf("refs[1].Authors = %+v, want raw name", refs[1].Authors)
	}
}

func TestParseTEIMalformed(t *testing.T) {
	if _, err := ParseTEI([]byte("<TEI><unclosed>")); err == nil {
		t.Error("expected error for malformed TEI")
	}
}

func TestAuthorFromPersNameDropsEmpty(t *testing.T) {
	authors := ConvertAuthors([]TEIAuthor{
		{PersName: &PersName{Surname: "Smith"}},
		{PersName: &PersName{}},
		{PersName: nil},
	})
	if len(authors) != 1 {
		t.Fatalf("got %d authors, want 1 (empty names dropped)", len(authors))
	}
	if authors[0].LastName != "Smith" {
		t.Errorf("kept author = %+v", authors[0])
	}
}
