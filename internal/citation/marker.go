// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citation locates inline citation markers in body text, resolves
// them to bibliography entries, and aggregates usage contexts per
// reference.
package citation

import (
	"regexp"
	"strconv"
	"strings"
)

// MarkerKind tags the citation-marker variant. New citation styles add a
// kind rather than branching through the linker.
type MarkerKind string

const (
	// KindNumeric covers bracketed numeric markers: [1], [3,4], [1-3].
	KindNumeric MarkerKind = "numeric"

	// KindAuthorYear covers author-year markers: (Smith, 2020),
	// [Brown et al., 2019].
	KindAuthorYear MarkerKind = "author-year"
)

// Marker is one citation-marker span found in a block of text.
type Marker struct {
	Kind  MarkerKind
	Text  string
	Start int
	End   int

	// Numbers holds the cited entry numbers for numeric markers, ranges
	// expanded, in order of appearance.
	Numbers []int

	// Surname and Year identify the cited work for author-year markers.
	Surname string
	Year    string
}

var (
	// numericMarkerRe matches bracketed number lists with optional
	// ranges: [1], [3,4], [1-3], [2; 5].
	numericMarkerRe = regexp.MustCompile(`\[(\d+(?:\s*[-–,;]\s*\d+)*)\]`)

	// authorYearMarkerRe matches author-year markers in brackets or
	// parentheses: (Smith, 2020), (Smith et al., 2020),
	// [Smith and Jones, 2019].
	authorYearMarkerRe = regexp.MustCompile(
		`[\[(]([A-Z][A-Za-z'-]+)(?:\s+et\s+al\.?|\s+(?:and|&)\s+[A-Z][A-Za-z'-]+)?,\s*((?:19|20)\d{2})[a-z]?[\])]`)

	numericSplitRe = regexp.MustCompile(`\s*[,;]\s*`)
)

// maxRangeSpan bounds expanded numeric ranges; anything wider is taken as
// a malformed marker rather than a citation of 500 works.
const maxRangeSpan = 50

// ScanMarkers finds all citation markers in text, ordered by position.
// Numeric and author-year markers never overlap; when they would (a
// bracketed author-year also looks bracket-delimited), the author-year
// reading wins because the numeric pattern cannot match letters.
func ScanMarkers(text string) []Marker {
	var markers []Marker

	for _, loc := range numericMarkerRe.FindAllStringSubmatchIndex(text, -1) {
		inner := text[loc[2]:loc[3]]
		nums := parseNumberList(inner)
		if len(nums) == 0 {
			continue
		}
		markers = append(markers, Marker{
			Kind:    KindNumeric,
			Text:    text[loc[0]:loc[1]],
			Start:   loc[0],
			End:     loc[1],
			Numbers: nums,
		})
	}

	for _, loc := range authorYearMarkerRe.FindAllStringSubmatchIndex(text, -1) {
		markers = append(markers, Marker{
			Kind:    KindAuthorYear,
			Text:    text[loc[0]:loc[1]],
			Start:   loc[0],
			End:     loc[1],
			Surname: text[loc[2]:loc[3]],
			Year:    text[loc[4]:loc[5]],
		})
	}

	sortMarkers(markers)
	return markers
}

// parseNumberList expands "3,4" and "1-3" into explicit entry numbers.
func parseNumberList(inner string) []int {
	var nums []int
	for _, seg := range numericSplitRe.Split(inner, -1) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if lo, hi, ok := splitRange(seg); ok {
			if hi-lo > maxRangeSpan {
				return nil
			}
			for n := lo; n <= hi; n++ {
				nums = append(nums, n)
			}
			continue
		}
		n, err := strconv.Atoi(seg)
		if err != nil {
			return nil
		}
		nums = append(nums, n)
	}
	return nums
}

// splitRange parses "1-3" (or en-dash) into its bounds.
func splitRange(seg string) (lo, hi int, ok bool) {
	var sep string
	switch {
	case strings.Contains(seg, "–"):
		sep = "–"
	case strings.Contains(seg, "-"):
		sep = "-"
	default:
		return 0, 0, false
	}
	parts := strings.SplitN(seg, sep, 2)
	lo, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	hi, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || hi < lo {
		return 0, 0, false
	}
	return lo, hi, true
}

// sortMarkers orders by start offset (insertion sort; marker counts per
// block are small).
func sortMarkers(markers []Marker) {
	for i := 1; i < len(markers); i++ {
		for j := i; j > 0 && markers[j].Start < markers[j-1].Start; j-- {
			markers[j], markers[j-1] = markers[j-1], markers[j]
		}
	}
}
