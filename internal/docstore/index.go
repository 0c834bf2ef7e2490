// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docstore

import (
	"encoding/json"
	"sort"
	"strings"
)

// Reserved top-level index keys. Everything else at the top level is a
// flat id→path entry.
const (
	keyByDoi        = "byDoi"
	keyByTitleWords = "byTitleWords"
	keyByYear       = "byYear"
)

// minTitleWordLength filters short words out of the title-word index.
const minTitleWordLength = 4

// Index is the secondary-index structure over stored documents: a pure,
// rebuildable projection of the document units on disk. Its JSON form has
// the lookup maps under fixed keys plus the flat id→path map merged at
// the top level.
type Index struct {
	ByDoi        map[string]string
	ByTitleWords map[string][]string
	ByYear       map[string][]string
	IDs          map[string]string
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		ByDoi:        make(map[string]string),
		ByTitleWords: make(map[string][]string),
		ByYear:       make(map[string][]string),
		IDs:          make(map[string]string),
	}
}

// MarshalJSON merges the id→path map into the top level next to the fixed
// lookup keys. Map marshaling sorts keys, so output is deterministic and
// rebuilds on an unchanged document set are byte-identical.
func (ix *Index) MarshalJSON() ([]byte, error) {
	top := make(map[string]any, len(ix.IDs)+3)
	top[keyByDoi] = ix.ByDoi
	top[keyByTitleWords] = sortedLists(ix.ByTitleWords)
	top[keyByYear] = sortedLists(ix.ByYear)
	for id, path := range ix.IDs {
		top[id] = path
	}
	return json.Marshal(top)
}

// UnmarshalJSON splits the fixed keys back out; remaining top-level string
// values are id→path entries.
func (ix *Index) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*ix = *NewIndex()

	if v, ok := raw[keyByDoi]; ok {
		if err := json.Unmarshal(v, &ix.ByDoi); err != nil {
			return err
		}
	}
	if v, ok := raw[keyByTitleWords]; ok {
		if err := json.Unmarshal(v, &ix.ByTitleWords); err != nil {
			return err
		}
	}
	if v, ok := raw[keyByYear]; ok {
		if err := json.Unmarshal(v, &ix.ByYear); err != nil {
			return err
		}
	}

	for k, v := range raw {
		if k == keyByDoi || k == keyByTitleWords || k == keyByYear {
			continue
		}
		var path string
		if err := json.Unmarshal(v, &path); err != nil {
			// Unknown non-string key: not an id entry, skip it.
			continue
		}
		ix.IDs[k] = path
	}
	return nil
}

// Add indexes one document unit under every lookup key.
func (ix *Index) Add(id, path, doi, title, year string) {
	ix.IDs[id] = path

	if d := NormalizeDOI(doi); d != "" {
		ix.ByDoi[d] = path
	}
	for _, w := range TitleWords(title) {
		if !contains(ix.ByTitleWords[w], path) {
			ix.ByTitleWords[w] = append(ix.ByTitleWords[w], path)
		}
	}
	if year != "" {
		if !contains(ix.ByYear[year], path) {
			ix.ByYear[year] = append(ix.ByYear[year], path)
		}
	}
}

// Remove drops one document unit from every lookup key. Empty multi-value
// lists are deleted so a remove-then-rebuild produces an identical index.
func (ix *Index) Remove(id, path, doi, title, year string) {
	delete(ix.IDs, id)

	if d := NormalizeDOI(doi); d != "" && ix.ByDoi[d] == path {
		delete(ix.ByDoi, d)
	}
	for _, w := range TitleWords(title) {
		if list := removePath(ix.ByTitleWords[w], path); len(list) == 0 {
			delete(ix.ByTitleWords, w)
		} else {
			ix.ByTitleWords[w] = list
		}
	}
	if year != "" {
		if list := removePath(ix.ByYear[year], path); len(list) == 0 {
			delete(ix.ByYear, year)
		} else {
			ix.ByYear[year] = list
		}
	}
}

func removePath(list []string, path string) []string {
	out := list[:0]
	for _, v := range list {
		if v != path {
			out = append(out, v)
		}
	}
	return out
}

// NormalizeDOI trims, lower-cases, and strips resolver URL prefixes.
func NormalizeDOI(doi string) string {
	d := strings.ToLower(strings.TrimSpace(doi))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi:"} {
		d = strings.TrimPrefix(d, prefix)
	}
	return d
}

// TitleWords returns the indexable words of a title: longer than three
// characters, lower-cased, punctuation stripped, de-duplicated in order.
func TitleWords(title string) []string {
	seen := make(map[string]bool)
	var words []string
	for _, f := range strings.Fields(strings.ToLower(title)) {
		w := strings.Map(func(r rune) rune {
			if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, f)
		if len(w) < minTitleWordLength || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}

// sortedLists copies a multi-value map with each list sorted, for
// deterministic marshaling.
func sortedLists(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		paths := append([]string(nil), v...)
		sort.Strings(paths)
		out[k] = paths
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
