// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docstore

import (
	"path/filepath"
	"strings"
)

// maxIDLength caps derived document ids.
const maxIDLength = 80

// DeriveID builds a stable document id from the extracted title: lower-
// cased, punctuation stripped, whitespace collapsed to underscores, length
// capped. When no real title was extracted the sanitized source filename
// is used instead.
func DeriveID(title, sourcePath string) string {
	if title != "" && title != placeholderTitle {
		if id := slugify(title); id != "" {
			return id
		}
	}
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	if id := slugify(base); id != "" {
		return id
	}
	return "document"
}

// placeholderTitle mirrors the metadata extractor's missing-title value.
// A placeholder is not a real title, so the filename wins.
const placeholderTitle = "Untitled Document"

// slugify lower-cases, strips punctuation, and collapses whitespace to
// underscores, capping the result.
func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n', r == '-', r == '_':
			b.WriteByte(' ')
		}
	}
	id := strings.Join(strings.Fields(b.String()), "_")
	return capID(id, "")
}

// capID truncates base so that base+suffix fits maxIDLength, then appends
// the suffix. Collision counters are appended through here so the cap
// holds after suffixing too.
func capID(base, suffix string) string {
	limit := maxIDLength - len(suffix)
	if limit < 1 {
		limit = 1
	}
	if len(base) > limit {
		base = strings.TrimRight(base[:limit], "_")
	}
	return base + suffix
}
