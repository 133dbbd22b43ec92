package media

import (
	"regexp"
	"strings"
)

const maxFilenameTags = 5

var tokenSplit = regexp.MustCompile(`[_\-\s.]+`)

// Words that cameras and phones stamp into filenames; they carry no
// descriptive value as tags.
var stopwords = map[string]bool{
	"img": true, "dsc": true, "pic": true, "photo": true,
	"video": true, "mov": true, "vid": true, "image": true,
	"file": true,
}

// ExtractTags derives up to five candidate tags from an original
// filename: the extension is stripped, the rest is split on runs of
// underscores, dashes, dots and whitespace, and short, numeric or
// stopword tokens are dropped. Token order is preserved. Best effort
// only; duplicate names across uploads resolve to the same tag row.
func ExtractTags(filename string) []string {
	name := filename
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}

	var tags []string
	for _, word := range tokenSplit.Split(strings.ToLower(name), -1) {
		word = strings.TrimSpace(word)
		if len(word) <= 2 || isDigits(word) || stopwords[word] {
			continue
		}
		tags = append(tags, word)
		if len(tags) == maxFilenameTags {
			break
		}
	}
	return tags
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
