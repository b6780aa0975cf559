package bandit

import "strings"

// ExtractHashtags parses hashtag tokens out of caption text. The text is
// tokenized on any character outside [A-Za-z0-9_#]; a token is a tag iff it
// starts with '#' and still has length > 1 after the '#' is stripped.
// Duplicates are dropped, first occurrence order is preserved.
func ExtractHashtags(caption string) []string {
	tokens := strings.FieldsFunc(caption, func(r rune) bool {
		return !isTagRune(r)
	})

	var tags []string
	seen := make(map[string]struct{})
	for _, token := range tokens {
		if !strings.HasPrefix(token, "#") {
			continue
		}
		tag := strings.TrimPrefix(token, "#")
		if len(tag) <= 1 {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

func isTagRune(r rune) bool {
	return (r >= 'A' && r <= 'Z') ||
		(r >= 'a' && r <= 'z') ||
		(r >= '0' && r <= '9') ||
		r == '_' || r == '#'
}
