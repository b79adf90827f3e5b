package transcript

import (
	"strings"
)

// DefaultLanguage is used whenever a caller passes no language.
const DefaultLanguage = "en"

// Canonicalize turns a raw video id or YouTube URL into the bare video id.
// Query and short-link forms are recognised; anything else is returned trimmed.
func Canonicalize(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", newError(InvalidInput, "", nil, "Video ID cannot be empty")
	}

	if strings.Contains(id, "youtube.com") || strings.Contains(id, "youtu.be") {
		if _, after, ok := strings.Cut(id, "v="); ok {
			id, _, _ = strings.Cut(after, "&")
		} else if _, after, ok := strings.Cut(id, "youtu.be/"); ok {
			id, _, _ = strings.Cut(after, "?")
		}
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return "", newError(InvalidInput, "", nil, "no video ID found in %q", strings.TrimSpace(raw))
	}
	return id, nil
}

// validID reports whether id only uses the characters YouTube ids are made of.
func validID(id string) bool {
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return id != ""
}

func normalizeLanguage(language string) string {
	language = strings.TrimSpace(language)
	if language == "" {
		return DefaultLanguage
	}
	return language
}
