package pipeline

// PreviewLength is the number of characters kept in a transcript preview.
const PreviewLength = 200

// Preview returns the first PreviewLength characters of text, with "..."
// appended only when something was cut.
func Preview(text string) string {
	r := []rune(text)
	if len(r) <= PreviewLength {
		return text
	}
	return string(r[:PreviewLength]) + "..."
}

// Length counts characters, not bytes.
func Length(text string) int {
	return len([]rune(text))
}
