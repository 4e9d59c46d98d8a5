package core

// EmptyParagraph is what the rich-text editor emits for a cleared document.
const EmptyParagraph = "<p></p>"

// NormalizeChapterContent rewrites an exactly-empty paragraph to a line break.
// Anything else, including whitespace variants, is returned untouched.
func NormalizeChapterContent(content string) string {
	if content == EmptyParagraph {
		return "<br>"
	}
	return content
}
