package render

import "strings"

// Markdown renders markdown content for terminal display.
// Uses a pooled renderer for thread safety.
func Markdown(content string, opts Options) (string, error) {
	renderer, err := globalPool.get(opts)
	if err != nil {
		return "", err
	}
	defer globalPool.put(opts, renderer)

	return renderer.Render(content)
}

// MarkdownWithWidth renders with default options at the given width.
func MarkdownWithWidth(content string, width int) (string, error) {
	return Markdown(content, DefaultOptions().WithWidth(width))
}

// Reply formats reply text for display. With markdown off the text is
// returned unchanged. Rendering failures fall back to the verbatim text.
func Reply(text string, markdown bool, opts Options) string {
	if !markdown {
		return text
	}
	rendered, err := Markdown(text, opts)
	if err != nil {
		return text
	}
	return strings.Trim(rendered, "\n")
}
