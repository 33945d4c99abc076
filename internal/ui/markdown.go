package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown pretty-prints markdown to stderr, falling back to the raw
// text when the renderer is unavailable.
func RenderMarkdown(md string) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, md)
		return
	}

	out, err := renderer.Render(md)
	if err != nil {
		fmt.Fprintln(os.Stderr, md)
		return
	}

	fmt.Fprint(os.Stderr, out)
}
