package sanitizer

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

var blockBreaks = strings.NewReplacer(
	"</p>", " ",
	"<br>", " ",
	"<br/>", " ",
	"<br />", " ",
	"</div>", " ",
	"</li>", " ",
)

// PlainText strips all markup and collapses whitespace. Entities are decoded, so the
// result is meant for storage and indexing, not for direct HTML output.
func PlainText(s string) string {
	s = blockBreaks.Replace(s)
	s = strict.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// MultilineText strips markup but keeps line breaks, for descriptions and comments.
func MultilineText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, PlainText(line))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
