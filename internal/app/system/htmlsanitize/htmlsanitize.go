// Package htmlsanitize cleans user supplied text before it is stored.
//
// Group names are plain text: all markup is removed. Group descriptions
// may carry a small set of formatting elements.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richOnce sync.Once
	rich     *bluemonday.Policy

	strictOnce sync.Once
	strict     *bluemonday.Policy
)

func richPolicy() *bluemonday.Policy {
	richOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowStandardURLs()
		p.AllowElements("p", "br", "hr", "b", "strong", "i", "em", "u", "s",
			"sub", "sup", "mark", "blockquote", "pre", "code",
			"h1", "h2", "h3", "h4", "h5", "h6")
		p.AllowLists()
		p.AllowAttrs("href").OnElements("a")
		p.RequireNoFollowOnLinks(true)
		p.AllowImages()
		rich = p
	})
	return rich
}

func strictPolicy() *bluemonday.Policy {
	strictOnce.Do(func() {
		strict = bluemonday.StrictPolicy()
	})
	return strict
}

// Sanitize keeps the formatting elements allowed in descriptions and drops
// everything else, including scripts, event handlers and javascript: URLs.
func Sanitize(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(richPolicy().Sanitize(input))
}

// StripTags removes all markup and returns the remaining text unescaped.
func StripTags(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strictPolicy().Sanitize(input)))
}

// IsPlainText reports whether input looks free of markup.
func IsPlainText(input string) bool {
	return !(strings.Contains(input, "<") && strings.Contains(input, ">"))
}
