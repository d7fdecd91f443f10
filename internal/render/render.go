// Package render substitutes named placeholders in a user-supplied message
// template with post metadata. Rendering never fails: absent data degrades
// to an empty substitution and unknown placeholders pass through untouched.
package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/postgram/postgram/internal/config"
	"github.com/postgram/postgram/internal/feed"
)

// Ellipsis is appended to an excerpt that was cut at the word limit.
const Ellipsis = "..."

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Render produces the message text for one post. Recognized placeholders:
// {title}, {excerpt}, {link}, {categories}, {tags}, {social_links}.
func Render(template string, ev feed.PostPublishedEvent, cfg *config.Config) string {
	r := strings.NewReplacer(
		"{title}", ev.Title,
		"{excerpt}", Excerpt(ev, cfg.MaxExcerptWords),
		"{link}", ev.Permalink,
		"{categories}", categories(ev, cfg),
		"{tags}", tags(ev, cfg),
		"{social_links}", SocialLinks(cfg.SocialLinks),
	)
	return r.Replace(template)
}

// Excerpt returns the post excerpt, derived from the body when the event
// carries none, word-truncated to maxWords with a trailing ellipsis.
func Excerpt(ev feed.PostPublishedEvent, maxWords int) string {
	text := ev.Excerpt
	if text == "" {
		text = StripTags(ev.Content)
	}
	return truncateWords(text, maxWords)
}

// StripTags removes HTML markup and decodes entities, collapsing the
// surrounding whitespace so word boundaries survive tag removal.
func StripTags(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// truncateWords cuts text at maxWords words, appending Ellipsis only when
// something was actually cut.
func truncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if maxWords <= 0 || len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + Ellipsis
}

func categories(ev feed.PostPublishedEvent, cfg *config.Config) string {
	if !cfg.IncludeCategories {
		return ""
	}
	return strings.Join(ev.Categories, ", ")
}

// tags renders each tag as a hashtag with internal spaces replaced by
// underscores so Telegram treats the whole tag as one entity.
func tags(ev feed.PostPublishedEvent, cfg *config.Config) string {
	if !cfg.IncludeTags {
		return ""
	}
	out := make([]string, 0, len(ev.Tags))
	for _, t := range ev.Tags {
		if t == "" {
			continue
		}
		out = append(out, "#"+strings.ReplaceAll(t, " ", "_"))
	}
	return strings.Join(out, ", ")
}

// SocialLinks renders the configured links as HTML anchors labeled with the
// capitalized platform name, joined by " • ". Incomplete entries are
// skipped silently.
func SocialLinks(links []config.SocialLink) string {
	var out []string
	for _, l := range links {
		if l.Platform == "" || l.URL == "" {
			continue
		}
		out = append(out, fmt.Sprintf(`<a href="%s">%s</a>`, l.URL, capitalize(l.Platform)))
	}
	return strings.Join(out, " • ")
}

func capitalize(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
