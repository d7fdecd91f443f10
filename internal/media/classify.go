package media

import "strings"

// Format classifies a featured image URL by its extension.
type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
	FormatWebP
	FormatSVG
	FormatICO
)

// String returns the lowercase format name.
func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	case FormatSVG:
		return "svg"
	case FormatICO:
		return "ico"
	default:
		return "unknown"
	}
}

// Compatible reports whether the format can be sent to Telegram as-is.
// Unknown URLs are treated as compatible; the fetch step still validates
// the server-reported content type.
func (f Format) Compatible() bool {
	switch f {
	case FormatWebP, FormatSVG, FormatICO:
		return false
	default:
		return true
	}
}

// ClassifyFormat inspects the URL for a known image extension. The match is
// a substring check rather than a strict suffix: CDN URLs routinely carry
// size or cache suffixes after the extension.
func ClassifyFormat(rawURL string) Format {
	u := strings.ToLower(rawURL)
	switch {
	case strings.Contains(u, ".webp"):
		return FormatWebP
	case strings.Contains(u, ".svg"):
		return FormatSVG
	case strings.Contains(u, ".ico"):
		return FormatICO
	case strings.Contains(u, ".jpg"), strings.Contains(u, ".jpeg"):
		return FormatJPEG
	case strings.Contains(u, ".png"):
		return FormatPNG
	default:
		return FormatUnknown
	}
}
