// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for postgram.
package config

import "time"

// DefaultTemplate is the message template applied when none is configured.
// Placeholders are substituted by the renderer; see internal/render.
const DefaultTemplate = `<b>{title}</b>

{excerpt}

{categories}
{tags}

🔗 <a href="{link}">Read Article</a>

{social_links}`

// SocialLink is one entry of the social links footer. Entries with an empty
// platform or URL are skipped by the renderer.
type SocialLink struct {
	Platform string `yaml:"platform"`
	URL      string `yaml:"url"`
}

// Config is the top-level configuration structure. It is loaded once and
// treated as an immutable snapshot by every pipeline invocation.
type Config struct {
	// BotToken is the Telegram bot token (<bot_id>:<hash>).
	BotToken string `yaml:"bot_token"`

	// ChannelID is the target channel: "@name" or a numeric chat ID.
	ChannelID string `yaml:"channel_id"`

	// UseRelay routes sends through the relay endpoint instead of calling
	// the Telegram Bot API directly.
	UseRelay bool `yaml:"use_relay"`

	// RelayURL is the intermediary endpoint used when UseRelay is set.
	RelayURL string `yaml:"relay_url"`

	// EnableAutoSend controls whether publish events received over the
	// webhook are delivered. Disabled events are acknowledged and dropped.
	EnableAutoSend bool `yaml:"enable_auto_send"`

	// MessageTemplate is the caption/body template. Empty selects
	// DefaultTemplate.
	MessageTemplate string `yaml:"message_template"`

	// MaxExcerptWords bounds the excerpt derived from the post body.
	MaxExcerptWords int `yaml:"max_excerpt_words"`

	IncludeFeaturedImage bool `yaml:"include_featured_image"`
	IncludeCategories    bool `yaml:"include_categories"`
	IncludeTags          bool `yaml:"include_tags"`

	// ConvertUnsupportedImages enables WebP→JPEG conversion for featured
	// images Telegram cannot ingest.
	ConvertUnsupportedImages bool `yaml:"convert_unsupported_images"`

	// SocialLinks is rendered by the {social_links} placeholder, in order.
	SocialLinks []SocialLink `yaml:"social_links"`

	// APIURL overrides the Telegram Bot API host. Used in tests.
	APIURL string `yaml:"api_url"`

	// InsecureSkipVerify disables TLS certificate validation on outbound
	// requests. Some shared-hosting environments ship certificate stores
	// too stale to validate api.telegram.org; enabling this trades
	// transport authentication for reachability. Off unless explicitly
	// requested.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// Listen is the bind address of the webhook/metrics HTTP server.
	Listen string `yaml:"listen"`

	// StatePath is the SQLite database holding publish records.
	StatePath string `yaml:"state_path"`

	// CacheDir holds converted image artifacts.
	CacheDir string `yaml:"cache_dir"`

	// CacheBaseURL, when set, maps CacheDir to a public URL so converted
	// artifacts can be probed for remote accessibility before use.
	CacheBaseURL string `yaml:"cache_base_url"`

	// CacheMaxAge is how long converted artifacts are kept before the
	// janitor removes them.
	CacheMaxAge time.Duration `yaml:"cache_max_age"`

	// CacheSweepSchedule is the cron expression for the cache janitor.
	CacheSweepSchedule string `yaml:"cache_sweep_schedule"`
}

// Default returns a Config populated with defaults. Load unmarshals on top
// of it, so absent keys keep their default and present keys override it,
// including explicit false values.
func Default() *Config {
	return &Config{
		EnableAutoSend:           true,
		MessageTemplate:          DefaultTemplate,
		MaxExcerptWords:          50,
		IncludeFeaturedImage:     true,
		IncludeCategories:        true,
		IncludeTags:              true,
		ConvertUnsupportedImages: true,
		APIURL:                   "https://api.telegram.org",
		Listen:                   "127.0.0.1:8475",
		StatePath:                "postgram.db",
		CacheDir:                 "postgram-converted",
		CacheMaxAge:              24 * time.Hour,
		CacheSweepSchedule:       "17 * * * *",
	}
}

// Template returns the effective message template.
func (c *Config) Template() string {
	if c.MessageTemplate == "" {
		return DefaultTemplate
	}
	return c.MessageTemplate
}
