package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Validate checks field constraints. Presence of bot_token and channel_id is
// not enforced here: the automatic path skips silently when they are missing
// and the diagnostic path reports its own error.
func Validate(c *Config) error {
	if c.BotToken != "" && !tokenPattern.MatchString(c.BotToken) {
		return fmt.Errorf("config: bot_token format invalid (expected <bot_id>:<hash>)")
	}

	if err := checkHTTPURL("api_url", c.APIURL); err != nil {
		return err
	}

	if c.UseRelay && c.RelayURL != "" {
		if err := checkHTTPURL("relay_url", c.RelayURL); err != nil {
			return err
		}
	}

	if c.CacheBaseURL != "" {
		if err := checkHTTPURL("cache_base_url", c.CacheBaseURL); err != nil {
			return err
		}
	}

	if c.MaxExcerptWords < 1 {
		return fmt.Errorf("config: max_excerpt_words must be positive, got %d", c.MaxExcerptWords)
	}

	if c.CacheMaxAge <= 0 {
		return fmt.Errorf("config: cache_max_age must be positive, got %s", c.CacheMaxAge)
	}

	if _, err := net.ResolveTCPAddr("tcp", c.Listen); err != nil {
		return fmt.Errorf("config: invalid listen address %q", c.Listen)
	}

	return nil
}

func checkHTTPURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config: %s must be a valid http/https URL, got %q", field, raw)
	}
	return nil
}
