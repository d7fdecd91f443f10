package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/postgram/postgram/internal/feed"
)

// TestConnection performs the diagnostic send. In relay mode it pushes a
// real test message through the relay and trusts the relay's response; in
// direct mode it validates the bot token and channel access first, then
// sends the test message directly. The returned string is meant for a
// human operator.
func (p *Pipeline) TestConnection(ctx context.Context) (string, error) {
	if p.cfg.BotToken == "" || p.cfg.ChannelID == "" {
		return "", &feed.Error{
			Kind:   feed.ErrConfigurationInvalid,
			Detail: "bot token and channel ID must be configured first",
		}
	}

	msg := feed.RenderedMessage{
		Text: fmt.Sprintf("🧪 postgram connection test - %s", time.Now().Format("2006-01-02 15:04:05")),
	}

	if p.cfg.UseRelay {
		if p.cfg.RelayURL == "" {
			return "", &feed.Error{
				Kind:   feed.ErrConfigurationInvalid,
				Detail: "relay URL must be configured when relay mode is enabled",
			}
		}
		if res := p.router.Send(ctx, msg); !res.OK {
			return "", &feed.Error{Kind: res.ErrorKind, Detail: res.ErrorDetail}
		}
		return "Relay connection successful! Test message sent to Telegram.", nil
	}

	if err := p.validator.Validate(ctx, p.cfg.ChannelID); err != nil {
		return "", err
	}

	if res := p.router.Send(ctx, msg); !res.OK {
		return "", &feed.Error{Kind: res.ErrorKind, Detail: res.ErrorDetail}
	}
	return "Connection established successfully! Test message sent directly to Telegram.", nil
}
