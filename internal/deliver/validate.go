package deliver

import (
	"context"
	"errors"
	"fmt"

	"github.com/postgram/postgram/internal/feed"
	"github.com/postgram/postgram/internal/telegram"
)

// Validator pre-flights bot credentials and channel access before a direct
// test send. Relay-mode diagnostics skip it and trust the relay's own
// response instead.
type Validator struct {
	client *telegram.Client
}

// NewValidator creates a Validator on top of an existing Bot API client.
func NewValidator(client *telegram.Client) *Validator {
	return &Validator{client: client}
}

// Validate checks the bot identity, then the channel lookup. The returned
// error is a *feed.Error carrying InvalidCredentials or ChannelUnreachable.
func (v *Validator) Validate(ctx context.Context, channelID string) error {
	if _, err := v.client.GetMe(ctx); err != nil {
		return &feed.Error{
			Kind:   feed.ErrInvalidCredentials,
			Detail: describe(err, "invalid bot token"),
		}
	}

	if _, err := v.client.GetChat(ctx, channelID); err != nil {
		return &feed.Error{
			Kind:   feed.ErrChannelUnreachable,
			Detail: describe(err, fmt.Sprintf("cannot access channel %s", channelID)),
		}
	}

	return nil
}

// describe prefers the remote API description over the generic fallback.
func describe(err error, fallback string) string {
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) && apiErr.Description != "" {
		return apiErr.Description
	}
	return fallback
}
