// Package deliver routes a rendered message to Telegram, either directly
// against the Bot API or through an intermediary relay endpoint, and maps
// every outcome onto a uniform DeliveryResult. One attempt per send, no
// retries: a failed delivery is terminal for its invocation.
package deliver

import (
	"context"
	"log/slog"

	"github.com/postgram/postgram/internal/config"
	"github.com/postgram/postgram/internal/feed"
)

// Transport performs one HTTP exchange for a rendered message.
type Transport interface {
	Send(ctx context.Context, msg feed.RenderedMessage) feed.DeliveryResult
}

// Router picks the transport dictated by configuration and dispatches.
type Router struct {
	direct   Transport
	relay    Transport
	useRelay bool
	relayURL string
	logger   *slog.Logger
}

// NewRouter creates a Router. The relay transport may be nil when UseRelay
// is off.
func NewRouter(cfg *config.Config, direct, relay Transport, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		direct:   direct,
		relay:    relay,
		useRelay: cfg.UseRelay,
		relayURL: cfg.RelayURL,
		logger:   logger,
	}
}

// Send dispatches the message through the configured transport. A relay
// configuration without a URL fails immediately, before any network call.
func (r *Router) Send(ctx context.Context, msg feed.RenderedMessage) feed.DeliveryResult {
	if r.useRelay {
		if r.relayURL == "" {
			return feed.Failure(feed.ErrConfigurationInvalid, "relay enabled but relay_url is empty")
		}
		r.logger.Debug("dispatching via relay")
		return r.relay.Send(ctx, msg)
	}
	r.logger.Debug("dispatching via direct transport")
	return r.direct.Send(ctx, msg)
}
