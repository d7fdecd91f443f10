// Package pipeline wires the publish gate, image normalizer, template
// renderer, and delivery router into the end-to-end flow triggered by a
// "post published" event.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/postgram/postgram/internal/config"
	"github.com/postgram/postgram/internal/deliver"
	"github.com/postgram/postgram/internal/feed"
	"github.com/postgram/postgram/internal/gate"
	"github.com/postgram/postgram/internal/media"
	"github.com/postgram/postgram/internal/metrics"
	"github.com/postgram/postgram/internal/render"
)

// Skip reasons reported in Outcome.SkipReason.
const (
	SkipAutoSendDisabled  = "auto send disabled"
	SkipConfigIncomplete  = "configuration incomplete"
	SkipDuplicateOrStatus = "duplicate publish or non-publish status"
)

// Outcome describes what the pipeline did with one event. When Attempted is
// false the event was dropped before any send and SkipReason says why.
type Outcome struct {
	Attempted  bool
	SkipReason string
	Result     feed.DeliveryResult
}

// Pipeline handles publish events and the diagnostic test-connection flow.
type Pipeline struct {
	cfg       *config.Config
	gate      *gate.Gate
	media     *media.Normalizer
	router    *deliver.Router
	validator *deliver.Validator
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New assembles a Pipeline. All collaborators are required except the
// logger.
func New(
	cfg *config.Config,
	g *gate.Gate,
	normalizer *media.Normalizer,
	router *deliver.Router,
	validator *deliver.Validator,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		gate:      g,
		media:     normalizer,
		router:    router,
		validator: validator,
		metrics:   m,
		logger:    logger,
	}
}

// HandlePostPublished runs one event through the pipeline: gate check,
// optional image resolution, template rendering, transport dispatch. The
// gate is marked before the send, so a failed delivery is never retried by
// a later event for the same post.
func (p *Pipeline) HandlePostPublished(ctx context.Context, ev feed.PostPublishedEvent) (Outcome, error) {
	if !p.cfg.EnableAutoSend {
		p.logger.Debug("auto send disabled, dropping event", "post_id", ev.PostID)
		return Outcome{SkipReason: SkipAutoSendDisabled}, nil
	}

	// Incomplete credentials drop the event silently: the admin surface is
	// the place to notice, not every publish hook.
	if p.cfg.BotToken == "" || p.cfg.ChannelID == "" || (p.cfg.UseRelay && p.cfg.RelayURL == "") {
		p.logger.Warn("delivery settings incomplete, dropping event", "post_id", ev.PostID)
		return Outcome{SkipReason: SkipConfigIncomplete}, nil
	}

	allowed, err := p.gate.ShouldSend(ctx, ev.PostID, ev.Status)
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: gate check for post %s: %w", ev.PostID, err)
	}
	if !allowed {
		p.metrics.Suppressed.Inc()
		return Outcome{SkipReason: SkipDuplicateOrStatus}, nil
	}

	att := p.media.Resolve(ctx, ev.FeaturedImageURL, p.cfg)
	if att != nil {
		p.metrics.ImageResolutions.WithLabelValues("attached").Inc()
	} else {
		p.metrics.ImageResolutions.WithLabelValues("absent").Inc()
	}

	msg := feed.RenderedMessage{
		Text:       render.Render(p.cfg.Template(), ev, p.cfg),
		Attachment: att,
	}

	res := p.router.Send(ctx, msg)
	p.record(res)

	if res.OK {
		p.logger.Info("post delivered",
			"post_id", ev.PostID,
			"message_id", res.MessageID,
			"with_image", att != nil,
		)
	} else {
		p.logger.Error("delivery failed",
			"post_id", ev.PostID,
			"kind", res.ErrorKind,
			"detail", res.ErrorDetail,
		)
	}

	return Outcome{Attempted: true, Result: res}, nil
}

func (p *Pipeline) record(res feed.DeliveryResult) {
	transport := metrics.TransportDirect
	if p.cfg.UseRelay {
		transport = metrics.TransportRelay
	}
	outcome := metrics.OutcomeFailed
	if res.OK {
		outcome = metrics.OutcomeOK
	}
	p.metrics.Deliveries.WithLabelValues(transport, outcome).Inc()
}
