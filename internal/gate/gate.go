// Package gate implements the at-most-once publish gate. Publish hooks can
// fire several times for one logical publish action (edits, revalidation);
// the gate records the first observation durably and suppresses every
// subsequent send for the same post.
package gate

import (
	"context"
	"log/slog"

	"github.com/postgram/postgram/internal/feed"
)

// Record is the durable per-post publish state. Once written it never
// transitions back: there is no reset path inside the pipeline. An external
// administrator may delete the row to re-arm a post.
type Record struct {
	PostID          string
	PublishedBefore bool
	LastKnownStatus string
}

// RecordStore persists publish records. CreateIfAbsent must be atomic: two
// concurrent calls for the same post ID see exactly one true result.
type RecordStore interface {
	Get(ctx context.Context, postID string) (*Record, error)
	CreateIfAbsent(ctx context.Context, rec Record) (created bool, err error)
}

// Gate decides whether a publish event may be delivered.
type Gate struct {
	store  RecordStore
	logger *slog.Logger
}

// New creates a Gate backed by the given store.
func New(store RecordStore, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, logger: logger}
}

// ShouldSend reports whether this event is the first publish observation for
// postID. Statuses other than "publish" never touch the store. The first
// "yes" is side-effecting: the record is written before the send is
// attempted, so a failed send is not retried on a later event.
func (g *Gate) ShouldSend(ctx context.Context, postID, status string) (bool, error) {
	if status != feed.StatusPublished {
		return false, nil
	}

	created, err := g.store.CreateIfAbsent(ctx, Record{
		PostID:          postID,
		PublishedBefore: true,
		LastKnownStatus: feed.StatusPublished,
	})
	if err != nil {
		return false, err
	}

	if !created {
		g.logger.Debug("publish suppressed, already sent", "post_id", postID)
	}
	return created, nil
}
