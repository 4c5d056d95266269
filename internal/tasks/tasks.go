// package tasks implements the sync pipeline: link resolution policy and the
// engine that streams bookmarks from X, creates raindrops, records them in
// the ledger, and optionally deletes the originals.
package tasks

import (
	"context"

	"github.com/desertthunder/x2raindrop/internal/models"
	"github.com/desertthunder/x2raindrop/internal/state"
)

// SourceClient is the read/delete surface of the bookmark source.
type SourceClient interface {
	Bookmarks(ctx context.Context, fn func(models.Bookmark) error) error
	DeleteBookmark(ctx context.Context, tweetID string) error
}

// DestinationClient is the write surface of the bookmark destination.
type DestinationClient interface {
	CreateRaindrop(ctx context.Context, target models.RaindropTarget) (*models.CreatedRaindrop, error)
}

// Ledger is the persistence surface the engine needs from the sync state.
type Ledger interface {
	Load() error
	HasSynced(tweetID string) bool
	Record(tweetID string, destinationIDs []int64, linkMode string) error
	MarkDeleted(tweetID string) error
	Count() int
}

var _ Ledger = (*state.Store)(nil)

// Settings carries the per-run sync options, resolved from config and flags
// before the engine starts.
type Settings struct {
	CollectionID int64
	Tags         []string
	LinkMode     models.LinkMode
	BothBehavior models.BothBehavior
	RemoveFromX  bool
	DryRun       bool
}
