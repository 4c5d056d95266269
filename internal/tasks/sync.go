package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/x2raindrop/internal/models"
	"github.com/desertthunder/x2raindrop/internal/shared"
)

// Engine runs one sync: streams bookmarks from the source, resolves each into
// raindrop targets, creates them, records the outcome in the ledger, and
// optionally deletes the originals.
//
// Per-record failures are counted and skipped; auth and rate-limit failures
// halt the run because every subsequent request would fail the same way. The
// ledger is written after each record, so an interrupted run resumes where it
// stopped.
type Engine struct {
	source   SourceClient
	dest     DestinationClient
	ledger   Ledger
	settings Settings
	logger   *log.Logger
}

// NewEngine creates a sync engine.
func NewEngine(source SourceClient, dest DestinationClient, ledger Ledger, settings Settings, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{
		source:   source,
		dest:     dest,
		ledger:   ledger,
		settings: settings,
		logger:   logger,
	}
}

// fatal reports whether an error should halt the whole run.
func fatal(err error) bool {
	return errors.Is(err, shared.ErrAuthFailed) ||
		errors.Is(err, shared.ErrNotAuthenticated) ||
		errors.Is(err, shared.ErrTokenExpired) ||
		errors.Is(err, shared.ErrRateLimited) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Run executes the sync. Progress updates are sent to prog when it is
// non-nil; the channel is never closed by the engine. The returned result is
// valid even when err is non-nil, reporting what completed before the halt.
func (e *Engine) Run(ctx context.Context, prog chan<- ProgressUpdate) (*models.SyncResult, error) {
	if err := e.ledger.Load(); err != nil {
		return &models.SyncResult{}, err
	}

	runID := shared.GenerateID()
	logger := shared.WithLogger(e.logger, "run_id", runID)
	logger.Info("starting sync",
		"link_mode", e.settings.LinkMode,
		"collection_id", e.settings.CollectionID,
		"remove_from_x", e.settings.RemoveFromX,
		"dry_run", e.settings.DryRun,
		"already_recorded", e.ledger.Count())

	result := &models.SyncResult{}
	emit(prog, update(PhaseFetch, 0, "fetching bookmarks"))

	err := e.source.Bookmarks(ctx, func(b models.Bookmark) error {
		result.Total++

		if e.ledger.HasSynced(b.TweetID) {
			result.AlreadySynced++
			logger.Debug("already synced, skipping", "tweet_id", b.TweetID)
			emit(prog, update(PhaseSkip, result.Total, "skipped %s", b.TweetID))
			return nil
		}

		if e.settings.DryRun {
			result.NewlySynced++
			for _, target := range Targets(b, e.settings) {
				logger.Info("would create raindrop", "tweet_id", b.TweetID, "link", target.Link)
			}
			emit(prog, update(PhaseDryRun, result.Total, "would sync %s", b.TweetID))
			return nil
		}

		if err := e.syncOne(ctx, logger, b); err != nil {
			if fatal(err) {
				return err
			}
			result.Failed++
			result.AddError("tweet %s: %v", b.TweetID, err)
			logger.Error("failed to sync bookmark", "tweet_id", b.TweetID, "error", err)
			emit(prog, update(PhaseError, result.Total, "failed %s", b.TweetID))
			return nil
		}
		result.NewlySynced++
		emit(prog, update(PhaseCreate, result.Total, "synced %s", b.TweetID))

		if e.settings.RemoveFromX {
			if err := e.deleteOne(ctx, logger, b.TweetID); err != nil {
				if fatal(err) {
					return err
				}
				result.AddError("delete tweet %s: %v", b.TweetID, err)
				logger.Warn("failed to remove bookmark from X", "tweet_id", b.TweetID, "error", err)
			} else {
				result.DeletedFromX++
				emit(prog, update(PhaseDelete, result.Total, "deleted %s", b.TweetID))
			}
		}
		return nil
	})

	emit(prog, ProgressUpdate{Phase: PhaseDone, Step: result.Total, Total: result.Total})
	if err != nil {
		logger.Error("sync halted", "error", err, "processed", result.Total)
		return result, err
	}

	logger.Info("sync complete",
		"total", result.Total,
		"newly_synced", result.NewlySynced,
		"already_synced", result.AlreadySynced,
		"failed", result.Failed,
		"deleted_from_x", result.DeletedFromX)
	return result, nil
}

// syncOne creates every raindrop a bookmark resolves to, then records the
// bookmark. Nothing is recorded unless all its raindrops were created, so a
// partially delivered bookmark is retried whole on the next run.
func (e *Engine) syncOne(ctx context.Context, logger *log.Logger, b models.Bookmark) error {
	targets := Targets(b, e.settings)

	ids := make([]int64, 0, len(targets))
	for _, target := range targets {
		created, err := e.dest.CreateRaindrop(ctx, target)
		if err != nil {
			return err
		}
		ids = append(ids, created.ID)
		logger.Debug("created raindrop", "tweet_id", b.TweetID, "raindrop_id", created.ID, "link", created.Link)
	}

	if err := e.ledger.Record(b.TweetID, ids, string(e.settings.LinkMode)); err != nil {
		return fmt.Errorf("failed to record sync state: %w", err)
	}
	return nil
}

// deleteOne removes the bookmark from X and flags the ledger entry. The
// raindrops stay either way.
func (e *Engine) deleteOne(ctx context.Context, logger *log.Logger, tweetID string) error {
	if err := e.source.DeleteBookmark(ctx, tweetID); err != nil {
		return err
	}
	if err := e.ledger.MarkDeleted(tweetID); err != nil {
		logger.Warn("raindrop created and bookmark deleted, but flag not recorded", "tweet_id", tweetID, "error", err)
	}
	return nil
}
