package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/x2raindrop/internal/models"
	"github.com/desertthunder/x2raindrop/internal/shared"
	"github.com/desertthunder/x2raindrop/internal/tasks"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

// Sync runs the bookmark sync pipeline end to end.
//
// Flags override config; the collection title, when used, is resolved to an
// id before the engine starts so a bad title fails fast instead of mid-run.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	settings, err := r.syncSettings(config, cmd)
	if err != nil {
		return err
	}

	if config.Raindrop.Token == "" {
		return fmt.Errorf("%w: raindrop.token is required", shared.ErrMissingConfig)
	}
	if !config.X.HasDirectToken() && !config.X.CanUsePKCE() {
		return fmt.Errorf("%w: set x.client_id (PKCE) or x.access_token", shared.ErrMissingConfig)
	}

	auth, err := r.newAuthenticator(config)
	if err != nil {
		return err
	}
	xs := r.newXService(auth)
	rd := r.newRaindropService(config)
	ledger := r.newStateStore(config)

	title := cmd.String("collection-title")
	if title == "" {
		title = config.Sync.CollectionTitle
	}
	if settings.CollectionID == 0 && title != "" {
		collection, err := rd.CollectionByTitle(ctx, title)
		if err != nil {
			return err
		}
		r.logger.Info("resolved collection", "title", collection.Title, "id", collection.ID)
		settings.CollectionID = collection.ID
	}

	if settings.RemoveFromX && !settings.DryRun {
		r.writePlain("%s\n", styleWarn.Render("remove-from-x roughly doubles X API calls; the free tier budget runs out fast."))
	}
	if settings.DryRun {
		r.writePlain("%s\n", styleDim.Render("Dry run: nothing will be created, deleted or recorded."))
	}

	prog := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	bar := progressbar.Default(-1, "Syncing")
	go func() {
		defer close(done)
		for u := range prog {
			if u.Phase == tasks.PhaseDone {
				continue
			}
			bar.Add(1)
		}
	}()

	engine := tasks.NewEngine(xs, rd, ledger, settings, r.logger)
	result, runErr := engine.Run(ctx, prog)
	close(prog)
	<-done
	bar.Finish()
	r.writePlain("\n")

	if cmd.Bool("json") {
		if err := r.writeJSON(result, true); err != nil {
			return err
		}
		return runErr
	}

	r.writeSummary(result, xs.RequestCount()+rd.RequestCount(), settings.DryRun)
	return runErr
}

// syncSettings merges config and flag overrides into engine settings.
func (r *Runner) syncSettings(config *shared.Config, cmd *cli.Command) (tasks.Settings, error) {
	sync := config.Sync

	if cmd.IsSet("collection") {
		sync.CollectionID = cmd.Int64("collection")
	}
	if cmd.IsSet("collection-title") {
		sync.CollectionTitle = cmd.String("collection-title")
	}
	if sync.CollectionID != 0 && cmd.IsSet("collection-title") {
		return tasks.Settings{}, fmt.Errorf("%w: --collection and --collection-title are mutually exclusive", shared.ErrInvalidArgument)
	}
	if cmd.IsSet("tags") {
		sync.Tags = shared.ParseTags(cmd.String("tags"))
	}
	if cmd.IsSet("link-mode") {
		sync.LinkMode = cmd.String("link-mode")
	}
	if cmd.IsSet("both-behavior") {
		sync.BothBehavior = cmd.String("both-behavior")
	}
	if cmd.IsSet("remove-from-x") {
		sync.RemoveFromX = cmd.Bool("remove-from-x")
	}
	if cmd.IsSet("dry-run") {
		sync.DryRun = cmd.Bool("dry-run")
	}

	mode, err := models.ParseLinkMode(sync.LinkMode)
	if err != nil {
		return tasks.Settings{}, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	behavior, err := models.ParseBothBehavior(sync.BothBehavior)
	if err != nil {
		return tasks.Settings{}, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	return tasks.Settings{
		CollectionID: sync.CollectionID,
		Tags:         sync.Tags,
		LinkMode:     mode,
		BothBehavior: behavior,
		RemoveFromX:  sync.RemoveFromX,
		DryRun:       sync.DryRun,
	}, nil
}

func (r *Runner) writeSummary(result *models.SyncResult, requests int, dryRun bool) {
	if dryRun {
		r.writeHeader("Sync Summary (dry run)")
	} else {
		r.writeHeader("Sync Summary")
	}
	r.writePlain("Total bookmarks:  %d\n", result.Total)
	r.writePlain("Newly synced:     %s\n", styleOK.Render(fmt.Sprint(result.NewlySynced)))
	r.writePlain("Already synced:   %d\n", result.AlreadySynced)
	if result.Failed > 0 {
		r.writePlain("Failed:           %s\n", styleErr.Render(fmt.Sprint(result.Failed)))
	} else {
		r.writePlain("Failed:           0\n")
	}
	if result.DeletedFromX > 0 {
		r.writePlain("Removed from X:   %d\n", result.DeletedFromX)
	}
	r.writePlain("%s\n", styleDim.Render(fmt.Sprintf("API requests: %d", requests)))

	for _, msg := range result.Errors {
		r.writePlain("%s %s\n", styleErr.Render("✗"), msg)
	}
}

// SyncReset forgets one or all recorded bookmarks.
func (r *Runner) SyncReset(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	ledger := r.newStateStore(config)
	if err := ledger.Load(); err != nil {
		return err
	}

	id := cmd.String("id")
	switch {
	case cmd.Bool("all"):
		count := ledger.Count()
		if err := ledger.ResetAll(); err != nil {
			return err
		}
		r.writePlain("%s Cleared %d entries from the sync ledger.\n", styleOK.Render("✓"), count)
	case id != "":
		if !ledger.HasSynced(id) {
			r.writePlain("%s %s was not recorded as synced.\n", styleWarn.Render("!"), id)
			return nil
		}
		if err := ledger.Reset(id); err != nil {
			return err
		}
		r.writePlain("%s Forgot %s; it will sync again on the next run.\n", styleOK.Render("✓"), id)
	default:
		return fmt.Errorf("%w: pass --id <tweet id> or --all", shared.ErrMissingArgument)
	}
	return nil
}

// SyncStatus reports the ledger size and location.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	ledger := r.newStateStore(config)
	if err := ledger.Load(); err != nil {
		return err
	}

	r.writePlain("%d bookmarks recorded as synced\n", ledger.Count())
	r.writePlain("%s\n", styleDim.Render("ledger: "+ledger.Path()))
	return nil
}
