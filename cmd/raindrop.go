package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/x2raindrop/internal/services"
	"github.com/desertthunder/x2raindrop/internal/shared"
	"github.com/urfave/cli/v3"
)

// RaindropCollections lists the user's collections with ids, so a collection
// can be picked for sync.collection_id.
func (r *Runner) RaindropCollections(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if config.Raindrop.Token == "" {
		return fmt.Errorf("%w: raindrop.token is required", shared.ErrMissingConfig)
	}

	rd := r.newRaindropService(config)
	collections, err := rd.ListCollections(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(collections, true)
	}

	r.writeHeader("Raindrop Collections")
	r.writePlain("%12d  %s\n", services.CollectionUnsorted, "Unsorted")
	for _, c := range collections {
		title := c.Title
		if c.ParentID != 0 {
			title = "└ " + title
		}
		r.writePlain("%12d  %s %s\n", c.ID, title, styleDim.Render(fmt.Sprintf("(%d items)", c.Count)))
	}
	return nil
}
