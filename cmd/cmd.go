// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// configCommand handles configuration file operations
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Create a starter config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Where to write the config file (default: ~/.config/x2raindrop/config.toml)",
					},
				},
				Action: r.ConfigInit,
			},
			{
				Name:  "show",
				Usage: "Print the effective configuration with secrets masked",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ConfigShow,
			},
			{
				Name:   "path",
				Usage:  "Print the config, token and state file paths",
				Flags:  []cli.Flag{configFlag()},
				Action: r.ConfigPath,
			},
		},
	}
}

// xCommand handles X authentication operations
func xCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "x",
		Usage: "X account operations",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authenticate with X using OAuth2 PKCE",
				Flags:  []cli.Flag{configFlag()},
				Action: r.XLogin,
			},
			{
				Name:   "status",
				Usage:  "Show authentication state and token expiry",
				Flags:  []cli.Flag{configFlag()},
				Action: r.XStatus,
			},
			{
				Name:   "logout",
				Usage:  "Delete the stored X token",
				Flags:  []cli.Flag{configFlag()},
				Action: r.XLogout,
			},
		},
	}
}

// raindropCommand handles Raindrop.io operations
func raindropCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "raindrop",
		Aliases: []string{"rd"},
		Usage:   "Raindrop.io operations",
		Commands: []*cli.Command{
			{
				Name:  "collections",
				Usage: "List Raindrop.io collections",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.RaindropCollections,
			},
		},
	}
}

// syncCommand handles the bookmark sync pipeline
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync X bookmarks to Raindrop.io",
		Flags: []cli.Flag{
			configFlag(),
			&cli.Int64Flag{
				Name:  "collection",
				Usage: "Raindrop collection ID (-1 for Unsorted)",
			},
			&cli.StringFlag{
				Name:  "collection-title",
				Usage: "Raindrop collection title (resolved to an ID before syncing)",
			},
			&cli.StringFlag{
				Name:  "tags",
				Usage: "Comma-separated tags applied to every created raindrop",
			},
			&cli.StringFlag{
				Name:  "link-mode",
				Usage: "Link resolution: permalink, first_external_url or both",
			},
			&cli.StringFlag{
				Name:  "both-behavior",
				Usage: "How 'both' materializes: one_external_plus_note or two_raindrops",
			},
			&cli.BoolFlag{
				Name:  "remove-from-x",
				Usage: "Delete each bookmark from X after it syncs",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report what would sync without writing anything",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the run summary as JSON",
			},
		},
		Action: r.Sync,
		Commands: []*cli.Command{
			{
				Name:  "reset",
				Usage: "Forget synced bookmarks so they sync again",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "id",
						Usage: "Tweet ID to forget (omit with --all to clear everything)",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Clear the entire sync ledger",
					},
				},
				Action: r.SyncReset,
			},
			{
				Name:   "status",
				Usage:  "Show how many bookmarks are recorded as synced",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SyncStatus,
			},
		},
	}
}
