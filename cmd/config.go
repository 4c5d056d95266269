package main

import (
	"context"
	"strings"

	"github.com/desertthunder/x2raindrop/internal/shared"
	"github.com/urfave/cli/v3"
)

// ConfigInit writes the starter config file.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if path == "" {
		path = shared.DefaultConfigPath()
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.writePlain("%s %s\n", styleOK.Render("✓"), "Config written to "+path)
	r.writePlain("%s\n", styleDim.Render("Fill in x.client_id and raindrop.token, then run `x2raindrop x login`."))
	return nil
}

// ConfigShow prints the effective configuration with credentials masked.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	masked := *config
	masked.X.ClientSecret = mask(config.X.ClientSecret)
	masked.X.AccessToken = mask(config.X.AccessToken)
	masked.Raindrop.Token = mask(config.Raindrop.Token)

	if cmd.Bool("json") {
		return r.writeJSON(masked, true)
	}

	r.writeHeader("Configuration")
	r.writePlain("log_level: %s\n", masked.LogLevel)
	r.writePlain("x.client_id: %s\n", masked.X.ClientID)
	r.writePlain("x.client_secret: %s\n", masked.X.ClientSecret)
	r.writePlain("x.access_token: %s\n", masked.X.AccessToken)
	r.writePlain("x.redirect_uri: %s\n", masked.X.RedirectURI)
	r.writePlain("x.scopes: %s\n", strings.Join(masked.X.Scopes, " "))
	r.writePlain("raindrop.token: %s\n", masked.Raindrop.Token)
	r.writePlain("sync.collection_id: %d\n", masked.Sync.CollectionID)
	r.writePlain("sync.collection_title: %s\n", masked.Sync.CollectionTitle)
	r.writePlain("sync.tags: %s\n", strings.Join(masked.Sync.Tags, ", "))
	r.writePlain("sync.link_mode: %s\n", masked.Sync.LinkMode)
	r.writePlain("sync.both_behavior: %s\n", masked.Sync.BothBehavior)
	r.writePlain("sync.remove_from_x: %t\n", masked.Sync.RemoveFromX)
	return nil
}

// ConfigPath prints where configuration and state live on disk.
func (r *Runner) ConfigPath(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	r.writePlain("config: %s\n", shared.DefaultConfigPath())
	r.writePlain("token:  %s\n", config.X.TokenPath)
	r.writePlain("state:  %s\n", config.Sync.StatePath)
	return nil
}

// mask hides a credential, keeping the first 4 characters for recognition.
func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}
