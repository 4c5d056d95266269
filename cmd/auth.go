package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/x2raindrop/internal/services"
	"github.com/desertthunder/x2raindrop/internal/shared"
	"github.com/urfave/cli/v3"
)

// XLogin runs the OAuth2 PKCE flow against X and stores the resulting token.
func (r *Runner) XLogin(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if config.X.HasDirectToken() {
		r.writePlain("%s\n", styleWarn.Render("x.access_token is set; the login flow is not needed."))
		return nil
	}
	if !config.X.CanUsePKCE() {
		return fmt.Errorf("%w: x.client_id is required for login", shared.ErrMissingConfig)
	}

	auth, err := r.newAuthenticator(config)
	if err != nil {
		return err
	}

	r.writePlain("Opening browser for authorization...\n")
	token, err := auth.Login(ctx)
	if err != nil {
		return err
	}

	r.writePlain("%s Logged in. Token expires %s.\n", styleOK.Render("✓"), token.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

// XStatus reports the stored token's lifecycle state.
func (r *Runner) XStatus(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	auth, err := r.newAuthenticator(config)
	if err != nil {
		return err
	}

	authState, remaining := auth.Status()
	switch authState {
	case services.StateAuthorized:
		r.writePlain("%s %s (expires in %s)\n", styleOK.Render("✓"), authState, remaining.Round(time.Second))
		if token := auth.CurrentToken(); token != nil && len(token.Scope) > 0 {
			r.writePlain("%s\n", styleDim.Render(fmt.Sprintf("scopes: %v", token.Scope)))
		}
	case services.StateExpired:
		r.writePlain("%s token expired; it will be refreshed on next use or run `x2raindrop x login`\n", styleWarn.Render("!"))
	default:
		r.writePlain("%s not authenticated; run `x2raindrop x login`\n", styleErr.Render("✗"))
	}
	return nil
}

// XLogout deletes the stored token.
func (r *Runner) XLogout(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	auth, err := r.newAuthenticator(config)
	if err != nil {
		return err
	}

	if err := auth.Logout(); err != nil {
		return err
	}

	r.writePlain("%s Logged out.\n", styleOK.Render("✓"))
	return nil
}
