package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/desertthunder/x2raindrop/internal/models"
	"github.com/desertthunder/x2raindrop/internal/shared"
	"github.com/desertthunder/x2raindrop/internal/tasks"
	"github.com/urfave/cli/v3"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.logger == nil || runner.output == nil || runner.httpClient == nil {
				t.Error("expected defaults filled in")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writeJSON(map[string]int{"count": 3}, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := output.String(); got != "{\"count\":3}\n" {
			t.Errorf("unexpected output %q", got)
		}
	})

	t.Run("register wires every top-level command", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for _, cmd := range commands {
			names[cmd.Name] = true
		}
		for _, want := range []string{"config", "x", "raindrop", "sync"} {
			if !names[want] {
				t.Errorf("expected %s command registered", want)
			}
		}
	})
}

// capturedSettings runs the sync command constructor against canned args,
// capturing the settings the action would hand to the engine.
func capturedSettings(t *testing.T, config *shared.Config, args []string) (tasks.Settings, error) {
	t.Helper()

	runner := NewRunner(RunnerOpts{Config: config, Output: &bytes.Buffer{}})
	var got tasks.Settings
	var gotErr error

	cmd := syncCommand(runner)
	cmd.Action = func(ctx context.Context, c *cli.Command) error {
		got, gotErr = runner.syncSettings(config, c)
		return nil
	}

	app := &cli.Command{Name: "x2raindrop", Commands: []*cli.Command{cmd}}
	if err := app.Run(context.Background(), append([]string{"x2raindrop", "sync"}, args...)); err != nil {
		t.Fatalf("run: %v", err)
	}
	return got, gotErr
}

func TestSyncSettings(t *testing.T) {
	base := shared.DefaultConfig()

	t.Run("defaults come from config", func(t *testing.T) {
		settings, err := capturedSettings(t, base, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.LinkMode != models.LinkModePermalink {
			t.Errorf("expected permalink default, got %s", settings.LinkMode)
		}
		if settings.RemoveFromX || settings.DryRun {
			t.Error("expected destructive options off by default")
		}
	})

	t.Run("flags override config", func(t *testing.T) {
		settings, err := capturedSettings(t, base, []string{
			"--collection", "42",
			"--tags", "a,b",
			"--link-mode", "both",
			"--both-behavior", "two_raindrops",
			"--dry-run",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if settings.CollectionID != 42 {
			t.Errorf("expected collection 42, got %d", settings.CollectionID)
		}
		if len(settings.Tags) != 2 {
			t.Errorf("expected parsed tags, got %v", settings.Tags)
		}
		if settings.LinkMode != models.LinkModeBoth || settings.BothBehavior != models.BothTwoRaindrops {
			t.Errorf("expected both/two_raindrops, got %s/%s", settings.LinkMode, settings.BothBehavior)
		}
		if !settings.DryRun {
			t.Error("expected dry run enabled")
		}
	})

	t.Run("collection id and title flags conflict", func(t *testing.T) {
		_, err := capturedSettings(t, base, []string{"--collection", "42", "--collection-title", "Reading"})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})

	t.Run("bad link mode is rejected", func(t *testing.T) {
		_, err := capturedSettings(t, base, []string{"--link-mode", "second_url"})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})
}

func TestMask(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"abc", "****"},
		{"abcdefgh", "abcd****"},
	}
	for _, tt := range tests {
		if got := mask(tt.input); got != tt.want {
			t.Errorf("mask(%q): expected %q, got %q", tt.input, tt.want, got)
		}
	}
	if strings.Contains(mask("supersecretvalue"), "secret") {
		t.Error("mask leaked the credential")
	}
}
