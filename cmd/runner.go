package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/x2raindrop/internal/services"
	"github.com/desertthunder/x2raindrop/internal/shared"
	"github.com/desertthunder/x2raindrop/internal/state"
	"github.com/urfave/cli/v3"
)

var (
	styleTitle = lipgloss.NewStyle().Foreground(lipgloss.Color("#1d9bf0")).Bold(true)
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	styleErr   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	styleDim   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true)
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		configCommand, xCommand, raindropCommand, syncCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig resolves the configuration for a command invocation: the --config
// flag when given, the default path when it exists, built-in defaults plus
// environment otherwise. The loaded config is cached on the runner.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	path := cmd.String("config")
	if path != "" {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		r.config = config
	} else if _, err := os.Stat(shared.DefaultConfigPath()); err == nil {
		config, err := shared.LoadConfig(shared.DefaultConfigPath())
		if err != nil {
			return nil, err
		}
		r.config = config
	} else {
		r.config = shared.DefaultConfig()
	}

	shared.SetLogLevel(r.logger, r.config.LogLevel)
	return r.config, nil
}

// newAuthenticator builds the X authenticator from the loaded config.
func (r *Runner) newAuthenticator(config *shared.Config) (*services.Authenticator, error) {
	return services.NewAuthenticator(services.AuthenticatorOpts{
		ClientID:     config.X.ClientID,
		ClientSecret: config.X.ClientSecret,
		RedirectURI:  config.X.RedirectURI,
		Scopes:       config.X.Scopes,
		AccessToken:  config.X.AccessToken,
		Store:        services.NewFileTokenStore(config.X.TokenPath),
		HTTPClient:   r.httpClient,
		Logger:       r.logger,
	})
}

// newXService builds the X bookmarks client, authenticated via auth.
func (r *Runner) newXService(auth *services.Authenticator) *services.XService {
	exec := services.NewExecutor(services.ExecutorOpts{
		Client: r.httpClient,
		Tokens: auth,
		Logger: r.logger,
	})
	return services.NewXService(services.XServiceOpts{Executor: exec, Logger: r.logger})
}

// newRaindropService builds the Raindrop client from the static API token.
func (r *Runner) newRaindropService(config *shared.Config) *services.RaindropService {
	exec := services.NewExecutor(services.ExecutorOpts{
		Client: r.httpClient,
		Tokens: services.StaticTokenProvider(config.Raindrop.Token),
		Logger: r.logger,
	})
	return services.NewRaindropService(services.RaindropServiceOpts{Executor: exec, Logger: r.logger})
}

// newStateStore builds the sync ledger from the configured path.
func (r *Runner) newStateStore(config *shared.Config) *state.Store {
	return state.NewStore(config.Sync.StatePath, r.logger)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeHeader(title string) {
	r.writePlain("%s\n", styleTitle.Render(title))
}

// configFlag is shared by every command that reads configuration.
func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
	}
}
