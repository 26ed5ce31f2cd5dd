// Package cli implements the bpmctl command-line interface.
//
// bpmctl operates directly on the database configured for the API server:
// it exports screens to JSON or YAML files, imports those files into another
// deployment, runs schema migrations and creates users. Configuration is
// read the same way the server reads it (config.yaml plus BPM_* environment
// variables); log output is rendered through charmbracelet/log on stderr.
//
// # Commands
//
//   - export screen <id>: write a screen and everything it depends on
//   - import <file>: import a previously exported file
//   - migrate <command>: run a goose migration command
//   - create-user: register a user account
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/phrazzld/bpm-api/internal/config"
	"github.com/phrazzld/bpm-api/internal/platform/logger"
	"github.com/phrazzld/bpm-api/internal/platform/postgres"
	"github.com/phrazzld/bpm-api/internal/service"
	"github.com/phrazzld/bpm-api/internal/service/auth"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// SetVersion sets the version information displayed by --version.
func SetVersion(v, c string) {
	version = v
	commit = c
}

// Backend bundles the services the commands run against.
type Backend struct {
	Portability service.PortabilityService
	Users       service.UserService
	// Migrate runs a goose command against the backend's database.
	Migrate func(ctx context.Context, command string, args ...string) error
	Close   func() error
}

// BackendFactory opens a Backend for cfg.
type BackendFactory func(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Backend, error)

// CLI holds shared state for all commands.
type CLI struct {
	out         io.Writer
	errOut      io.Writer
	loadConfig  func(path string) (*config.Config, error)
	openBackend BackendFactory

	configPath string
	verbose    bool
	cfg        *config.Config
	logger     *slog.Logger
}

// Option customizes a CLI.
type Option func(*CLI)

// WithOutput redirects command output and log output.
func WithOutput(out, errOut io.Writer) Option {
	return func(c *CLI) {
		c.out = out
		c.errOut = errOut
	}
}

// WithConfigLoader replaces config.LoadFile.
func WithConfigLoader(load func(path string) (*config.Config, error)) Option {
	return func(c *CLI) { c.loadConfig = load }
}

// WithBackend replaces the PostgreSQL backend.
func WithBackend(open BackendFactory) Option {
	return func(c *CLI) { c.openBackend = open }
}

// New creates a CLI that writes to stdout and stderr and talks to PostgreSQL.
func New(opts ...Option) *CLI {
	c := &CLI{
		out:         os.Stdout,
		errOut:      os.Stderr,
		loadConfig:  config.LoadFile,
		openBackend: OpenPostgresBackend,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bpmctl",
		Short:         "bpmctl moves BPM screens between deployments",
		Long:          `bpmctl exports screens together with their categories and scripts, imports them into another deployment and manages the database schema.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("bpmctl %s (commit %s)\n", version, commit))
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a config file (default: ./config.yaml if present)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.exportCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.migrateCommand())
	root.AddCommand(c.createUserCommand())

	return root
}

// Execute runs the CLI with os.Args.
func (c *CLI) Execute(ctx context.Context) error {
	return c.RootCommand().ExecuteContext(ctx)
}

func (c *CLI) setup(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	c.logger = logger.NewConsole(c.errOut, level)

	cfg, err := c.loadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	c.cfg = cfg

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logger.WithLogger(ctx, c.logger))
	return nil
}

// withBackend opens the backend, runs fn and closes the backend.
func (c *CLI) withBackend(ctx context.Context, fn func(*Backend) error) error {
	b, err := c.openBackend(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if b.Close == nil {
			return
		}
		if err := b.Close(); err != nil {
			c.logger.Warn("failed to close backend", "error", err)
		}
	}()
	return fn(b)
}

// OpenPostgresBackend connects to the configured database.
func OpenPostgresBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Backend, error) {
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	b, err := newBackend(db, cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func newBackend(db *sql.DB, cfg *config.Config, log *slog.Logger) (*Backend, error) {
	repo := postgres.NewRepository(db, cfg.Auth.BCryptCost, log)

	portability, err := service.NewPortabilityService(repo, repo, nil, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create portability service: %w", err)
	}
	users, err := service.NewUserService(repo, repo, auth.NewBcryptVerifier(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create user service: %w", err)
	}

	return &Backend{
		Portability: portability,
		Users:       users,
		Migrate: func(ctx context.Context, command string, args ...string) error {
			return postgres.Migrate(ctx, db, command, log, args...)
		},
		Close: db.Close,
	}, nil
}
