package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/phrazzld/bpm-api/internal/platform/postgres"
	"github.com/spf13/cobra"
)

func (c *CLI) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <command> [args...]",
		Short:     "Run database migrations",
		Long:      "Run a goose migration command against the configured database. Commands: " + strings.Join(postgres.MigrationCommands, ", ") + ".",
		Example:   "  bpmctl migrate up\n  bpmctl migrate status",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: postgres.MigrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := args[0]
			if !slices.Contains(postgres.MigrationCommands, command) {
				return fmt.Errorf("unknown migration command %q (want one of %s)",
					command, strings.Join(postgres.MigrationCommands, ", "))
			}
			ctx := cmd.Context()
			return c.withBackend(ctx, func(b *Backend) error {
				c.logger.Info("Executing migrations", "command", command)
				if err := b.Migrate(ctx, command, args[1:]...); err != nil {
					return fmt.Errorf("failed to run migrations: %w", err)
				}
				return nil
			})
		},
	}
}
