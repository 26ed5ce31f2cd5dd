package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/phrazzld/bpm-api/internal/service"
	"github.com/spf13/cobra"
)

func (c *CLI) createUserCommand() *cobra.Command {
	var (
		params        service.NewUserParams
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user account",
		Example: `  echo "$PASSWORD" | bpmctl create-user --email ops@example.com --password-stdin --admin`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				params.Password = strings.TrimRight(string(data), "\r\n")
			}
			if params.Password == "" {
				return errors.New("a password is required (--password or --password-stdin)")
			}

			ctx := cmd.Context()
			return c.withBackend(ctx, func(b *Backend) error {
				user, err := b.Users.CreateUser(ctx, params)
				if err != nil {
					return err
				}
				c.logger.Info("Created user", "user_id", user.ID, "admin", user.IsAdministrator)
				fmt.Fprintln(c.out, user.ID.String())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&params.Email, "email", "", "email address")
	cmd.Flags().StringVar(&params.Password, "password", "", "password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().StringVar(&params.Firstname, "firstname", "", "first name")
	cmd.Flags().StringVar(&params.Lastname, "lastname", "", "last name")
	cmd.Flags().BoolVar(&params.IsAdministrator, "admin", false, "grant administrator rights")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
