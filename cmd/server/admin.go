package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/and161185/bookswap/internal/config"
	"github.com/and161185/bookswap/internal/migrate"
	"github.com/and161185/bookswap/internal/service"
)

func newMigrateCmd(envFile *string) *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or list the embedded schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(migrate.DirUp), string(migrate.DirDown), string(migrate.DirStatus)},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dsn") {
				cfg.DSN = dsn
			}
			dir := migrate.DirUp
			if len(args) == 1 {
				dir = migrate.Direction(args[0])
			}
			return migrate.Run(cmd.Context(), cfg.DSN, dir)
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN")
	return cmd
}

func newUserCmd(envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUserAddCmd(envFile))
	return cmd
}

func newUserAddCmd(envFile *string) *cobra.Command {
	var email, name, dsn string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account, prompting for its password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dsn") {
				cfg.DSN = dsn
			}
			if cfg.Store != config.StorePostgres {
				return errors.New("user add needs the postgres store")
			}

			pw, err := readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			again, err := readPassword(cmd, "Repeat password: ")
			if err != nil {
				return err
			}
			if pw != again {
				return errors.New("passwords do not match")
			}

			be, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer be.close()

			auth := service.NewAuthService(be.users, nil, cfg.SessionTTL, be.lim, zap.NewNop())
			u, err := auth.Register(cmd.Context(), email, pw, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.ID, u.Email)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&email, "email", "", "account email")
	fs.StringVar(&name, "name", "", "display name")
	fs.StringVar(&dsn, "dsn", "", "PostgreSQL DSN")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// readPassword reads a line from the terminal without echo.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
