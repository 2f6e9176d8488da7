package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"task-manager/configs"
	"task-manager/internal/repository"
)

type openFunc func(ctx context.Context) (*sql.DB, error)

func newRootCommand(cfg configs.Config, open openFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Administer the task-manager database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCommand(open),
		newCreateAdminCommand(cfg, open),
		newDropAllCommand(open),
	)
	return root
}

// withDB opens the database for the duration of fn.
func withDB(ctx context.Context, open openFunc, fn func(db *sql.DB) error) error {
	db, err := open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func newMigrateCommand(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables and indexes if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), open, func(db *sql.DB) error {
				if err := repository.CreateTableIfNotExists(cmd.Context(), db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
				return nil
			})
		},
	}
}

func newCreateAdminCommand(cfg configs.Config, open openFunc) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "createadmin",
		Short: "Create an admin user unless the username is taken",
		Long: `Createadmin inserts a staff user with the admin role.
Flags default to ADMIN_USERNAME, ADMIN_EMAIL and ADMIN_PASSWORD.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				return errors.New("username and password are required")
			}
			return withDB(cmd.Context(), open, func(db *sql.DB) error {
				if err := repository.CreateTableIfNotExists(cmd.Context(), db); err != nil {
					return err
				}
				if err := repository.CreateAdminUser(cmd.Context(), db, username, email, password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Admin %q is ready.\n", username)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", cfg.AdminUsername, "admin username")
	cmd.Flags().StringVarP(&email, "email", "e", cfg.AdminEmail, "admin e-mail")
	cmd.Flags().StringVarP(&password, "password", "p", cfg.AdminPassword, "admin password")
	return cmd
}

func newDropAllCommand(open openFunc) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "dropall",
		Short: "Drop every table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to drop tables without --yes")
			}
			return withDB(cmd.Context(), open, func(db *sql.DB) error {
				if err := repository.DeleteAllTable(cmd.Context(), db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All tables dropped.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm dropping all data")
	return cmd
}
