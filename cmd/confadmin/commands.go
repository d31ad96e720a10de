package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tech-arch1tect/confadmin"
	"github.com/tech-arch1tect/confadmin/app"
	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/services/account"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := confadmin.New()
		if err != nil {
			return err
		}
		return a.Run()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadEnvironment()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := app.Migrate(cfg, logger)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		fmt.Fprintln(cmd.OutOrStdout(), "database schema is up to date")
		return nil
	},
}

var seedAdmin struct {
	email    string
	name     string
	password string
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the first admin account, replacing any account with the same email",
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedAdmin.email == "" || seedAdmin.password == "" {
			return errors.New("--email and --password are required")
		}

		cfg, logger, err := loadEnvironment()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := app.Migrate(cfg, logger)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		accounts := account.NewService(&cfg.Auth, db, logger.Named("account"))
		user, err := accounts.Seed(cmd.Context(), seedAdmin.name, seedAdmin.email, seedAdmin.password)
		if err != nil {
			logger.Error("failed to seed admin", zap.Error(err))
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "admin %s <%s> created with id %s\n", user.Name, user.Email, user.ID)
		return nil
	},
}

func init() {
	flags := seedAdminCmd.Flags()
	flags.StringVar(&seedAdmin.email, "email", "", "admin email address")
	flags.StringVar(&seedAdmin.name, "name", "Admin", "admin display name")
	flags.StringVar(&seedAdmin.password, "password", "", "admin password")
}

func loadEnvironment() (*config.Config, *logging.Service, error) {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.NewLoggingService(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}
