package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/garyjia/icsr-workflow/internal/application/validation"
	"github.com/garyjia/icsr-workflow/internal/container"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"github.com/garyjia/icsr-workflow/internal/domain/expression"
	"github.com/garyjia/icsr-workflow/internal/infrastructure/auth"
	"github.com/garyjia/icsr-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/icsr-workflow/pkg/database"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the case store schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetInt("to")

			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.New(database.Config{Path: cfg.Database.Path}, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			migrator := database.NewMigrator(db, logger)
			if target > 0 {
				err = migrator.UpTo(target)
			} else {
				err = migrator.Up()
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			version, err := migrator.CurrentVersion()
			if err != nil {
				return err
			}
			fmt.Printf("Schema is at version %d.\n", version)
			return nil
		},
	}
	upCmd.Flags().Int("to", 0, "Apply migrations up to this version only")
	cmd.AddCommand(upCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.New(database.Config{Path: cfg.Database.Path}, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			statuses, err := database.NewMigrator(db, logger).Status()
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage validation rules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Insert bundled system rules that are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logger.Sync()

			dbCfg := cfg.ToContainerConfig().Database
			bundle, err := container.ProvideDatabase(&dbCfg, logger)
			if err != nil {
				return err
			}
			defer bundle.DB.Close()

			if bundle.SchemaVersion < database.SchemaVersionValidation {
				return fmt.Errorf("schema version %d has no validation tables; run migrate up first", bundle.SchemaVersion)
			}

			rules := validation.NewRuleService(
				repository.NewRuleRepository(bundle.DB.DB, logger),
				repository.NewAuditRepository(bundle.DB.DB, logger),
				bundle.TransactionMgr,
				expression.NewEvaluator(),
				nil,
			)

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			inserted, err := rules.SeedSystemRules(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Inserted %d system rule(s).\n", inserted)
			return nil
		},
	})

	return cmd
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage local signer accounts",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user who can sign workflow transitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			username, _ := cmd.Flags().GetString("username")
			displayName, _ := cmd.Flags().GetString("name")
			password, _ := cmd.Flags().GetString("password")
			openID, _ := cmd.Flags().GetString("lark-open-id")

			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}
			if id == "" {
				id = uuid.NewString()
			}

			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.New(database.Config{Path: cfg.Database.Path}, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			hash, err := auth.HashPassword(password, auth.DefaultCost)
			if err != nil {
				return err
			}

			user := &entity.User{
				ID:           id,
				Username:     username,
				DisplayName:  displayName,
				PasswordHash: hash,
				LarkOpenID:   openID,
				IsActive:     true,
			}

			if err := repository.NewUserRepository(db.DB, logger).Create(context.Background(), user); err != nil {
				return err
			}

			fmt.Printf("Created user %s (%s).\n", username, id)
			return nil
		},
	}
	addCmd.Flags().String("id", "", "User id (generated when empty)")
	addCmd.Flags().String("username", "", "Login name")
	addCmd.Flags().String("name", "", "Display name")
	addCmd.Flags().String("password", "", "Signing password")
	addCmd.Flags().String("lark-open-id", "", "Lark open id for chat notifications")
	cmd.AddCommand(addCmd)

	return cmd
}
