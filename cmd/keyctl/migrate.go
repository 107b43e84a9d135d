package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"key-manager-service/config"
	"key-manager-service/internal/domain"
	"key-manager-service/internal/infra"
	"key-manager-service/internal/repository"
	"key-manager-service/internal/usecase"
	"key-manager-service/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  "Manage the object store schema of the key manager service (uses DATABASE_URL)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeDB, err := newMigrationService()
			if err != nil {
				return err
			}
			defer closeDB()

			appliedCount, err := svc.ApplyMigrations(commandContext(cmd))
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			if appliedCount == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations.")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", appliedCount)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeDB, err := newMigrationService()
			if err != nil {
				return err
			}
			defer closeDB()

			list, err := svc.GetMigrationStatus(commandContext(cmd))
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			return printMigrationStatus(cmd.OutOrStdout(), list)
		},
	})

	return cmd
}

// newMigrationService はDATABASE_URLの方言に対応する埋め込みSQLでMigrationServiceを組み立てる。
func newMigrationService() (*usecase.MigrationService, func(), error) {
	cfg := config.Load()
	db, dialect, err := infra.NewDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}

	files, err := migrations.ForDialect(dialect)
	if err != nil {
		sqlDB.Close()
		return nil, nil, err
	}

	svc := usecase.NewMigrationService(repository.NewMigrationRepository(db), files)
	return svc, func() { sqlDB.Close() }, nil
}

// printMigrationStatus はマイグレーション一覧をテーブル形式で出力する。
func printMigrationStatus(out io.Writer, list []*domain.Migration) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	fmt.Fprintln(w, "-------\t----\t------\t----------")

	for _, m := range list {
		appliedAt := "-"
		if m.AppliedAt != nil {
			appliedAt = m.AppliedAt.Format("2006-01-02 15:04:05")
		}
		status := "pending"
		if m.Status == domain.MigrationStatusApplied {
			status = "applied"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Version, m.Name, status, appliedAt)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}
