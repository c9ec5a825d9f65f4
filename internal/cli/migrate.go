package cli

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quizgenius-service/internal/config"
	pgmigrations "quizgenius-service/internal/infra/postgres/migrations"
)

// NewMigrateCmd applies the Postgres schema.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return migratePostgres(cmd.Context(), cfg.Postgres.URL)
		},
	}
}

func migratePostgres(ctx context.Context, dsn string) error {
	if dsn == "" {
		return errors.New("postgres url not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	group, err := pgmigrations.Apply(ctx, db)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Printf("schema up to date")
		return nil
	}
	log.Printf("migrated to %s", group)
	return nil
}
