package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_core_tables.sql
var createCoreTablesSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createCoreTablesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`
				DROP TABLE IF EXISTS reward_grants;
				DROP TABLE IF EXISTS leaderboard_archives;
				DROP TABLE IF EXISTS leaderboard_snapshots;
				DROP TABLE IF EXISTS user_quiz_stats;
				DROP TABLE IF EXISTS powerup_purchases;
				DROP TABLE IF EXISTS powerup_activations;
				DROP TABLE IF EXISTS powerup_inventory;
				DROP TABLE IF EXISTS quiz_answers;
				DROP TABLE IF EXISTS quiz_sessions;
				DROP TABLE IF EXISTS listening_history;
				DROP TABLE IF EXISTS quiz_questions`)
			return err
		},
	)
}
