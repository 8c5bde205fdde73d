package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"quickfire-quiz-service/internal/domain"
)

// StatsRepository owns the cumulative per-user aggregate. Apply runs in
// a transaction with the row locked, so point debits and completion
// credits never interleave.
type StatsRepository struct {
	db *bun.DB
}

func NewStatsRepository(db *bun.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) Get(ctx context.Context, userID string) (domain.UserQuizStats, error) {
	row := new(statsRow)
	err := r.db.NewSelect().Model(row).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserQuizStats{}, domain.ErrStatsNotFound
	}
	if err != nil {
		return domain.UserQuizStats{}, err
	}
	return row.toDomain(), nil
}

func (r *StatsRepository) Apply(ctx context.Context, userID string, mutate func(*domain.UserQuizStats) error) (domain.UserQuizStats, error) {
	var updated domain.UserQuizStats
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		row := new(statsRow)
		err := tx.NewSelect().Model(row).
			Where("user_id = ?", userID).
			For("UPDATE").
			Scan(ctx)
		stats := domain.UserQuizStats{UserID: userID}
		switch {
		case err == nil:
			stats = row.toDomain()
		case errors.Is(err, sql.ErrNoRows):
			// first write for this user
		default:
			return err
		}

		if err := mutate(&stats); err != nil {
			return err
		}
		updated = stats

		_, err = tx.NewInsert().
			Model(statsToRow(stats)).
			On("CONFLICT (user_id) DO UPDATE").
			Set("country = EXCLUDED.country").
			Set("lifetime_points = EXCLUDED.lifetime_points").
			Set("spent_points = EXCLUDED.spent_points").
			Set("available_points = EXCLUDED.available_points").
			Set("total_answered = EXCLUDED.total_answered").
			Set("total_correct = EXCLUDED.total_correct").
			Set("total_wrong = EXCLUDED.total_wrong").
			Set("best_score = EXCLUDED.best_score").
			Set("longest_streak = EXCLUDED.longest_streak").
			Set("daily_streak = EXCLUDED.daily_streak").
			Set("quizzes_played = EXCLUDED.quizzes_played").
			Set("first_quiz_at = EXCLUDED.first_quiz_at").
			Set("last_played_at = EXCLUDED.last_played_at").
			Exec(ctx)
		return err
	})
	if err != nil {
		return domain.UserQuizStats{}, err
	}
	return updated, nil
}
