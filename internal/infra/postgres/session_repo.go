package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"quickfire-quiz-service/internal/domain"
)

// SessionRepository persists terminal sessions in Postgres.
type SessionRepository struct {
	db *bun.DB
}

func NewSessionRepository(db *bun.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Save(ctx context.Context, s domain.QuizSession) error {
	_, err := r.db.NewInsert().
		Model(sessionToRow(s)).
		On("CONFLICT (id) DO UPDATE").
		Set("bonus_time_ms = EXCLUDED.bonus_time_ms").
		Set("base_points = EXCLUDED.base_points").
		Set("streak_points = EXCLUDED.streak_points").
		Set("listening_points = EXCLUDED.listening_points").
		Set("multiplier_points = EXCLUDED.multiplier_points").
		Set("penalty_points = EXCLUDED.penalty_points").
		Set("final_score = EXCLUDED.final_score").
		Set("current_streak = EXCLUDED.current_streak").
		Set("longest_streak = EXCLUDED.longest_streak").
		Set("answered = EXCLUDED.answered").
		Set("correct = EXCLUDED.correct").
		Set("wrong = EXCLUDED.wrong").
		Set("status = EXCLUDED.status").
		Set("review = EXCLUDED.review").
		Set("completed_at = EXCLUDED.completed_at").
		Exec(ctx)
	return err
}

func (r *SessionRepository) Get(ctx context.Context, id string) (domain.QuizSession, error) {
	row := new(sessionRow)
	err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.QuizSession{}, err
	}
	return row.toDomain(), nil
}

func (r *SessionRepository) CompletedSince(ctx context.Context, since time.Time) ([]domain.QuizSession, error) {
	var rows []sessionRow
	q := r.db.NewSelect().Model(&rows).
		Where("status IN (?, ?)", string(domain.StatusCompleted), string(domain.StatusAbandoned)).
		Order("completed_at ASC")
	if !since.IsZero() {
		q = q.Where("completed_at >= ?", since)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.QuizSession, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (r *SessionRepository) SetReview(ctx context.Context, id string, review domain.ReviewStatus) error {
	res, err := r.db.NewUpdate().
		Model((*sessionRow)(nil)).
		Set("review = ?", string(review)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// AnswerRepository is the append-only answer log in Postgres.
type AnswerRepository struct {
	db *bun.DB
}

func NewAnswerRepository(db *bun.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

func (r *AnswerRepository) Append(ctx context.Context, a domain.QuizAnswer) error {
	_, err := r.db.NewInsert().Model(answerToRow(a)).Exec(ctx)
	return err
}

func (r *AnswerRepository) BySession(ctx context.Context, sessionID string) ([]domain.QuizAnswer, error) {
	var rows []answerRow
	err := r.db.NewSelect().Model(&rows).
		Where("session_id = ?", sessionID).
		Order("submitted_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.QuizAnswer, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}
