package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quickfire-quiz-service/internal/domain"
)

// PoolLoader loads question JSONB from Postgres. Rows are sampled so
// repeated runs against the same artist see different pools.
type PoolLoader struct {
	pool *pgxpool.Pool
}

func NewPoolLoader(pool *pgxpool.Pool) *PoolLoader {
	return &PoolLoader{pool: pool}
}

func (l *PoolLoader) LoadPool(ctx context.Context, artistID string, n int) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT data FROM quiz_questions WHERE artist_id=$1 ORDER BY random() LIMIT $2`,
		artistID, n)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return questions, nil
}

// ListeningProvider reads historical listening hours. The table is
// owned by the streaming pipeline; this service only reads it.
type ListeningProvider struct {
	pool *pgxpool.Pool
}

func NewListeningProvider(pool *pgxpool.Pool) *ListeningProvider {
	return &ListeningProvider{pool: pool}
}

func (p *ListeningProvider) Hours(ctx context.Context, userID, artistID string) (float64, error) {
	var hours float64
	err := p.pool.QueryRow(ctx,
		`SELECT hours FROM listening_history WHERE user_id=$1 AND artist_id=$2`,
		userID, artistID).Scan(&hours)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load listening hours: %w", err)
	}
	return hours, nil
}
