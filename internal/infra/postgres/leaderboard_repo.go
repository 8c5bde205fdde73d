package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"quickfire-quiz-service/internal/domain"
)

// SnapshotRepository stores one live snapshot per leaderboard key.
type SnapshotRepository struct {
	db *bun.DB
}

func NewSnapshotRepository(db *bun.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Get(ctx context.Context, key domain.LeaderboardKey) (domain.LeaderboardSnapshot, error) {
	row := new(snapshotRow)
	err := r.db.NewSelect().Model(row).
		Where("scope = ? AND period = ? AND country = ? AND artist_id = ?",
			string(key.Scope), string(key.Period), key.Country, key.ArtistID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LeaderboardSnapshot{}, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return domain.LeaderboardSnapshot{}, err
	}
	return row.toDomain(), nil
}

func (r *SnapshotRepository) Replace(ctx context.Context, snap domain.LeaderboardSnapshot) error {
	_, err := r.db.NewInsert().
		Model(snapshotToRow(snap)).
		On("CONFLICT (scope, period, country, artist_id) DO UPDATE").
		Set("id = EXCLUDED.id").
		Set("window_start = EXCLUDED.window_start").
		Set("entries = EXCLUDED.entries").
		Set("built_at = EXCLUDED.built_at").
		Exec(ctx)
	return err
}

func (r *SnapshotRepository) List(ctx context.Context) ([]domain.LeaderboardSnapshot, error) {
	var rows []snapshotRow
	if err := r.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.LeaderboardSnapshot, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// ArchiveRepository stores immutable period history. The insert is
// conditional on the (key, window) primary key, so re-running a
// rollover can never overwrite a settled window.
type ArchiveRepository struct {
	db *bun.DB
}

func NewArchiveRepository(db *bun.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

func (r *ArchiveRepository) Save(ctx context.Context, rec domain.ArchivedLeaderboard) (bool, error) {
	res, err := r.db.NewInsert().
		Model(archiveToRow(rec)).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ArchiveRepository) List(ctx context.Context, key domain.LeaderboardKey) ([]domain.ArchivedLeaderboard, error) {
	var rows []archiveRow
	err := r.db.NewSelect().Model(&rows).
		Where("scope = ? AND period = ? AND country = ? AND artist_id = ?",
			string(key.Scope), string(key.Period), key.Country, key.ArtistID).
		Order("window_start DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ArchivedLeaderboard, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// RewardLedger issues rewards exactly once per (user, period key, kind).
type RewardLedger struct {
	db *bun.DB
}

func NewRewardLedger(db *bun.DB) *RewardLedger {
	return &RewardLedger{db: db}
}

func (r *RewardLedger) GrantOnce(ctx context.Context, g domain.RewardGrant) (bool, error) {
	res, err := r.db.NewInsert().
		Model(grantToRow(g)).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RewardLedger) GrantsFor(ctx context.Context, userID string, since time.Time) ([]domain.RewardGrant, error) {
	var rows []grantRow
	q := r.db.NewSelect().Model(&rows).Where("user_id = ?", userID)
	if !since.IsZero() {
		q = q.Where("granted_at >= ?", since)
	}
	if err := q.Order("granted_at DESC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.RewardGrant, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}
