package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"quickfire-quiz-service/internal/domain"
)

// InventoryRepository keeps per-(user, powerup) quantities. The
// decrement is a single conditional UPDATE so two racing activations of
// the last unit resolve to exactly one winner inside the database.
type InventoryRepository struct {
	db *bun.DB
}

func NewInventoryRepository(db *bun.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) Credit(ctx context.Context, userID, powerupID string, qty int) error {
	_, err := r.db.NewInsert().
		Model(&inventoryRow{UserID: userID, PowerupID: powerupID, Quantity: qty, UpdatedAt: time.Now()}).
		On("CONFLICT (user_id, powerup_id) DO UPDATE").
		Set("quantity = powerup_inventory.quantity + EXCLUDED.quantity").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (r *InventoryRepository) DecrementIfAvailable(ctx context.Context, userID, powerupID string) error {
	res, err := r.db.NewUpdate().
		Model((*inventoryRow)(nil)).
		Set("quantity = quantity - 1").
		Set("updated_at = ?", time.Now()).
		Where("user_id = ? AND powerup_id = ? AND quantity > 0", userID, powerupID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrInsufficientInventory
	}
	return nil
}

func (r *InventoryRepository) Quantity(ctx context.Context, userID, powerupID string) (int, error) {
	row := new(inventoryRow)
	err := r.db.NewSelect().Model(row).
		Where("user_id = ? AND powerup_id = ?", userID, powerupID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Quantity, nil
}

// ActivationRepository is the append-only activation log.
type ActivationRepository struct {
	db *bun.DB
}

func NewActivationRepository(db *bun.DB) *ActivationRepository {
	return &ActivationRepository{db: db}
}

func (r *ActivationRepository) Append(ctx context.Context, a domain.PowerupActivation) error {
	_, err := r.db.NewInsert().Model(&activationRow{
		ID:              a.ID,
		SessionID:       a.SessionID,
		PowerupID:       a.PowerupID,
		RemainingTimeMS: a.RemainingTime.Milliseconds(),
		ActivatedAt:     a.ActivatedAt,
	}).Exec(ctx)
	return err
}

func (r *ActivationRepository) SessionUsage(ctx context.Context, sessionID, powerupID string) (int, time.Time, error) {
	var rows []activationRow
	err := r.db.NewSelect().Model(&rows).
		Where("session_id = ? AND powerup_id = ?", sessionID, powerupID).
		Scan(ctx)
	if err != nil {
		return 0, time.Time{}, err
	}
	var last time.Time
	for _, row := range rows {
		if row.ActivatedAt.After(last) {
			last = row.ActivatedAt
		}
	}
	return len(rows), last, nil
}

// PurchaseRepository records purchase history.
type PurchaseRepository struct {
	db *bun.DB
}

func NewPurchaseRepository(db *bun.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) Append(ctx context.Context, p domain.PowerupPurchase) error {
	_, err := r.db.NewInsert().Model(&purchaseRow{
		ID:          p.ID,
		UserID:      p.UserID,
		PowerupID:   p.PowerupID,
		Quantity:    p.Quantity,
		UnitCost:    p.UnitCost,
		TotalCost:   p.TotalCost,
		PurchasedAt: p.PurchasedAt,
	}).Exec(ctx)
	return err
}
