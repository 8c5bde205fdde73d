package app

import (
	"context"
	"log"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"quickfire-quiz-service/internal/config"
	"quickfire-quiz-service/internal/domain"
)

// PowerupService owns the catalog, the purchase economy and the
// concurrency-critical activation path.
type PowerupService struct {
	catalog     map[string]domain.PowerupDefinition
	discounts   []config.DiscountTier // sorted by MinQuantity descending
	inventory   InventoryRepository
	activations ActivationRepository
	purchases   PurchaseRepository
	stats       StatsRepository
	now         func() time.Time
}

func NewPowerupService(
	cfg config.Powerups,
	inventory InventoryRepository,
	activations ActivationRepository,
	purchases PurchaseRepository,
	stats StatsRepository,
) (*PowerupService, error) {
	catalog, err := BuildCatalog(cfg)
	if err != nil {
		return nil, err
	}
	discounts := append([]config.DiscountTier(nil), cfg.Discounts...)
	sort.Slice(discounts, func(i, j int) bool { return discounts[i].MinQuantity > discounts[j].MinQuantity })
	return &PowerupService{
		catalog:     catalog,
		discounts:   discounts,
		inventory:   inventory,
		activations: activations,
		purchases:   purchases,
		stats:       stats,
		now:         time.Now,
	}, nil
}

// WithClock is test-only for deterministic timestamps.
func (s *PowerupService) WithClock(now func() time.Time) *PowerupService {
	s.now = now
	return s
}

// Definition looks up a catalog entry.
func (s *PowerupService) Definition(id string) (domain.PowerupDefinition, error) {
	def, ok := s.catalog[id]
	if !ok {
		return domain.PowerupDefinition{}, domain.ErrPowerupNotFound
	}
	return def, nil
}

// Catalog returns all definitions in a stable order.
func (s *PowerupService) Catalog() []domain.PowerupDefinition {
	defs := make([]domain.PowerupDefinition, 0, len(s.catalog))
	for _, def := range s.catalog {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// PurchaseCost applies the bulk discount tier for the quantity, floored.
func (s *PowerupService) PurchaseCost(def domain.PowerupDefinition, qty int) int {
	gross := def.Cost * qty
	for _, tier := range s.discounts {
		if qty >= tier.MinQuantity {
			return int(math.Floor(float64(gross) * (1 - tier.Discount)))
		}
	}
	return gross
}

// Purchase debits available points and credits inventory. The debit is
// atomic against concurrent purchases and completions through the stats
// repository's Apply; a credit failure refunds the debit so the two
// sides always move together.
func (s *PowerupService) Purchase(ctx context.Context, userID, powerupID string, qty int) (domain.PowerupPurchase, error) {
	def, err := s.Definition(powerupID)
	if err != nil {
		return domain.PowerupPurchase{}, err
	}
	if qty < 1 {
		qty = 1
	}
	total := s.PurchaseCost(def, qty)

	if _, err := s.stats.Apply(ctx, userID, func(st *domain.UserQuizStats) error {
		if st.AvailablePoints < total {
			return domain.ErrInsufficientPoints
		}
		st.AvailablePoints -= total
		st.SpentPoints += total
		return nil
	}); err != nil {
		return domain.PowerupPurchase{}, err
	}

	if err := s.inventory.Credit(ctx, userID, powerupID, qty); err != nil {
		// the debit already committed; put the points back
		if _, refundErr := s.stats.Apply(ctx, userID, func(st *domain.UserQuizStats) error {
			st.AvailablePoints += total
			st.SpentPoints -= total
			return nil
		}); refundErr != nil {
			log.Printf("refund %d points to %s after failed credit: %v", total, userID, refundErr)
		}
		return domain.PowerupPurchase{}, err
	}

	purchase := domain.PowerupPurchase{
		ID:          uuid.NewString(),
		UserID:      userID,
		PowerupID:   powerupID,
		Quantity:    qty,
		UnitCost:    def.Cost,
		TotalCost:   total,
		PurchasedAt: s.now(),
	}
	if err := s.purchases.Append(ctx, purchase); err != nil {
		// the transfer is complete; history is best effort
		log.Printf("record purchase %s for %s: %v", purchase.ID, userID, err)
	}
	return purchase, nil
}

// Activate spends one inventory unit for use in a session. Checks run
// in order: per-session cap, cooldown, then the atomic inventory
// decrement. Cap and cooldown are per-session state and the session
// manager serializes calls per session, so the only cross-session race
// is the inventory unit itself, which DecrementIfAvailable resolves to
// exactly one winner.
func (s *PowerupService) Activate(ctx context.Context, sessionID, userID string, def domain.PowerupDefinition, remaining time.Duration) (domain.PowerupActivation, error) {
	now := s.now()

	used, last, err := s.activations.SessionUsage(ctx, sessionID, def.ID)
	if err != nil {
		return domain.PowerupActivation{}, err
	}
	if def.MaxPerSession > 0 && used >= def.MaxPerSession {
		powerupActivations.WithLabelValues("max_uses").Inc()
		return domain.PowerupActivation{}, domain.ErrMaxUsesReached
	}
	if def.Cooldown > 0 && !last.IsZero() {
		if elapsed := now.Sub(last); elapsed < def.Cooldown {
			powerupActivations.WithLabelValues("cooldown").Inc()
			return domain.PowerupActivation{}, &domain.CooldownError{PowerupID: def.ID, Remaining: def.Cooldown - elapsed}
		}
	}

	if err := s.inventory.DecrementIfAvailable(ctx, userID, def.ID); err != nil {
		powerupActivations.WithLabelValues("insufficient").Inc()
		return domain.PowerupActivation{}, err
	}

	act := domain.PowerupActivation{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		PowerupID:     def.ID,
		RemainingTime: remaining,
		ActivatedAt:   now,
	}
	if err := s.activations.Append(ctx, act); err != nil {
		// the unit is already spent; put it back before reporting failure
		if creditErr := s.inventory.Credit(ctx, userID, def.ID, 1); creditErr != nil {
			log.Printf("restore %s unit for %s after failed activation record: %v", def.ID, userID, creditErr)
		}
		return domain.PowerupActivation{}, err
	}
	powerupActivations.WithLabelValues("success").Inc()
	return act, nil
}

// Quantity reports the user's remaining units for a powerup.
func (s *PowerupService) Quantity(ctx context.Context, userID, powerupID string) (int, error) {
	return s.inventory.Quantity(ctx, userID, powerupID)
}
