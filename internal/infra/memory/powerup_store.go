package memory

import (
	"context"
	"sync"
	"time"

	"quickfire-quiz-service/internal/domain"
)

type inventoryKey struct {
	userID    string
	powerupID string
}

// InventoryStore holds per-(user, powerup) quantities. DecrementIfAvailable
// runs under the store lock so concurrent spends of the same entry never
// drive the quantity negative.
type InventoryStore struct {
	mu      sync.Mutex
	entries map[inventoryKey]domain.InventoryEntry
	clock   func() time.Time
}

func NewInventoryStore() *InventoryStore {
	return &InventoryStore{
		entries: make(map[inventoryKey]domain.InventoryEntry),
		clock:   time.Now,
	}
}

func (s *InventoryStore) Credit(ctx context.Context, userID, powerupID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := inventoryKey{userID, powerupID}
	entry := s.entries[key]
	entry.UserID = userID
	entry.PowerupID = powerupID
	entry.Quantity += qty
	entry.UpdatedAt = s.clock()
	s.entries[key] = entry
	return nil
}

func (s *InventoryStore) DecrementIfAvailable(ctx context.Context, userID, powerupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := inventoryKey{userID, powerupID}
	entry, ok := s.entries[key]
	if !ok || entry.Quantity <= 0 {
		return domain.ErrInsufficientInventory
	}
	entry.Quantity--
	entry.UpdatedAt = s.clock()
	s.entries[key] = entry
	return nil
}

func (s *InventoryStore) Quantity(ctx context.Context, userID, powerupID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[inventoryKey{userID, powerupID}].Quantity, nil
}

// ActivationStore is the append-only powerup usage log.
type ActivationStore struct {
	mu        sync.RWMutex
	bySession map[string][]domain.PowerupActivation
}

func NewActivationStore() *ActivationStore {
	return &ActivationStore{bySession: make(map[string][]domain.PowerupActivation)}
}

func (s *ActivationStore) Append(ctx context.Context, a domain.PowerupActivation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySession[a.SessionID] = append(s.bySession[a.SessionID], a)
	return nil
}

func (s *ActivationStore) SessionUsage(ctx context.Context, sessionID, powerupID string) (int, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int
	var last time.Time
	for _, a := range s.bySession[sessionID] {
		if a.PowerupID != powerupID {
			continue
		}
		count++
		if a.ActivatedAt.After(last) {
			last = a.ActivatedAt
		}
	}
	return count, last, nil
}

// PurchaseStore records purchase history per user.
type PurchaseStore struct {
	mu     sync.RWMutex
	byUser map[string][]domain.PowerupPurchase
}

func NewPurchaseStore() *PurchaseStore {
	return &PurchaseStore{byUser: make(map[string][]domain.PowerupPurchase)}
}

func (s *PurchaseStore) Append(ctx context.Context, p domain.PowerupPurchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[p.UserID] = append(s.byUser[p.UserID], p)
	return nil
}

func (s *PurchaseStore) ByUser(userID string) []domain.PowerupPurchase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.byUser[userID]
	out := make([]domain.PowerupPurchase, len(stored))
	copy(out, stored)
	return out
}
