package entitlement

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore backs all four store interfaces with process memory. It mirrors
// the persistence semantics of the PostgreSQL stores — idempotent purchase
// inserts and timestamp-guarded subscription upserts — so scenario tests
// exercise the same behavior the production stores provide.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]User
	products      map[uuid.UUID]Product
	purchases     []Purchase
	subscriptions map[string]Subscription
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[uuid.UUID]User),
		products:      make(map[uuid.UUID]Product),
		subscriptions: make(map[string]Subscription),
	}
}

// Users returns the UserStore view of the shared state.
func (m *MemoryStore) Users() UserStore { return memUserStore{m} }

// Products returns the ProductStore view of the shared state.
func (m *MemoryStore) Products() ProductStore { return memProductStore{m} }

// Purchases returns the PurchaseStore view of the shared state.
func (m *MemoryStore) Purchases() PurchaseStore { return memPurchaseStore{m} }

// Subscriptions returns the SubscriptionStore view of the shared state.
func (m *MemoryStore) Subscriptions() SubscriptionStore { return memSubscriptionStore{m} }

// AddUser seeds a user record.
func (m *MemoryStore) AddUser(user User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

// AddProduct seeds a catalog record.
func (m *MemoryStore) AddProduct(product Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = product
}

// PurchaseFacts returns a snapshot of all recorded purchase facts.
func (m *MemoryStore) PurchaseFacts() []Purchase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Purchase, len(m.purchases))
	copy(out, m.purchases)
	return out
}

type memUserStore struct{ m *MemoryStore }

func (s memUserStore) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	user, ok := s.m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (s memUserStore) GetByCustomerID(ctx context.Context, customerID string) (*User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, user := range s.m.users {
		if user.CustomerID != nil && *user.CustomerID == customerID {
			return &user, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s memUserStore) SetCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	user, ok := s.m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.CustomerID = &customerID
	s.m.users[id] = user
	return nil
}

func (s memUserStore) SetSubscriptionStatus(ctx context.Context, id uuid.UUID, status SubscriptionStatus) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	user, ok := s.m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.SubscriptionStatus = &status
	s.m.users[id] = user
	return nil
}

type memProductStore struct{ m *MemoryStore }

func (s memProductStore) Get(ctx context.Context, id uuid.UUID) (*Product, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	product, ok := s.m.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &product, nil
}

type memPurchaseStore struct{ m *MemoryStore }

func (s memPurchaseStore) Record(ctx context.Context, purchase Purchase) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.purchases {
		if existing.UserID == purchase.UserID &&
			existing.ProductID == purchase.ProductID &&
			existing.ProviderRef == purchase.ProviderRef {
			return false, nil
		}
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	s.m.purchases = append(s.m.purchases, purchase)
	return true, nil
}

func (s memPurchaseStore) HasPaid(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, purchase := range s.m.purchases {
		if purchase.UserID == userID && purchase.ProductID == productID && purchase.Status == PurchasePaid {
			return true, nil
		}
	}
	return false, nil
}

func (s memPurchaseStore) SetStatusByProviderRef(ctx context.Context, providerRef string, status PurchaseStatus) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	found := false
	for i := range s.m.purchases {
		if s.m.purchases[i].ProviderRef == providerRef {
			s.m.purchases[i].Status = status
			found = true
		}
	}
	if !found {
		return ErrPurchaseNotFound
	}
	return nil
}

type memSubscriptionStore struct{ m *MemoryStore }

func (s memSubscriptionStore) Upsert(ctx context.Context, sub Subscription) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.m.subscriptions[sub.ID]; ok {
		if existing.EventAt.After(sub.EventAt) {
			return false, nil
		}
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	sub.Metadata = maps.Clone(sub.Metadata)
	s.m.subscriptions[sub.ID] = sub
	return true, nil
}

func (s memSubscriptionStore) Get(ctx context.Context, id string) (*Subscription, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	sub, ok := s.m.subscriptions[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	sub.Metadata = maps.Clone(sub.Metadata)
	return &sub, nil
}

func (s memSubscriptionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Subscription, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var subs []Subscription
	for _, sub := range s.m.subscriptions {
		if sub.UserID == userID {
			sub.Metadata = maps.Clone(sub.Metadata)
			subs = append(subs, sub)
		}
	}
	return subs, nil
}
