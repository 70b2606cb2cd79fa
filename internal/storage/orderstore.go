package storage

import (
	"errors"
	"sync"

	"github.com/example/delivery-dispatch/internal/models"
)

// ErrNotFound is returned when a lookup misses.
var ErrNotFound = errors.New("not found")

// OrderStore defines persistence operations for orders.
type OrderStore interface {
	SaveOrder(o *models.Order) error
	UpdateOrder(o *models.Order) error
	GetOrder(id string) (*models.Order, error)
}

// MerchantDirectory resolves merchants for placement and search.
type MerchantDirectory interface {
	GetMerchant(id string) (*models.Merchant, error)
	ListMerchants() []models.Merchant
}

type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*models.Order)}
}

func (m *MemoryStore) SaveOrder(o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *MemoryStore) UpdateOrder(o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		return ErrNotFound
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *MemoryStore) GetOrder(id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

// cloneOrder copies the order and its slices. Callers mutate the order they
// read back (Apply writes Status and appends History), so the store must
// never hand two goroutines the same pointer.
func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	c.History = append([]models.StatusChange(nil), o.History...)
	return &c
}

type MemoryMerchants struct {
	mu        sync.RWMutex
	merchants map[string]models.Merchant
}

func NewMemoryMerchants() *MemoryMerchants {
	return &MemoryMerchants{merchants: make(map[string]models.Merchant)}
}

func (m *MemoryMerchants) Upsert(mc models.Merchant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merchants[mc.ID] = mc
}

func (m *MemoryMerchants) GetMerchant(id string) (*models.Merchant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mc, ok := m.merchants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &mc, nil
}

func (m *MemoryMerchants) ListMerchants() []models.Merchant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Merchant, 0, len(m.merchants))
	for _, mc := range m.merchants {
		out = append(out, mc)
	}
	return out
}
