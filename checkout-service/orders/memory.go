package orders

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a Store that keeps orders in memory. It is used when no
// database is configured (i.e. in localdev) and in tests.
type MemoryStore struct {
	mu       sync.Mutex
	orders   map[int64]Order
	payments map[string]Payment
	now      func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[int64]Order),
		payments: make(map[string]Payment),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, order Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.orders[order.ID]
	if ok && existing.Status == StatusPaid {
		return nil
	}

	order.Status = StatusUnpaid
	order.CreatedAt = now
	order.UpdatedAt = now
	order.PaidAt = nil
	s.orders[order.ID] = order

	return nil
}

func (s *MemoryStore) MarkPaid(_ context.Context, id int64, details PaymentDetails) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[details.SessionID]; ok {
		return false, nil
	}

	now := s.now()
	s.payments[details.SessionID] = Payment{
		SessionID:   details.SessionID,
		OrderID:     id,
		AmountTotal: details.AmountTotal,
		Currency:    details.Currency,
		PaidAt:      now,
	}

	order, ok := s.orders[id]
	if !ok {
		order = Order{ID: id, CreatedAt: now}
	}

	if details.ProductID != 0 {
		order.ProductID = details.ProductID
	}
	order.SessionID = details.SessionID
	order.AmountTotal = details.AmountTotal
	order.Currency = details.Currency
	order.Status = StatusPaid
	order.UpdatedAt = now
	order.PaidAt = &now
	s.orders[id] = order

	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (s *MemoryStore) DeleteStaleUnpaid(_ context.Context, createdBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int
	for id, order := range s.orders {
		if order.Status == StatusUnpaid && order.CreatedAt.Before(createdBefore) {
			delete(s.orders, id)
			deleted++
		}
	}
	return deleted, nil
}
