// Package memstore keeps order records in process memory behind a
// synchronized interface. The state machine does not know it is talking
// to a map; a persistent repository can replace this without touching the
// orchestrator.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/ordersaga/orderflow/internal/order/application"
	"github.com/ordersaga/orderflow/internal/order/domain"
)

type Store struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func New() *Store {
	return &Store{orders: make(map[string]domain.Order)}
}

func (s *Store) Save(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return nil
}

func (s *Store) Get(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, application.ErrOrderNotFound
	}
	return o, nil
}

func (s *Store) List(_ context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
