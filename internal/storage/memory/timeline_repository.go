package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// timelineRepositoryInMemory хранит события в памяти (для разработки/тестов).
type timelineRepositoryInMemory struct {
	store *Store
}

// Timeline возвращает репозиторий истории заказов.
func (s *Store) Timeline() domain.TimelineRepository {
	return &timelineRepositoryInMemory{store: s}
}

// Append добавляет событие вне транзакции.
func (r *timelineRepositoryInMemory) Append(_ context.Context, event domain.TimelineEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	appendTimeline(r.store, event)
	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *timelineRepositoryInMemory) List(_ context.Context, orderID string) ([]domain.TimelineEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	events := r.store.timeline[orderID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

// txTimeline дописывает историю внутри транзакции.
type txTimeline memoryTx

func (w *txTimeline) Append(_ context.Context, event domain.TimelineEvent) error {
	previous := append([]domain.TimelineEvent(nil), w.store.timeline[event.OrderID]...)
	appendTimeline(w.store, event)
	(*memoryTx)(w).onRollback(func() {
		if len(previous) == 0 {
			delete(w.store.timeline, event.OrderID)
			return
		}
		w.store.timeline[event.OrderID] = previous
	})
	return nil
}

func appendTimeline(s *Store, event domain.TimelineEvent) {
	if event.Occurred.IsZero() {
		event.Occurred = s.now()
	}
	events := append(s.timeline[event.OrderID], event)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Occurred.Before(events[j].Occurred)
	})
	s.timeline[event.OrderID] = events
}

var (
	_ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
	_ domain.TimelineWriter     = (*txTimeline)(nil)
)
