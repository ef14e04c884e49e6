package alerts

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

// ActiveStore holds the current alert set. Every write replaces it wholesale.
type ActiveStore interface {
	ReplaceActive(ctx context.Context, alerts []domain.Alert) error
	ListActive(ctx context.Context) ([]domain.Alert, error)
}

// HistoryStore is the append-only log of every alert ever raised.
type HistoryStore interface {
	AppendHistory(ctx context.Context, alerts []domain.Alert) error
	ListHistory(ctx context.Context, filter domain.AlertHistoryFilter) ([]domain.Alert, error)
}

// Transactor makes the history append and the active replacement of one
// evaluation visible together or not at all. fn receives stores bound to the
// transaction; returning an error discards both writes.
type Transactor interface {
	InTx(ctx context.Context, fn func(active ActiveStore, history HistoryStore) error) error
}

// ErrNotTransactional is returned by Run when neither store implements Transactor.
var ErrNotTransactional = errors.New("alert stores cannot commit atomically")

// MemoryActiveStore is an in-process ActiveStore.
type MemoryActiveStore struct {
	mu     sync.RWMutex
	alerts []domain.Alert
}

func NewMemoryActiveStore() *MemoryActiveStore {
	return &MemoryActiveStore{}
}

func (s *MemoryActiveStore) ReplaceActive(_ context.Context, alerts []domain.Alert) error {
	cp := make([]domain.Alert, len(alerts))
	copy(cp, alerts)

	s.mu.Lock()
	s.alerts = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryActiveStore) ListActive(_ context.Context) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out, nil
}

// MemoryHistoryStore is an in-process HistoryStore.
type MemoryHistoryStore struct {
	mu     sync.RWMutex
	alerts []domain.Alert
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{}
}

func (s *MemoryHistoryStore) AppendHistory(_ context.Context, alerts []domain.Alert) error {
	s.mu.Lock()
	s.alerts = append(s.alerts, alerts...)
	s.mu.Unlock()
	return nil
}

// ListHistory returns matching alerts, newest first.
func (s *MemoryHistoryStore) ListHistory(_ context.Context, filter domain.AlertHistoryFilter) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vendors := make(map[string]bool, len(filter.Vendors))
	for _, v := range filter.Vendors {
		vendors[v] = true
	}

	out := make([]domain.Alert, 0, len(s.alerts))
	for i := len(s.alerts) - 1; i >= 0; i-- {
		a := s.alerts[i]
		if len(vendors) > 0 && !vendors[a.Vendor] {
			continue
		}
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.Priority != "" && a.Priority != filter.Priority {
			continue
		}
		if filter.Since != nil && a.Timestamp.Before(*filter.Since) {
			continue
		}
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Len returns the number of stored history entries.
func (s *MemoryHistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// MemoryStore pairs an active and a history store in process and commits
// both through InTx.
type MemoryStore struct {
	mu      sync.Mutex
	active  *MemoryActiveStore
	history *MemoryHistoryStore
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		active:  NewMemoryActiveStore(),
		history: NewMemoryHistoryStore(),
	}
}

func (s *MemoryStore) ReplaceActive(ctx context.Context, alerts []domain.Alert) error {
	return s.InTx(ctx, func(active ActiveStore, _ HistoryStore) error {
		return active.ReplaceActive(ctx, alerts)
	})
}

func (s *MemoryStore) ListActive(ctx context.Context) ([]domain.Alert, error) {
	return s.active.ListActive(ctx)
}

func (s *MemoryStore) AppendHistory(ctx context.Context, alerts []domain.Alert) error {
	return s.InTx(ctx, func(_ ActiveStore, history HistoryStore) error {
		return history.AppendHistory(ctx, alerts)
	})
}

func (s *MemoryStore) ListHistory(ctx context.Context, filter domain.AlertHistoryFilter) ([]domain.Alert, error) {
	return s.history.ListHistory(ctx, filter)
}

// InTx stages the writes of fn and applies them only when fn succeeds.
func (s *MemoryStore) InTx(ctx context.Context, fn func(active ActiveStore, history HistoryStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.active.ListActive(ctx)
	if err != nil {
		return err
	}
	stagedActive := &MemoryActiveStore{alerts: current}
	stagedHistory := &stagedHistory{base: s.history, pending: NewMemoryHistoryStore()}

	if err := fn(stagedActive, stagedHistory); err != nil {
		return err
	}

	s.active.mu.Lock()
	s.active.alerts = stagedActive.alerts
	s.active.mu.Unlock()

	stagedHistory.pending.mu.RLock()
	pending := stagedHistory.pending.alerts
	stagedHistory.pending.mu.RUnlock()
	return s.history.AppendHistory(ctx, pending)
}

// Len returns the number of committed history entries.
func (s *MemoryStore) Len() int {
	return s.history.Len()
}

// stagedHistory collects appends inside a transaction. Reads see the
// committed entries only.
type stagedHistory struct {
	base    *MemoryHistoryStore
	pending *MemoryHistoryStore
}

func (h *stagedHistory) AppendHistory(ctx context.Context, alerts []domain.Alert) error {
	return h.pending.AppendHistory(ctx, alerts)
}

func (h *stagedHistory) ListHistory(ctx context.Context, filter domain.AlertHistoryFilter) ([]domain.Alert, error) {
	return h.base.ListHistory(ctx, filter)
}
