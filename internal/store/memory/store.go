// Package memory is an in-process implementation of every store interface.
// One mutex guards all state, which makes InsertIfFree trivially atomic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
	"github.com/Rauan19/agendoai-sub000/internal/events"
	"github.com/Rauan19/agendoai-sub000/internal/store"
)

type dayKey struct {
	providerID string
	date       string
}

func keyOf(providerID string, date time.Time) dayKey {
	return dayKey{providerID: providerID, date: domain.FormatDate(date)}
}

type Store struct {
	mu sync.RWMutex

	providers    map[string]domain.Provider
	services     map[string]domain.Service
	weekly       map[string]map[int16]domain.WeeklyRule
	overrides    map[dayKey]domain.DateOverride
	blocks       map[dayKey][]domain.BlockedInterval
	appointments map[uuid.UUID]domain.Appointment
	outbox       []events.Event
}

var (
	_ store.ScheduleStore = (*Store)(nil)
	_ store.BlockStore    = (*Store)(nil)
	_ store.BookingLedger = (*Store)(nil)
	_ store.Catalog       = (*Store)(nil)
	_ events.Outbox       = (*Store)(nil)
)

func New() *Store {
	return &Store{
		providers:    map[string]domain.Provider{},
		services:     map[string]domain.Service{},
		weekly:       map[string]map[int16]domain.WeeklyRule{},
		overrides:    map[dayKey]domain.DateOverride{},
		blocks:       map[dayKey][]domain.BlockedInterval{},
		appointments: map[uuid.UUID]domain.Appointment{},
	}
}

func (s *Store) PutProvider(p domain.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.ID] = p
}

func (s *Store) PutService(svc domain.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

func (s *Store) GetProvider(ctx context.Context, id string) (domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return domain.Provider{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetService(ctx context.Context, id string) (domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	if !ok {
		return domain.Service{}, store.ErrNotFound
	}
	return svc, nil
}

func (s *Store) GetEffectiveDayWindow(ctx context.Context, providerID string, date time.Time) (domain.Window, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.overrides[keyOf(providerID, date)]; ok {
		w, open := domain.ResolveWindow(&o, nil)
		return w, open, nil
	}
	if r, ok := s.weekly[providerID][domain.DayOfWeek(date)]; ok {
		w, open := domain.ResolveWindow(nil, &r)
		return w, open, nil
	}
	return domain.Window{}, false, nil
}

func (s *Store) ListWeeklyRules(ctx context.Context, providerID string) ([]domain.WeeklyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listWeeklyLocked(providerID), nil
}

func (s *Store) ReplaceWeeklyRules(ctx context.Context, providerID string, rules []domain.WeeklyRule) ([]domain.WeeklyRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	prev := s.weekly[providerID]
	next := make(map[int16]domain.WeeklyRule, len(rules))
	for _, r := range rules {
		r.ProviderID = providerID
		if old, ok := prev[r.DayOfWeek]; ok {
			r.ID = old.ID
			r.CreatedAt = old.CreatedAt
		} else {
			r.ID = uuid.New()
			r.CreatedAt = now
		}
		r.UpdatedAt = now
		next[r.DayOfWeek] = r
	}
	s.weekly[providerID] = next
	return s.listWeeklyLocked(providerID), nil
}

func (s *Store) listWeeklyLocked(providerID string) []domain.WeeklyRule {
	out := make([]domain.WeeklyRule, 0, len(s.weekly[providerID]))
	for _, r := range s.weekly[providerID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out
}

func (s *Store) UpsertOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	k := keyOf(o.ProviderID, o.Date)
	if old, ok := s.overrides[k]; ok {
		o.ID = old.ID
		o.CreatedAt = old.CreatedAt
	} else {
		o.ID = uuid.New()
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	s.overrides[k] = o
	return o, nil
}

func (s *Store) DeleteOverride(ctx context.Context, providerID string, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyOf(providerID, date)
	if _, ok := s.overrides[k]; !ok {
		return store.ErrNotFound
	}
	delete(s.overrides, k)
	return nil
}

func (s *Store) GetBlocks(ctx context.Context, providerID string, date time.Time) ([]domain.BlockedInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocksLocked(providerID, date), nil
}

func (s *Store) blocksLocked(providerID string, date time.Time) []domain.BlockedInterval {
	src := s.blocks[keyOf(providerID, date)]
	out := make([]domain.BlockedInterval, len(src))
	copy(out, src)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartMinute != out[j].StartMinute {
			return out[i].StartMinute < out[j].StartMinute
		}
		return out[i].EndMinute < out[j].EndMinute
	})
	return out
}

func (s *Store) CreateBlock(ctx context.Context, b domain.BlockedInterval) (domain.BlockedInterval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledgerTx{s: s}.InsertBlock(ctx, b)
}

func (s *Store) DeleteBlock(ctx context.Context, providerID string, blockID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, list := range s.blocks {
		if k.providerID != providerID {
			continue
		}
		for i, b := range list {
			if b.ID == blockID {
				s.blocks[k] = append(list[:i:i], list[i+1:]...)
				return nil
			}
		}
	}
	return store.ErrNotFound
}

func (s *Store) GetOccupiedIntervals(ctx context.Context, providerID string, date time.Time) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dayLocked(providerID, date, true), nil
}

func (s *Store) ListDay(ctx context.Context, providerID string, date time.Time) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dayLocked(providerID, date, false), nil
}

func (s *Store) dayLocked(providerID string, date time.Time, activeOnly bool) []domain.Appointment {
	day := domain.FormatDate(date)
	var out []domain.Appointment
	for _, a := range s.appointments {
		if a.ProviderID != providerID || domain.FormatDate(a.Date) != day {
			continue
		}
		if activeOnly && !a.Status.Occupies() {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartMinute != out[j].StartMinute {
			return out[i].StartMinute < out[j].StartMinute
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) InsertIfFree(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.InsertIfFree(ctx, ledgerTx{s: s}, appt)
}

func (s *Store) Transition(ctx context.Context, id uuid.UUID, change domain.StatusChange) (domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.ApplyTransition(ctx, ledgerTx{s: s}, id, change)
}

// Drain hands out unpublished events and removes them when fn succeeds.
func (s *Store) Drain(ctx context.Context, limit int, fn func(ctx context.Context, batch []events.Event) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := min(limit, len(s.outbox))
	if n == 0 {
		return nil
	}
	batch := make([]events.Event, n)
	copy(batch, s.outbox[:n])
	if err := fn(ctx, batch); err != nil {
		return err
	}
	s.outbox = s.outbox[n:]
	return nil
}

// ledgerTx operates on Store state; callers hold s.mu for writing.
type ledgerTx struct {
	s *Store
}

var _ store.LedgerTx = ledgerTx{}

func (t ledgerTx) FindAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	a, ok := t.s.appointments[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (t ledgerTx) ListActiveAppointments(ctx context.Context, providerID string, date time.Time) ([]domain.Appointment, error) {
	return t.s.dayLocked(providerID, date, true), nil
}

func (t ledgerTx) ListBlocks(ctx context.Context, providerID string, date time.Time) ([]domain.BlockedInterval, error) {
	return t.s.blocksLocked(providerID, date), nil
}

func (t ledgerTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if appt.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Appointment{}, err
		}
		appt.ID = id
	}
	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	t.s.appointments[appt.ID] = appt
	return appt, nil
}

func (t ledgerTx) UpdateAppointmentStatus(ctx context.Context, appt domain.Appointment) error {
	if _, ok := t.s.appointments[appt.ID]; !ok {
		return store.ErrNotFound
	}
	appt.UpdatedAt = time.Now().UTC()
	t.s.appointments[appt.ID] = appt
	return nil
}

func (t ledgerTx) InsertBlock(ctx context.Context, b domain.BlockedInterval) (domain.BlockedInterval, error) {
	if b.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.BlockedInterval{}, err
		}
		b.ID = id
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	k := keyOf(b.ProviderID, b.Date)
	t.s.blocks[k] = append(t.s.blocks[k], b)
	return b, nil
}

func (t ledgerTx) AppendEvent(ctx context.Context, e events.Event) error {
	t.s.outbox = append(t.s.outbox, e)
	return nil
}
