// Package memory provides an in-memory LedgerStore for tests and dev.
package memory

import (
	"context"
	"sync"

	"github.com/bandroom/studio-scheduler/schedule"
)

// =============================================================================
// MEMORY LEDGER STORE
// =============================================================================

// Ledgers is an in-memory schedule.LedgerStore. A single mutex stands
// in for the per-document atomicity a real store provides, which makes
// it honest enough for concurrency tests against the engine.
type Ledgers struct {
	mu      sync.RWMutex
	ledgers map[string][]schedule.SlotBooking // day string -> bookings
}

// NewLedgers creates an empty in-memory ledger store.
func NewLedgers() *Ledgers {
	return &Ledgers{ledgers: make(map[string][]schedule.SlotBooking)}
}

func (m *Ledgers) GetLedger(_ context.Context, day schedule.DayKey) (*schedule.DayLedger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slots, ok := m.ledgers[day.String()]
	if !ok {
		return nil, nil
	}
	return &schedule.DayLedger{Day: day, Slots: cloneSlots(slots)}, nil
}

// AppendSlots checks and inserts under one lock hold: all-or-nothing.
func (m *Ledgers) AppendSlots(_ context.Context, day schedule.DayKey, slots []schedule.SlotBooking) (*schedule.DayLedger, []schedule.Hour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := day.String()
	existing := m.ledgers[key]

	occupied := make(map[schedule.Hour]bool, len(existing))
	for _, s := range existing {
		occupied[s.Hour] = true
	}

	var conflicts []schedule.Hour
	for _, s := range slots {
		if occupied[s.Hour] {
			conflicts = append(conflicts, s.Hour)
		}
	}
	if len(conflicts) > 0 {
		return nil, conflicts, nil
	}

	m.ledgers[key] = append(existing, slots...)
	return &schedule.DayLedger{Day: day, Slots: cloneSlots(m.ledgers[key])}, nil, nil
}

// RemoveSlots deletes matching bookings, evaluating the ownership scope
// inside the same lock hold as the deletion.
func (m *Ledgers) RemoveSlots(_ context.Context, day schedule.DayKey, hours []schedule.Hour, owner schedule.AccountID, adminOverride bool) (schedule.RemovalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := day.String()
	existing, ok := m.ledgers[key]
	if !ok {
		return schedule.RemovalResult{LedgerDeleted: true}, nil
	}

	requested := make(map[schedule.Hour]bool, len(hours))
	for _, h := range hours {
		requested[h] = true
	}

	var removed, kept []schedule.SlotBooking
	for _, s := range existing {
		if requested[s.Hour] && (adminOverride || s.AccountID == owner) {
			removed = append(removed, s)
		} else {
			kept = append(kept, s)
		}
	}

	if len(kept) == 0 {
		delete(m.ledgers, key)
		return schedule.RemovalResult{Removed: removed, LedgerDeleted: true}, nil
	}

	m.ledgers[key] = kept
	return schedule.RemovalResult{
		Removed: removed,
		Ledger:  &schedule.DayLedger{Day: day, Slots: cloneSlots(kept)},
	}, nil
}

func (m *Ledgers) DaysWithBookings(_ context.Context, from, to schedule.DayKey) ([]schedule.DayKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var days []schedule.DayKey
	for key, slots := range m.ledgers {
		if len(slots) == 0 {
			continue
		}
		day, err := schedule.ParseDayKey(key)
		if err != nil {
			continue
		}
		if day.Time.Before(from.Time) || day.Time.After(to.Time) {
			continue
		}
		days = append(days, day)
	}

	// Ascending by date; the map iteration order is random.
	for i := 1; i < len(days); i++ {
		for j := i; j > 0 && days[j].Time.Before(days[j-1].Time); j-- {
			days[j], days[j-1] = days[j-1], days[j]
		}
	}
	return days, nil
}

func cloneSlots(slots []schedule.SlotBooking) []schedule.SlotBooking {
	out := make([]schedule.SlotBooking, len(slots))
	copy(out, slots)
	return out
}
