package itemstore

import (
	"context"
	"sort"
	"sync"
)

// Memory keeps slots and reservations in process. It backs tests and ITEMSTORE=memory.
type Memory struct {
	mu           sync.RWMutex
	slots        map[string]Slot
	reservations map[string]Reservation
}

func NewMemory() *Memory {
	return &Memory{
		slots:        map[string]Slot{},
		reservations: map[string]Reservation{},
	}
}

func (m *Memory) ListSlots(_ context.Context, owner string) ([]Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Slot
	for _, s := range m.slots {
		if s.Owner == owner {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *Memory) InsertSlot(_ context.Context, slot Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot.ID] = slot
	return nil
}

func (m *Memory) DeleteSlot(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok || s.Owner != owner {
		return ErrNotFound
	}
	delete(m.slots, id)
	return nil
}

func (m *Memory) ListReservations(_ context.Context, participant string) ([]Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Reservation
	for _, r := range m.reservations {
		if r.Participant == participant {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *Memory) InsertReservations(_ context.Context, items []Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range items {
		m.reservations[r.ID] = r
	}
	return nil
}

func (m *Memory) DeleteReservations(_ context.Context, creator, slotID string) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []Reservation
	for id, r := range m.reservations {
		if r.SlotID == slotID && r.Creator == creator {
			removed = append(removed, r)
			delete(m.reservations, id)
		}
	}
	if len(removed) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Participant < removed[j].Participant })
	return removed, nil
}
