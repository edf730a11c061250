package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fixmate/repair-be/internal/repair"
	"github.com/fixmate/repair-be/internal/repair/domain"
)

// Memory is an in-memory repair store with the same conditional-update
// semantics as Postgres: each mutation checks its guard and applies
// under one lock, so concurrent claims still produce a single winner.
// It backs tests and broker-less local runs.
type Memory struct {
	mu      sync.Mutex
	repairs map[string]*domain.Repair
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		repairs: make(map[string]*domain.Repair),
		now:     time.Now,
	}
}

// Create stores a new repair.
func (m *Memory) Create(_ context.Context, r *domain.Repair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repairs[r.ID] = r.Clone()
	return nil
}

// GetByID returns a copy of the repair.
func (m *Memory) GetByID(_ context.Context, id string) (*domain.Repair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.repairs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.Clone(), nil
}

// List returns up to PageSize+1 repairs matching the filter, newest
// first, so the caller can detect whether more results exist.
func (m *Memory) List(_ context.Context, filter repair.ListFilter) ([]domain.Repair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Repair
	for _, r := range m.repairs {
		if !matches(r, filter) {
			continue
		}
		out = append(out, *r.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if filter.Cursor != nil {
		trimmed := out[:0]
		for _, r := range out {
			if r.CreatedAt.Before(filter.Cursor.CreatedAt) ||
				(r.CreatedAt.Equal(filter.Cursor.CreatedAt) && r.ID < filter.Cursor.ID) {
				trimmed = append(trimmed, r)
			}
		}
		out = trimmed
	}

	if filter.PageSize > 0 && len(out) > filter.PageSize+1 {
		out = out[:filter.PageSize+1]
	}
	return out, nil
}

func matches(r *domain.Repair, filter repair.ListFilter) bool {
	if filter.CustomerID != "" && r.CustomerID != filter.CustomerID {
		return false
	}
	if filter.TechnicianID != "" {
		mine := r.TechnicianID == filter.TechnicianID
		pending := filter.IncludePending && r.Status == domain.StatusPending
		if !mine && !pending {
			return false
		}
	}
	if filter.Status != "" && r.Status != filter.Status {
		return false
	}
	return true
}

// Claim implements the atomic first-wins assignment.
func (m *Memory) Claim(_ context.Context, id, technicianID string) (*domain.Repair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.repairs[id]
	if !ok || r.Status != domain.StatusPending || r.TechnicianID != "" {
		return nil, domain.ErrAlreadyClaimed
	}

	r.TechnicianID = technicianID
	r.Status = domain.StatusAccepted
	m.touch(r)
	return r.Clone(), nil
}

// UpdateStatus advances the status iff the guard holds.
func (m *Memory) UpdateStatus(_ context.Context, id, technicianID string, from, to domain.Status) (*domain.Repair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.repairs[id]
	if !ok || r.Status != from || r.TechnicianID != technicianID {
		return nil, domain.ErrInvalidTransition
	}

	r.Status = to
	m.touch(r)
	return r.Clone(), nil
}

// SaveSteps replaces the step snapshot iff the version matches.
func (m *Memory) SaveSteps(_ context.Context, id string, version int, steps []domain.Step) (*domain.Repair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.repairs[id]
	if !ok || r.Version != version {
		return nil, domain.ErrVersionConflict
	}

	cp := make([]domain.Step, len(steps))
	copy(cp, steps)
	r.Steps = cp
	m.touch(r)
	return r.Clone(), nil
}

// SetHandover sets the party's confirmation flag iff not terminal.
func (m *Memory) SetHandover(_ context.Context, id string, party domain.Role) (*domain.Repair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.repairs[id]
	if !ok || r.Status.Terminal() {
		return nil, domain.ErrInvalidTransition
	}

	switch party {
	case domain.RoleCustomer:
		r.CustomerConfirmedHandover = true
	case domain.RoleTechnician:
		r.TechnicianConfirmedHandover = true
	default:
		return nil, domain.ErrForbidden
	}
	m.touch(r)
	return r.Clone(), nil
}

// RecordPayment writes the settlement fields iff the guard holds.
func (m *Memory) RecordPayment(_ context.Context, id, customerID string, rec repair.PaymentRecord) (*domain.Repair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.repairs[id]
	if !ok || r.CustomerID != customerID ||
		r.Status != domain.StatusAwaitingPayment ||
		r.PaymentStatus != domain.PaymentStatusPending {
		return nil, domain.ErrInvalidTransition
	}

	r.PaymentMethod = rec.Method
	r.Amount = rec.Amount
	r.PaymentStatus = rec.PaymentStatus
	r.Status = rec.Status
	if rec.PaidAt != nil {
		ts := *rec.PaidAt
		r.PaidAt = &ts
	}
	m.touch(r)
	return r.Clone(), nil
}

// ConfirmCashPayment settles a pending cash payment iff the guard holds.
func (m *Memory) ConfirmCashPayment(_ context.Context, id, technicianID string, paidAt time.Time) (*domain.Repair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.repairs[id]
	if !ok || r.TechnicianID != technicianID ||
		r.PaymentMethod != domain.PaymentMethodCOD ||
		r.PaymentStatus != domain.PaymentStatusAwaitingPayment {
		return nil, domain.ErrInvalidTransition
	}

	r.PaymentStatus = domain.PaymentStatusPaid
	r.Status = domain.StatusPaid
	r.PaidAt = &paidAt
	m.touch(r)
	return r.Clone(), nil
}

// SetRating records the rating iff the repair is settled.
func (m *Memory) SetRating(_ context.Context, id, customerID string, rating int, note string) (*domain.Repair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.repairs[id]
	if !ok || r.CustomerID != customerID ||
		(r.Status != domain.StatusPaid && r.Status != domain.StatusCompleted) {
		return nil, domain.ErrInvalidTransition
	}

	r.Rating = rating
	r.RatingNote = note
	m.touch(r)
	return r.Clone(), nil
}

func (m *Memory) touch(r *domain.Repair) {
	r.Version++
	r.UpdatedAt = m.now()
}
