package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixmate/repair-be/internal/repair"
	"github.com/fixmate/repair-be/internal/repair/domain"
)

func seedRepair(t *testing.T, m *Memory, id, customerID string, createdAt time.Time) *domain.Repair {
	t.Helper()
	r := &domain.Repair{
		ID:          id,
		CustomerID:  customerID,
		DeviceModel: "iPhone 13",
		IssueID:     "cracked_screen",
		Status:      domain.StatusPending,
		Steps: []domain.Step{
			{StepID: "diagnose", Label: "Diagnose", EstMinutes: 10},
			{StepID: "replace_screen", Label: "Replace screen", EstMinutes: 30},
		},
		PaymentStatus: domain.PaymentStatusPending,
		Version:       1,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	require.NoError(t, m.Create(context.Background(), r))
	return r
}

func TestMemory_GetByID(t *testing.T) {
	m := NewMemory()
	seedRepair(t, m, "r-1", "cust-1", time.Now())

	got, err := m.GetByID(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, "r-1", got.ID)

	// The returned value is a copy.
	got.Status = domain.StatusCompleted
	again, err := m.GetByID(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, again.Status)

	_, err = m.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_Claim(t *testing.T) {
	m := NewMemory()
	seedRepair(t, m, "r-1", "cust-1", time.Now())

	r, err := m.Claim(context.Background(), "r-1", "tech-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, r.Status)
	assert.Equal(t, "tech-1", r.TechnicianID)
	assert.Equal(t, 2, r.Version)

	_, err = m.Claim(context.Background(), "r-1", "tech-2")
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	_, err = m.Claim(context.Background(), "missing", "tech-2")
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

func TestMemory_UpdateStatus(t *testing.T) {
	m := NewMemory()
	seedRepair(t, m, "r-1", "cust-1", time.Now())
	_, err := m.Claim(context.Background(), "r-1", "tech-1")
	require.NoError(t, err)

	r, err := m.UpdateStatus(context.Background(), "r-1", "tech-1", domain.StatusAccepted, domain.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, r.Status)

	// Guard misses: wrong from-status, wrong technician.
	_, err = m.UpdateStatus(context.Background(), "r-1", "tech-1", domain.StatusAccepted, domain.StatusInProgress)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = m.UpdateStatus(context.Background(), "r-1", "tech-2", domain.StatusInProgress, domain.StatusAwaitingPayment)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestMemory_SaveSteps(t *testing.T) {
	m := NewMemory()
	seed := seedRepair(t, m, "r-1", "cust-1", time.Now())

	ts := time.Now()
	steps := seed.CloneSteps()
	steps[0].Completed = true
	steps[0].CompletedAt = &ts

	r, err := m.SaveSteps(context.Background(), "r-1", 1, steps)
	require.NoError(t, err)
	assert.True(t, r.Steps[0].Completed)
	assert.Equal(t, 2, r.Version)

	// Stale version loses.
	_, err = m.SaveSteps(context.Background(), "r-1", 1, steps)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestMemory_SetHandover(t *testing.T) {
	m := NewMemory()
	seedRepair(t, m, "r-1", "cust-1", time.Now())

	r, err := m.SetHandover(context.Background(), "r-1", domain.RoleCustomer)
	require.NoError(t, err)
	assert.True(t, r.CustomerConfirmedHandover)
	assert.False(t, r.TechnicianConfirmedHandover)

	r, err = m.SetHandover(context.Background(), "r-1", domain.RoleTechnician)
	require.NoError(t, err)
	assert.True(t, r.TechnicianConfirmedHandover)

	_, err = m.SetHandover(context.Background(), "r-1", domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestMemory_PaymentFlow(t *testing.T) {
	m := NewMemory()
	seedRepair(t, m, "r-1", "cust-1", time.Now())
	_, err := m.Claim(context.Background(), "r-1", "tech-1")
	require.NoError(t, err)
	_, err = m.UpdateStatus(context.Background(), "r-1", "tech-1", domain.StatusAccepted, domain.StatusInProgress)
	require.NoError(t, err)
	_, err = m.UpdateStatus(context.Background(), "r-1", "tech-1", domain.StatusInProgress, domain.StatusAwaitingPayment)
	require.NoError(t, err)

	// Wrong customer cannot pay.
	_, err = m.RecordPayment(context.Background(), "r-1", "cust-2", repair.PaymentRecord{
		Method:        domain.PaymentMethodCOD,
		Amount:        99,
		PaymentStatus: domain.PaymentStatusAwaitingPayment,
		Status:        domain.StatusAwaitingPayment,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	r, err := m.RecordPayment(context.Background(), "r-1", "cust-1", repair.PaymentRecord{
		Method:        domain.PaymentMethodCOD,
		Amount:        99,
		PaymentStatus: domain.PaymentStatusAwaitingPayment,
		Status:        domain.StatusAwaitingPayment,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodCOD, r.PaymentMethod)
	assert.Nil(t, r.PaidAt)

	// Second submission hits the payment-status guard.
	_, err = m.RecordPayment(context.Background(), "r-1", "cust-1", repair.PaymentRecord{
		Method:        domain.PaymentMethodCard,
		Amount:        99,
		PaymentStatus: domain.PaymentStatusPaid,
		Status:        domain.StatusPaid,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	paidAt := time.Now()
	r, err = m.ConfirmCashPayment(context.Background(), "r-1", "tech-1", paidAt)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, r.Status)
	assert.Equal(t, domain.PaymentStatusPaid, r.PaymentStatus)
	require.NotNil(t, r.PaidAt)
	assert.True(t, paidAt.Equal(*r.PaidAt))

	// Confirming again misses the guard.
	_, err = m.ConfirmCashPayment(context.Background(), "r-1", "tech-1", paidAt)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestMemory_SetRating(t *testing.T) {
	m := NewMemory()
	seedRepair(t, m, "r-1", "cust-1", time.Now())

	// Unpaid repairs cannot be rated.
	_, err := m.SetRating(context.Background(), "r-1", "cust-1", 5, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = m.Claim(context.Background(), "r-1", "tech-1")
	require.NoError(t, err)
	_, err = m.UpdateStatus(context.Background(), "r-1", "tech-1", domain.StatusAccepted, domain.StatusInProgress)
	require.NoError(t, err)
	_, err = m.UpdateStatus(context.Background(), "r-1", "tech-1", domain.StatusInProgress, domain.StatusAwaitingPayment)
	require.NoError(t, err)
	_, err = m.RecordPayment(context.Background(), "r-1", "cust-1", repair.PaymentRecord{
		Method:        domain.PaymentMethodCard,
		Amount:        135,
		PaymentStatus: domain.PaymentStatusPaid,
		Status:        domain.StatusPaid,
	})
	require.NoError(t, err)

	r, err := m.SetRating(context.Background(), "r-1", "cust-1", 5, "great")
	require.NoError(t, err)
	assert.Equal(t, 5, r.Rating)

	r, err = m.SetRating(context.Background(), "r-1", "cust-1", 2, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Rating)
	assert.Equal(t, "changed my mind", r.RatingNote)
}

func TestMemory_List(t *testing.T) {
	m := NewMemory()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedRepair(t, m, fmt.Sprintf("r-%d", i), "cust-1", base.Add(time.Duration(i)*time.Minute))
	}
	seedRepair(t, m, "r-other", "cust-2", base.Add(time.Hour))

	t.Run("newest first, customer scoped", func(t *testing.T) {
		out, err := m.List(context.Background(), repair.ListFilter{CustomerID: "cust-1", PageSize: 10})
		require.NoError(t, err)
		require.Len(t, out, 5)
		assert.Equal(t, "r-4", out[0].ID)
		assert.Equal(t, "r-0", out[4].ID)
	})

	t.Run("zero page size returns everything", func(t *testing.T) {
		out, err := m.List(context.Background(), repair.ListFilter{CustomerID: "cust-1"})
		require.NoError(t, err)
		assert.Len(t, out, 5)
	})

	t.Run("returns one extra row past the page size", func(t *testing.T) {
		out, err := m.List(context.Background(), repair.ListFilter{CustomerID: "cust-1", PageSize: 2})
		require.NoError(t, err)
		assert.Len(t, out, 3)
	})

	t.Run("cursor resumes past the marker", func(t *testing.T) {
		first, err := m.List(context.Background(), repair.ListFilter{CustomerID: "cust-1", PageSize: 2})
		require.NoError(t, err)
		require.Len(t, first, 3)

		cursor := &repair.Cursor{CreatedAt: first[1].CreatedAt, ID: first[1].ID}
		rest, err := m.List(context.Background(), repair.ListFilter{CustomerID: "cust-1", PageSize: 10, Cursor: cursor})
		require.NoError(t, err)
		require.Len(t, rest, 3)
		assert.Equal(t, "r-2", rest[0].ID)
	})

	t.Run("technician sees pending plus assigned", func(t *testing.T) {
		_, err := m.Claim(context.Background(), "r-0", "tech-1")
		require.NoError(t, err)

		out, err := m.List(context.Background(), repair.ListFilter{
			TechnicianID:   "tech-1",
			IncludePending: true,
			PageSize:       10,
		})
		require.NoError(t, err)
		assert.Len(t, out, 6)

		// Without the pending widening only the assigned repair remains.
		out, err = m.List(context.Background(), repair.ListFilter{TechnicianID: "tech-1", PageSize: 10})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "r-0", out[0].ID)
	})

	t.Run("status filter", func(t *testing.T) {
		out, err := m.List(context.Background(), repair.ListFilter{Status: domain.StatusAccepted, PageSize: 10})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "r-0", out[0].ID)
	})
}
