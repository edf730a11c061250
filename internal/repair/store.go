package repair

import (
	"context"
	"time"

	"github.com/fixmate/repair-be/internal/repair/domain"
)

// Cursor marks a position in the (created_at, id) ordering for
// keyset pagination.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// ListFilter scopes a repair listing.
type ListFilter struct {
	CustomerID   string
	TechnicianID string
	// IncludePending widens a technician-scoped listing to also return
	// unclaimed PENDING repairs.
	IncludePending bool
	Status domain.Status
	// PageSize caps the result; stores return up to PageSize+1 rows so
	// the caller can detect a further page. Zero or negative means no
	// limit.
	PageSize int
	Cursor   *Cursor
}

// PaymentRecord is the settlement data written by a payment submission.
type PaymentRecord struct {
	Method        domain.PaymentMethod
	Amount        float64
	PaymentStatus domain.PaymentStatus
	Status        domain.Status
	PaidAt        *time.Time
}

// Store is the repair registry. Every mutating method applies exactly
// one conditional update: the precondition travels to the storage layer
// instead of being checked in a separate read, so concurrent callers
// resolve there. A method whose guard does not match reports its guard
// error (ErrAlreadyClaimed, ErrInvalidTransition, ErrVersionConflict);
// the service refines that into the precise failure.
type Store interface {
	Create(ctx context.Context, r *domain.Repair) error
	GetByID(ctx context.Context, id string) (*domain.Repair, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Repair, error)

	// Claim atomically assigns the technician iff the repair is still
	// PENDING and unassigned. Exactly one concurrent caller wins.
	Claim(ctx context.Context, id, technicianID string) (*domain.Repair, error)

	// UpdateStatus advances from → to iff the repair currently holds
	// `from` and is assigned to technicianID.
	UpdateStatus(ctx context.Context, id, technicianID string, from, to domain.Status) (*domain.Repair, error)

	// SaveSteps replaces the step snapshot iff the version matches.
	SaveSteps(ctx context.Context, id string, version int, steps []domain.Step) (*domain.Repair, error)

	// SetHandover sets the confirmation flag for the given party iff the
	// repair is not terminal.
	SetHandover(ctx context.Context, id string, party domain.Role) (*domain.Repair, error)

	// RecordPayment writes the settlement fields iff the repair belongs
	// to customerID, is AWAITING_PAYMENT, and has no payment recorded.
	RecordPayment(ctx context.Context, id, customerID string, rec PaymentRecord) (*domain.Repair, error)

	// ConfirmCashPayment settles a pending cash payment iff the repair
	// is assigned to technicianID with method COD awaiting payment.
	ConfirmCashPayment(ctx context.Context, id, technicianID string, paidAt time.Time) (*domain.Repair, error)

	// SetRating records the rating iff the repair belongs to customerID
	// and is PAID or COMPLETED. Overwriting is allowed.
	SetRating(ctx context.Context, id, customerID string, rating int, note string) (*domain.Repair, error)
}
