package domain

import "time"

// Status is the lifecycle state of a repair.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusAccepted        Status = "ACCEPTED"
	StatusInProgress      Status = "IN_PROGRESS"
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusPaid            Status = "PAID"
	StatusCompleted       Status = "COMPLETED"
)

// next maps each status to the only status it may advance to.
// The graph is a straight line; there are no other edges.
var next = map[Status]Status{
	StatusPending:         StatusAccepted,
	StatusAccepted:        StatusInProgress,
	StatusInProgress:      StatusAwaitingPayment,
	StatusAwaitingPayment: StatusPaid,
	StatusPaid:            StatusCompleted,
}

// CanAdvanceTo reports whether s may transition directly to target.
func (s Status) CanAdvanceTo(target Status) bool {
	return next[s] == target
}

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	_, ok := next[s]
	return !ok
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	if _, ok := next[s]; ok {
		return true
	}
	return s == StatusCompleted
}

// PaymentMethod is how the customer settles a repair.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "CARD"
	PaymentMethodPayPal PaymentMethod = "PAYPAL"
	PaymentMethodCOD    PaymentMethod = "COD"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodPayPal, PaymentMethodCOD:
		return true
	}
	return false
}

// Immediate reports whether the method settles in a single step.
// Cash on delivery needs a second confirmation by the technician.
func (m PaymentMethod) Immediate() bool {
	return m == PaymentMethodCard || m == PaymentMethodPayPal
}

// PaymentStatus tracks settlement progress independently of Status.
type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "PENDING"
	PaymentStatusAwaitingPayment PaymentStatus = "AWAITING_PAYMENT"
	PaymentStatusPaid            PaymentStatus = "PAID"
)

// Step is one entry of a repair's checklist. The step set is snapshotted
// at creation from the workflow resolver; only the completion fields
// mutate afterwards.
type Step struct {
	StepID      string     `json:"step_id"`
	Label       string     `json:"label"`
	EstMinutes  int        `json:"est_minutes"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	PhotoURL    string     `json:"photo_url,omitempty"`
}

// Repair is one doorstep repair tracked from request to settlement.
type Repair struct {
	ID           string `json:"repair_id" db:"repair_id"`
	CustomerID   string `json:"customer_id" db:"customer_id"`
	TechnicianID string `json:"technician_id,omitempty" db:"technician_id"`
	DeviceModel  string `json:"device_model" db:"device_model"`
	IssueID      string `json:"issue_id" db:"issue_id"`
	Description  string `json:"description" db:"description"`
	Address      string `json:"address" db:"address"`
	Status       Status `json:"status" db:"status"`

	// Steps is fixed-length after creation; never reordered or resized.
	Steps []Step `json:"steps_progress" db:"-"`

	CustomerConfirmedHandover   bool `json:"customer_confirmed_handover" db:"customer_confirmed_handover"`
	TechnicianConfirmedHandover bool `json:"technician_confirmed_handover" db:"technician_confirmed_handover"`

	PaymentMethod PaymentMethod `json:"payment_method,omitempty" db:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	Amount        float64       `json:"amount" db:"amount"`
	PaidAt        *time.Time    `json:"paid_at,omitempty" db:"paid_at"`

	Rating     int    `json:"rating,omitempty" db:"rating"`
	RatingNote string `json:"rating_note,omitempty" db:"rating_note"`

	// Version guards concurrent step writes (compare-and-swap).
	Version int `json:"-" db:"version"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StepIndex returns the position of stepID in the snapshot, or -1.
func (r *Repair) StepIndex(stepID string) int {
	for i := range r.Steps {
		if r.Steps[i].StepID == stepID {
			return i
		}
	}
	return -1
}

// AllStepsCompleted reports whether every step in the snapshot is done.
// An empty snapshot trivially satisfies it.
func (r *Repair) AllStepsCompleted() bool {
	for i := range r.Steps {
		if !r.Steps[i].Completed {
			return false
		}
	}
	return true
}

// CloneSteps returns a deep copy of the step snapshot.
func (r *Repair) CloneSteps() []Step {
	steps := make([]Step, len(r.Steps))
	copy(steps, r.Steps)
	for i := range steps {
		if steps[i].CompletedAt != nil {
			ts := *steps[i].CompletedAt
			steps[i].CompletedAt = &ts
		}
	}
	return steps
}

// Clone returns a deep copy of the repair.
func (r *Repair) Clone() *Repair {
	cp := *r
	cp.Steps = r.CloneSteps()
	if r.PaidAt != nil {
		ts := *r.PaidAt
		cp.PaidAt = &ts
	}
	return &cp
}
