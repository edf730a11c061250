// Package repair implements the doorstep repair lifecycle: the status
// graph, the single-winner technician claim, checklist tracking, the
// handover handshake, and payment settlement. Every operation runs as an
// explicit actor, applies one atomic store update, and publishes one
// event only after the update committed.
package repair

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fixmate/repair-be/internal/notify"
	"github.com/fixmate/repair-be/internal/repair/domain"
	"github.com/fixmate/repair-be/internal/workflow"
)

// Publisher delivers a room-scoped event. Implementations must not
// block; a publish failure never surfaces to the operation.
type Publisher interface {
	Publish(room, event string, payload any)
}

// stepSaveRetries bounds the reload-and-reapply loop when a step write
// races a concurrent update on the same repair.
const stepSaveRetries = 3

// Config holds service dependencies.
type Config struct {
	Store     Store
	Publisher Publisher
	Resolver  workflow.ResolverFunc
	Logger    *slog.Logger
}

// Service coordinates all repair operations.
type Service struct {
	store     Store
	publisher Publisher
	resolve   workflow.ResolverFunc
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a Service. Resolver defaults to the built-in
// workflow table; Publisher may be nil (events are then discarded).
func NewService(cfg *Config) *Service {
	s := &Service{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		resolve:   cfg.Resolver,
		logger:    cfg.Logger,
		now:       time.Now,
	}
	if s.resolve == nil {
		s.resolve = workflow.Resolve
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// CreateInput is the customer's repair request.
type CreateInput struct {
	DeviceModel string
	IssueID     string
	Description string
	Address     string
}

// Create registers a new PENDING repair for the customer. The step
// checklist is resolved once, here, and never changes shape afterwards.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Repair, error) {
	if !actor.IsCustomer() {
		return nil, domain.ErrForbidden
	}
	if strings.TrimSpace(in.DeviceModel) == "" {
		return nil, domain.NewValidationError("device_model", "must not be empty")
	}
	if strings.TrimSpace(in.IssueID) == "" {
		return nil, domain.NewValidationError("issue_id", "must not be empty")
	}

	templates := s.resolve(in.DeviceModel, in.IssueID)
	steps := make([]domain.Step, len(templates))
	for i, tmpl := range templates {
		steps[i] = domain.Step{
			StepID:     tmpl.StepID,
			Label:      tmpl.Label,
			EstMinutes: tmpl.EstMinutes,
		}
	}

	ts := s.now()
	r := &domain.Repair{
		ID:            uuid.New().String(),
		CustomerID:    actor.ID,
		DeviceModel:   in.DeviceModel,
		IssueID:       in.IssueID,
		Description:   in.Description,
		Address:       in.Address,
		Status:        domain.StatusPending,
		Steps:         steps,
		PaymentStatus: domain.PaymentStatusPending,
		Version:       1,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}

	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}

	s.logger.Info("repair created",
		slog.String("repair_id", r.ID),
		slog.String("customer_id", r.CustomerID),
		slog.String("device_model", r.DeviceModel),
		slog.Int("steps", len(r.Steps)),
	)

	s.publishEvent(notify.RoomTechnicians, EventIncomingRepair, IncomingRepairPayload{
		RepairID:    r.ID,
		DeviceModel: r.DeviceModel,
		Issue:       r.IssueID,
		Description: r.Description,
		CustomerID:  r.CustomerID,
	})

	return r, nil
}

// Claim atomically assigns the repair to the technician. Concurrent
// claims on the same PENDING repair yield exactly one winner; all other
// callers receive ErrAlreadyClaimed.
func (s *Service) Claim(ctx context.Context, actor domain.Actor, repairID string) (*domain.Repair, error) {
	if !actor.IsTechnician() {
		return nil, domain.ErrForbidden
	}

	r, err := s.store.Claim(ctx, repairID, actor.ID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyClaimed) {
			// The conditional update missed: either the repair is gone
			// or someone else holds it. A lost race must stay
			// distinguishable from "not found".
			if _, getErr := s.store.GetByID(ctx, repairID); errors.Is(getErr, domain.ErrNotFound) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrAlreadyClaimed
		}
		return nil, err
	}

	s.logger.Info("repair claimed",
		slog.String("repair_id", r.ID),
		slog.String("technician_id", actor.ID),
	)

	s.publishEvent(notify.UserRoom(r.CustomerID), EventRepairAccepted, RepairAcceptedPayload{
		RepairID:       r.ID,
		TechnicianID:   actor.ID,
		TechnicianName: actor.Name,
	})

	return r, nil
}

// Start moves an ACCEPTED repair into IN_PROGRESS. Only the assigned
// technician may start it.
func (s *Service) Start(ctx context.Context, actor domain.Actor, repairID string) (*domain.Repair, error) {
	return s.advance(ctx, actor, repairID, domain.StatusAccepted, domain.StatusInProgress)
}

// Finish moves an IN_PROGRESS repair into AWAITING_PAYMENT once every
// checklist step is completed.
func (s *Service) Finish(ctx context.Context, actor domain.Actor, repairID string) (*domain.Repair, error) {
	if !actor.IsTechnician() {
		return nil, domain.ErrForbidden
	}

	cur, err := s.store.GetByID(ctx, repairID)
	if err != nil {
		return nil, err
	}
	if cur.TechnicianID != actor.ID {
		return nil, domain.ErrForbidden
	}
	// Steps never regress to incomplete, so checking here and advancing
	// conditionally below cannot let an unfinished repair through.
	if !cur.AllStepsCompleted() {
		return nil, domain.ErrInvalidTransition
	}

	return s.advance(ctx, actor, repairID, domain.StatusInProgress, domain.StatusAwaitingPayment)
}

// Complete moves a PAID repair into its terminal COMPLETED state.
func (s *Service) Complete(ctx context.Context, actor domain.Actor, repairID string) (*domain.Repair, error) {
	return s.advance(ctx, actor, repairID, domain.StatusPaid, domain.StatusCompleted)
}

// advance performs one forward transition guarded by assignment, then
// publishes the full snapshot to the repair room.
func (s *Service) advance(ctx context.Context, actor domain.Actor, repairID string, from, to domain.Status) (*domain.Repair, error) {
	if !actor.IsTechnician() {
		return nil, domain.ErrForbidden
	}

	r, err := s.store.UpdateStatus(ctx, repairID, actor.ID, from, to)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil, s.refineGuardFailure(ctx, repairID, actor)
		}
		return nil, err
	}

	s.logger.Info("repair status advanced",
		slog.String("repair_id", r.ID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)

	s.publishEvent(notify.RepairRoom(r.ID), EventRepairUpdated, r)
	return r, nil
}

// MarkStepComplete marks one checklist step done. Re-invoking on an
// already-completed step returns the current state unchanged: the first
// completedAt is preserved and no event is published.
func (s *Service) MarkStepComplete(ctx context.Context, actor domain.Actor, repairID, stepID, notes, photoURL string) (*domain.Repair, error) {
	if !actor.IsTechnician() {
		return nil, domain.ErrForbidden
	}

	for attempt := 0; attempt < stepSaveRetries; attempt++ {
		cur, err := s.store.GetByID(ctx, repairID)
		if err != nil {
			return nil, err
		}
		if cur.TechnicianID != actor.ID {
			return nil, domain.ErrForbidden
		}
		if cur.Status != domain.StatusAccepted && cur.Status != domain.StatusInProgress {
			return nil, domain.ErrInvalidTransition
		}

		idx := cur.StepIndex(stepID)
		if idx < 0 {
			return nil, domain.NewValidationError("step_id", "unknown step")
		}
		if cur.Steps[idx].Completed {
			// Idempotent no-op, including under a concurrent duplicate.
			return cur, nil
		}

		steps := cur.CloneSteps()
		ts := s.now()
		steps[idx].Completed = true
		steps[idx].CompletedAt = &ts
		if notes != "" {
			steps[idx].Notes = notes
		}
		if photoURL != "" {
			steps[idx].PhotoURL = photoURL
		}

		r, err := s.store.SaveSteps(ctx, repairID, cur.Version, steps)
		if err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				// Another step write landed first; reload and reapply.
				continue
			}
			return nil, err
		}

		s.logger.Info("step completed",
			slog.String("repair_id", r.ID),
			slog.String("step_id", stepID),
		)

		s.publishEvent(notify.UserRoom(r.CustomerID), EventStepUpdated, StepUpdatedPayload{
			RepairID:  r.ID,
			StepID:    stepID,
			Completed: true,
			Notes:     steps[idx].Notes,
			PhotoURL:  steps[idx].PhotoURL,
		})
		return r, nil
	}

	return nil, domain.ErrVersionConflict
}

// ConfirmHandover records one party's handover acknowledgement. The two
// flags are independent; confirming again when already set is a no-op.
func (s *Service) ConfirmHandover(ctx context.Context, actor domain.Actor, repairID string) (*domain.Repair, error) {
	cur, err := s.store.GetByID(ctx, repairID)
	if err != nil {
		return nil, err
	}

	var already bool
	switch {
	case actor.IsCustomer() && cur.CustomerID == actor.ID:
		already = cur.CustomerConfirmedHandover
	case actor.IsTechnician() && cur.TechnicianID == actor.ID:
		already = cur.TechnicianConfirmedHandover
	default:
		return nil, domain.ErrForbidden
	}
	if cur.Status.Terminal() {
		return nil, domain.ErrInvalidTransition
	}
	if already {
		return cur, nil
	}

	r, err := s.store.SetHandover(ctx, repairID, actor.Role)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil, s.refineGuardFailure(ctx, repairID, actor)
		}
		return nil, err
	}

	s.logger.Info("handover confirmed",
		slog.String("repair_id", r.ID),
		slog.String("by", string(actor.Role)),
	)

	// Notify the counterpart, if one is assigned yet.
	counterpart := r.TechnicianID
	if actor.IsTechnician() {
		counterpart = r.CustomerID
	}
	if counterpart != "" {
		s.publishEvent(notify.UserRoom(counterpart), EventHandoverConfirmed, HandoverConfirmedPayload{
			RepairID: r.ID,
			By:       string(actor.Role),
		})
	}

	return r, nil
}

// SubmitPayment records the customer's settlement. Card and PayPal
// settle in a single step; cash on delivery leaves the repair awaiting
// the technician's confirmation.
func (s *Service) SubmitPayment(ctx context.Context, actor domain.Actor, repairID string, method domain.PaymentMethod, amount float64) (*domain.Repair, error) {
	if !actor.IsCustomer() {
		return nil, domain.ErrForbidden
	}
	if !method.Valid() {
		return nil, domain.NewValidationError("payment_method", "must be one of CARD, PAYPAL, COD")
	}
	if amount <= 0 {
		return nil, domain.NewValidationError("amount", "must be greater than zero")
	}

	rec := PaymentRecord{Method: method, Amount: amount}
	if method.Immediate() {
		ts := s.now()
		rec.PaymentStatus = domain.PaymentStatusPaid
		rec.Status = domain.StatusPaid
		rec.PaidAt = &ts
	} else {
		rec.PaymentStatus = domain.PaymentStatusAwaitingPayment
		rec.Status = domain.StatusAwaitingPayment
	}

	r, err := s.store.RecordPayment(ctx, repairID, actor.ID, rec)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil, s.refineGuardFailure(ctx, repairID, actor)
		}
		return nil, err
	}

	s.logger.Info("payment submitted",
		slog.String("repair_id", r.ID),
		slog.String("method", string(method)),
		slog.Float64("amount", amount),
		slog.String("payment_status", string(r.PaymentStatus)),
	)

	s.publishEvent(notify.RepairRoom(r.ID), EventRepairUpdated, r)
	return r, nil
}

// ConfirmCashPayment is the technician's second confirmation of a cash
// settlement, completing the AWAITING_PAYMENT → PAID transition.
func (s *Service) ConfirmCashPayment(ctx context.Context, actor domain.Actor, repairID string) (*domain.Repair, error) {
	if !actor.IsTechnician() {
		return nil, domain.ErrForbidden
	}

	r, err := s.store.ConfirmCashPayment(ctx, repairID, actor.ID, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil, s.refineGuardFailure(ctx, repairID, actor)
		}
		return nil, err
	}

	s.logger.Info("cash payment confirmed",
		slog.String("repair_id", r.ID),
		slog.String("technician_id", actor.ID),
	)

	s.publishEvent(notify.RepairRoom(r.ID), EventRepairUpdated, r)
	return r, nil
}

// SubmitRating records the customer's rating. Last write wins;
// resubmitting overwrites the previous rating.
func (s *Service) SubmitRating(ctx context.Context, actor domain.Actor, repairID string, rating int, note string) (*domain.Repair, error) {
	if !actor.IsCustomer() {
		return nil, domain.ErrForbidden
	}
	if rating < 1 || rating > 5 {
		return nil, domain.NewValidationError("rating", "must be between 1 and 5")
	}

	r, err := s.store.SetRating(ctx, repairID, actor.ID, rating, note)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil, s.refineGuardFailure(ctx, repairID, actor)
		}
		return nil, err
	}

	s.logger.Info("rating submitted",
		slog.String("repair_id", r.ID),
		slog.Int("rating", rating),
	)

	s.publishEvent(notify.RepairRoom(r.ID), EventRepairUpdated, r)
	return r, nil
}

// Get returns the repair if the actor is a party to it, an admin, or a
// technician looking at an unclaimed PENDING repair.
func (s *Service) Get(ctx context.Context, actor domain.Actor, repairID string) (*domain.Repair, error) {
	r, err := s.store.GetByID(ctx, repairID)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.IsAdmin():
	case actor.IsCustomer() && r.CustomerID == actor.ID:
	case actor.IsTechnician() && r.TechnicianID == actor.ID:
	case actor.IsTechnician() && r.Status == domain.StatusPending:
	default:
		return nil, domain.ErrForbidden
	}
	return r, nil
}

// List returns repairs visible to the actor: customers see their own,
// technicians see their own plus unclaimed PENDING ones, admins see all.
func (s *Service) List(ctx context.Context, actor domain.Actor, status domain.Status, pageSize int, cursor *Cursor) ([]domain.Repair, error) {
	filter := ListFilter{
		Status:   status,
		PageSize: pageSize,
		Cursor:   cursor,
	}
	switch actor.Role {
	case domain.RoleCustomer:
		filter.CustomerID = actor.ID
	case domain.RoleTechnician:
		filter.TechnicianID = actor.ID
		filter.IncludePending = true
	case domain.RoleAdmin:
	default:
		return nil, domain.ErrForbidden
	}
	return s.store.List(ctx, filter)
}

// refineGuardFailure turns a failed conditional update into the precise
// domain error. The update stays the authority under races; the re-read
// only classifies what the caller sees.
func (s *Service) refineGuardFailure(ctx context.Context, repairID string, actor domain.Actor) error {
	cur, err := s.store.GetByID(ctx, repairID)
	if err != nil {
		return err
	}
	if actor.IsTechnician() && cur.TechnicianID != actor.ID {
		return domain.ErrForbidden
	}
	if actor.IsCustomer() && cur.CustomerID != actor.ID {
		return domain.ErrForbidden
	}
	return domain.ErrInvalidTransition
}

// publishEvent is fire-and-forget; it must never fail the operation.
func (s *Service) publishEvent(room, event string, payload any) {
	if s.publisher == nil || room == "" {
		return
	}
	s.publisher.Publish(room, event, payload)
}
