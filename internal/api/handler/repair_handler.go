package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fixmate/repair-be/internal/api/dto"
	"github.com/fixmate/repair-be/internal/repair"
	"github.com/fixmate/repair-be/internal/repair/domain"
)

// CreateRepair handles POST /api/v1/repairs
// Registers a new repair request for the calling customer
func (h *RepairHandler) CreateRepair(c *gin.Context) {
	actor := ActorFromContext(c)

	var req dto.CreateRepairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	r, err := h.service.Create(c.Request.Context(), actor, repair.CreateInput{
		DeviceModel: req.DeviceModel,
		IssueID:     req.IssueID,
		Description: req.Description,
		Address:     req.Address,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toRepairDTO(r))
}

// GetRepair handles GET /api/v1/repairs/:repair_id
func (h *RepairHandler) GetRepair(c *gin.Context) {
	repairID, ok := h.repairID(c)
	if !ok {
		return
	}

	r, err := h.service.Get(c.Request.Context(), ActorFromContext(c), repairID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRepairDTO(r))
}

// ListRepairs handles GET /api/v1/repairs
// Lists repairs visible to the actor with cursor pagination
func (h *RepairHandler) ListRepairs(c *gin.Context) {
	actor := ActorFromContext(c)

	var req dto.ListRepairsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeRepairCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	repairs, err := h.service.List(c.Request.Context(), actor, domain.Status(req.Status), req.PageSize, cursor)
	if err != nil {
		h.respondError(c, err)
		return
	}

	hasMore := len(repairs) > req.PageSize
	if hasMore {
		repairs = repairs[:req.PageSize]
	}

	items := make([]dto.RepairDTO, len(repairs))
	for i := range repairs {
		items[i] = toRepairDTO(&repairs[i])
	}

	var nextCursor string
	if hasMore {
		last := repairs[len(repairs)-1]
		nextCursor = EncodeRepairCursor(&repair.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListRepairsResponse{
		Repairs:    items,
		NextCursor: nextCursor,
	})
}

// ClaimRepair handles POST /api/v1/repairs/:repair_id/claim
// First technician wins; losers get a 409 with code already_claimed
func (h *RepairHandler) ClaimRepair(c *gin.Context) {
	repairID, ok := h.repairID(c)
	if !ok {
		return
	}

	r, err := h.service.Claim(c.Request.Context(), ActorFromContext(c), repairID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRepairDTO(r))
}

// StartRepair handles POST /api/v1/repairs/:repair_id/start
func (h *RepairHandler) StartRepair(c *gin.Context) {
	repairID, ok := h.repairID(c)
	if !ok {
		return
	}

	r, err := h.service.Start(c.Request.Context(), ActorFromContext(c), repairID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRepairDTO(r))
}

// CompleteStep handles POST /api/v1/repairs/:repair_id/steps/:step_id/complete
func (h *RepairHandler) CompleteStep(c *gin.Context) {
	repairID, ok := h.repairID(c)
	if !ok {
		return
	}
	stepID := c.Param("step_id")

	var req dto.CompleteStepRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}
	}

	r, err := h.service.MarkStepComplete(c.Request.Context(), ActorFromContext(c), repairID, stepID, req.Notes, req.PhotoURL)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRepairDTO(r))
}

// ConfirmHandover handles POST /api/v1/repairs/:repair_id/handover
func (h *RepairHandler) ConfirmHandover(c *gin.Context) {
	repairID, ok := h.repairID(c)
	if !ok {
		return
	}

	r, err := h.service.ConfirmHandover(c.Request.Context(), ActorFromContext(c), repairID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRepairDTO(r))
}

// FinishRepair handles POST /api/v1/repairs/:repair_id/finish
func (h *RepairHandler) FinishRepair(c *gin.Context) {
	repairID, ok := h.repairID(c)
	if !ok {
		return
	}

	r, err := h.service.Finish(c.Request.Context(), ActorFromContext(c), repairID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRepairDTO(r))
}

// SubmitPayment handles POST /api/v1/repairs/:repair_id/payment
func (h *RepairHandler) SubmitPayment(c *gin.Context) {
	repairID, ok := h.repairID(c)
	if !ok {
		return
	}

	var req dto.SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	r, err := h.service.SubmitPayment(c.Request.Context(), ActorFromContext(c), repairID, parseMethod(req.Method), req.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRepairDTO(r))
}

// ConfirmCashPayment handles POST /api/v1/repairs/:repair_id/payment/cash-confirm
func (h *RepairHandler) ConfirmCashPayment(c *gin.Context) {
	repairID, ok := h.repairID(c)
	if !ok {
		return
	}

	r, err := h.service.ConfirmCashPayment(c.Request.Context(), ActorFromContext(c), repairID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRepairDTO(r))
}

// CompleteRepair handles POST /api/v1/repairs/:repair_id/complete
func (h *RepairHandler) CompleteRepair(c *gin.Context) {
	repairID, ok := h.repairID(c)
	if !ok {
		return
	}

	r, err := h.service.Complete(c.Request.Context(), ActorFromContext(c), repairID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRepairDTO(r))
}

// SubmitRating handles POST /api/v1/repairs/:repair_id/rating
func (h *RepairHandler) SubmitRating(c *gin.Context) {
	repairID, ok := h.repairID(c)
	if !ok {
		return
	}

	var req dto.SubmitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	r, err := h.service.SubmitRating(c.Request.Context(), ActorFromContext(c), repairID, req.Rating, req.Note)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRepairDTO(r))
}

// repairID validates the :repair_id path parameter.
func (h *RepairHandler) repairID(c *gin.Context) (string, bool) {
	repairID := c.Param("repair_id")
	if _, err := uuid.Parse(repairID); err != nil {
		h.logger.Error("Invalid repair_id format",
			slog.String("repair_id", repairID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "repair_id must be a valid UUID",
		})
		return "", false
	}
	return repairID, true
}

// respondError maps a domain error to an HTTP response. A lost claim
// race, a missing repair, and a role failure each carry a distinct code
// because the client recovers differently from each.
func (h *RepairHandler) respondError(c *gin.Context, err error) {
	var vErr *domain.ValidationError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "repair not found",
			"code":  "not_found",
		})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{
			"error": "forbidden",
			"code":  "forbidden",
		})
	case errors.Is(err, domain.ErrAlreadyClaimed):
		c.JSON(http.StatusConflict, gin.H{
			"error": "repair already claimed",
			"code":  "already_claimed",
		})
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error": "invalid status transition",
			"code":  "invalid_transition",
		})
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": vErr.Error(),
			"code":  "validation_error",
		})
	default:
		h.logger.Error("Operation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal error",
			"code":  "internal",
		})
	}
}

func parseMethod(method string) domain.PaymentMethod {
	switch method {
	case "card", "CARD":
		return domain.PaymentMethodCard
	case "paypal", "PAYPAL":
		return domain.PaymentMethodPayPal
	case "cod", "COD", "cash":
		return domain.PaymentMethodCOD
	}
	return domain.PaymentMethod(method)
}

func toRepairDTO(r *domain.Repair) dto.RepairDTO {
	steps := make([]dto.StepDTO, len(r.Steps))
	for i, step := range r.Steps {
		steps[i] = dto.StepDTO{
			StepID:     step.StepID,
			Label:      step.Label,
			EstMinutes: step.EstMinutes,
			Completed:  step.Completed,
			Notes:      step.Notes,
			PhotoURL:   step.PhotoURL,
		}
		if step.CompletedAt != nil {
			steps[i].CompletedAt = step.CompletedAt.Format(time.RFC3339)
		}
	}

	out := dto.RepairDTO{
		RepairID:                    r.ID,
		CustomerID:                  r.CustomerID,
		TechnicianID:                r.TechnicianID,
		DeviceModel:                 r.DeviceModel,
		IssueID:                     r.IssueID,
		Description:                 r.Description,
		Address:                     r.Address,
		Status:                      string(r.Status),
		Steps:                       steps,
		CustomerConfirmedHandover:   r.CustomerConfirmedHandover,
		TechnicianConfirmedHandover: r.TechnicianConfirmedHandover,
		PaymentMethod:               string(r.PaymentMethod),
		PaymentStatus:               string(r.PaymentStatus),
		Amount:                      r.Amount,
		Rating:                      r.Rating,
		RatingNote:                  r.RatingNote,
		CreatedAt:                   r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:                   r.UpdatedAt.Format(time.RFC3339),
	}
	if r.PaidAt != nil {
		out.PaidAt = r.PaidAt.Format(time.RFC3339)
	}
	return out
}
