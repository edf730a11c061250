package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/fixmate/repair-be/internal/notify"
	"github.com/fixmate/repair-be/internal/repair"
	"github.com/fixmate/repair-be/internal/repair/domain"
)

// ContextActorKey is where the identity middleware stores the actor.
const ContextActorKey = "actor"

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger  *slog.Logger
	Service *repair.Service
	Hub     *notify.Hub
}

// RepairHandler handles repair-related HTTP requests
type RepairHandler struct {
	logger  *slog.Logger
	service *repair.Service
	hub     *notify.Hub
}

// NewRepairHandler creates a new RepairHandler instance
func NewRepairHandler(deps *Dependencies) *RepairHandler {
	return &RepairHandler{
		logger:  deps.Logger,
		service: deps.Service,
		hub:     deps.Hub,
	}
}

// ActorFromContext returns the authenticated actor set by the identity
// middleware. The route group guarantees it is present.
func ActorFromContext(c *gin.Context) domain.Actor {
	return c.MustGet(ContextActorKey).(domain.Actor)
}
