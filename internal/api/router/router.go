package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fixmate/repair-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "repair-api-service",
		})
	})

	// Initialize repair handler
	repairHandler := handler.NewRepairHandler(deps)

	// Live event stream
	r.GET("/ws", ActorMiddleware(), repairHandler.Stream)

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(ActorMiddleware())
	{
		repairs := v1.Group("/repairs")
		{
			// POST /api/v1/repairs - Register a new repair request
			repairs.POST("", repairHandler.CreateRepair)

			// GET /api/v1/repairs - List visible repairs with pagination
			repairs.GET("", repairHandler.ListRepairs)

			// GET /api/v1/repairs/:repair_id - Get repair details
			repairs.GET("/:repair_id", repairHandler.GetRepair)

			// POST /api/v1/repairs/:repair_id/claim - Technician claims a pending repair
			repairs.POST("/:repair_id/claim", repairHandler.ClaimRepair)

			// POST /api/v1/repairs/:repair_id/start - Begin the on-site work
			repairs.POST("/:repair_id/start", repairHandler.StartRepair)

			// POST /api/v1/repairs/:repair_id/steps/:step_id/complete - Mark a checklist step done
			repairs.POST("/:repair_id/steps/:step_id/complete", repairHandler.CompleteStep)

			// POST /api/v1/repairs/:repair_id/handover - Confirm the device handover
			repairs.POST("/:repair_id/handover", repairHandler.ConfirmHandover)

			// POST /api/v1/repairs/:repair_id/finish - Finish work, move to payment
			repairs.POST("/:repair_id/finish", repairHandler.FinishRepair)

			// POST /api/v1/repairs/:repair_id/payment - Customer settles the repair
			repairs.POST("/:repair_id/payment", repairHandler.SubmitPayment)

			// POST /api/v1/repairs/:repair_id/payment/cash-confirm - Technician confirms cash received
			repairs.POST("/:repair_id/payment/cash-confirm", repairHandler.ConfirmCashPayment)

			// POST /api/v1/repairs/:repair_id/complete - Close out a paid repair
			repairs.POST("/:repair_id/complete", repairHandler.CompleteRepair)

			// POST /api/v1/repairs/:repair_id/rating - Customer rates the repair
			repairs.POST("/:repair_id/rating", repairHandler.SubmitRating)
		}
	}

	return r
}
