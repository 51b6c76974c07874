package router

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/hive-backend/internal/config"
	"github.com/ignatzorin/hive-backend/internal/http/handlers"
	"github.com/ignatzorin/hive-backend/internal/http/middleware"
	"github.com/ignatzorin/hive-backend/internal/identity"
)

// Handlers все HTTP обработчики. WS может быть nil, тогда /api/ws не регистрируется.
type Handlers struct {
	Health       *handlers.HealthHandler
	Gigs         *handlers.GigHandler
	Bids         *handlers.BidHandler
	Deliverables *handlers.DeliverableHandler
	Escrow       *handlers.EscrowHandler
	Disputes     *handlers.DisputeHandler
	Stats        *handlers.StatsHandler
	WS           *handlers.WSHandler
}

func SetupRouter(
	cfg *config.Config,
	h Handlers,
	tokenManager *identity.TokenManager,
	rateLimitStore limiter.Store,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(rateLimitStore, cfg.RateLimitLimit, cfg.RateLimitPeriod))

	// Вебхук подписан HMAC, JWT не нужен.
	api.POST("/webhooks/payments", h.Escrow.PaymentWebhook)
	if h.WS != nil {
		api.GET("/ws", h.WS.Handle)
	}

	api.GET("/gigs", h.Gigs.ListGigs)
	api.GET("/gigs/:id", middleware.UUIDValidator("id"), h.Gigs.GetGig)
	api.GET("/stats/:type/:id", middleware.UUIDValidator("id"), h.Stats.GetStats)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/gigs", h.Gigs.CreateGig)
		protected.PATCH("/gigs/:id", middleware.UUIDValidator("id"), h.Gigs.UpdateGig)
		protected.POST("/gigs/:id/publish", middleware.UUIDValidator("id"), h.Gigs.PublishGig)
		protected.POST("/gigs/:id/cancel", middleware.UUIDValidator("id"), h.Gigs.CancelGig)
		protected.POST("/gigs/:id/mark-paid", middleware.UUIDValidator("id"), h.Gigs.MarkPaid)

		// Ставки
		protected.POST("/gigs/:id/bids", middleware.UUIDValidator("id"), h.Bids.PlaceBid)
		protected.GET("/gigs/:id/bids", middleware.UUIDValidator("id"), h.Bids.ListBids)
		protected.POST("/gigs/:id/bids/:bidId/accept", middleware.UUIDValidator("id", "bidId"), h.Bids.AcceptBid)
		protected.PATCH("/bids/:bidId", middleware.UUIDValidator("bidId"), h.Bids.UpdateBid)
		protected.POST("/bids/:bidId/withdraw", middleware.UUIDValidator("bidId"), h.Bids.WithdrawBid)

		// Результаты работы
		protected.POST("/gigs/:id/deliverables", middleware.UUIDValidator("id"), h.Deliverables.Submit)
		protected.GET("/gigs/:id/deliverables", middleware.UUIDValidator("id"), h.Deliverables.ListDeliverables)
		protected.POST("/gigs/:id/deliverables/:deliverableId/approve", middleware.UUIDValidator("id", "deliverableId"), h.Deliverables.Approve)
		protected.POST("/gigs/:id/deliverables/:deliverableId/request-revision", middleware.UUIDValidator("id", "deliverableId"), h.Deliverables.RequestRevision)
		protected.POST("/gigs/:id/deliverables/:deliverableId/reject", middleware.UUIDValidator("id", "deliverableId"), h.Deliverables.Reject)

		// Escrow
		protected.GET("/gigs/:id/escrow", middleware.UUIDValidator("id"), h.Escrow.GetEscrow)
		protected.POST("/gigs/:id/escrow/release", middleware.UUIDValidator("id"), h.Escrow.Release)
		protected.POST("/gigs/:id/escrow/refund", middleware.UUIDValidator("id"), h.Escrow.Refund)

		// Споры
		protected.POST("/gigs/:id/disputes", middleware.UUIDValidator("id"), h.Disputes.OpenDispute)
		protected.GET("/gigs/:id/dispute", middleware.UUIDValidator("id"), h.Disputes.GetGigDispute)
		protected.GET("/disputes/:disputeId", middleware.UUIDValidator("disputeId"), h.Disputes.GetDispute)
		protected.POST("/disputes/:disputeId/messages", middleware.UUIDValidator("disputeId"), h.Disputes.AddMessage)
		protected.GET("/disputes/:disputeId/messages", middleware.UUIDValidator("disputeId"), h.Disputes.ListMessages)
		protected.POST("/disputes/:disputeId/resolve", middleware.UUIDValidator("disputeId"), h.Disputes.Resolve)

		protected.POST("/admin/sweep", h.Stats.Sweep)
	}

	return r
}
