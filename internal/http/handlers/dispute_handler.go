package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/hive-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hive-backend/internal/service"
)

type DisputeHandler struct {
	svc *service.DisputeService
}

func NewDisputeHandler(s *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{svc: s}
}

// OpenDispute POST /gigs/:id/disputes
func (h *DisputeHandler) OpenDispute(c *gin.Context) {
	actor, gigID, ok := actorAndID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Reason   string `json:"reason"`
		Evidence string `json:"evidence"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	dispute, err := h.svc.Open(c.Request.Context(), actor, gigID, service.OpenDisputeInput{
		Reason:   req.Reason,
		Evidence: req.Evidence,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dispute)
}

// GetGigDispute GET /gigs/:id/dispute
func (h *DisputeHandler) GetGigDispute(c *gin.Context) {
	actor, gigID, ok := actorAndID(c, "id")
	if !ok {
		return
	}

	dispute, err := h.svc.GetByGig(c.Request.Context(), actor, gigID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

// GetDispute GET /disputes/:disputeId
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	actor, disputeID, ok := actorAndID(c, "disputeId")
	if !ok {
		return
	}

	dispute, err := h.svc.Get(c.Request.Context(), actor, disputeID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

// AddMessage POST /disputes/:disputeId/messages
func (h *DisputeHandler) AddMessage(c *gin.Context) {
	actor, disputeID, ok := actorAndID(c, "disputeId")
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	msg, err := h.svc.AddMessage(c.Request.Context(), actor, disputeID, req.Content)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ListMessages GET /disputes/:disputeId/messages
func (h *DisputeHandler) ListMessages(c *gin.Context) {
	actor, disputeID, ok := actorAndID(c, "disputeId")
	if !ok {
		return
	}

	messages, err := h.svc.ListMessages(c.Request.Context(), actor, disputeID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Resolve POST /disputes/:disputeId/resolve
func (h *DisputeHandler) Resolve(c *gin.Context) {
	actor, disputeID, ok := actorAndID(c, "disputeId")
	if !ok {
		return
	}

	var req struct {
		Decision string `json:"decision"`
		Note     string `json:"note"`
		BeeShare string `json:"bee_share"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	dispute, err := h.svc.Resolve(c.Request.Context(), actor, disputeID, service.ResolveInput{
		Decision: req.Decision,
		Note:     req.Note,
		BeeShare: req.BeeShare,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}
