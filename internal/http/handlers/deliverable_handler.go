package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/hive-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/service"
)

type DeliverableHandler struct {
	deliverables *service.DeliverableService
}

func NewDeliverableHandler(deliverables *service.DeliverableService) *DeliverableHandler {
	return &DeliverableHandler{deliverables: deliverables}
}

type submitRequest struct {
	Title   string `json:"title"`
	Type    string `json:"type"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

// Submit POST /gigs/:id/deliverables
func (h *DeliverableHandler) Submit(c *gin.Context) {
	actor, gigID, ok := actorAndID(c, "id")
	if !ok {
		return
	}

	var req submitRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	d, err := h.deliverables.Submit(c.Request.Context(), actor, gigID, service.SubmitInput{
		Title:   req.Title,
		Type:    req.Type,
		Content: req.Content,
		URL:     req.URL,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// ListDeliverables GET /gigs/:id/deliverables
func (h *DeliverableHandler) ListDeliverables(c *gin.Context) {
	actor, gigID, ok := actorAndID(c, "id")
	if !ok {
		return
	}

	items, err := h.deliverables.ListDeliverables(c.Request.Context(), actor, gigID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliverables": items})
}

// Approve POST /gigs/:id/deliverables/:deliverableId/approve
func (h *DeliverableHandler) Approve(c *gin.Context) {
	actor, gigID, deliverableID, ok := actorAndIDs(c, "id", "deliverableId")
	if !ok {
		return
	}

	d, err := h.deliverables.Approve(c.Request.Context(), actor, gigID, deliverableID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// RequestRevision POST /gigs/:id/deliverables/:deliverableId/request-revision
func (h *DeliverableHandler) RequestRevision(c *gin.Context) {
	h.sendBack(c, h.deliverables.RequestRevision)
}

// Reject POST /gigs/:id/deliverables/:deliverableId/reject
func (h *DeliverableHandler) Reject(c *gin.Context) {
	h.sendBack(c, h.deliverables.Reject)
}

type sendBackFunc = func(ctx context.Context, actor models.Actor, gigID, deliverableID uuid.UUID, feedback string) (*models.Deliverable, error)

func (h *DeliverableHandler) sendBack(c *gin.Context, fn sendBackFunc) {
	actor, gigID, deliverableID, ok := actorAndIDs(c, "id", "deliverableId")
	if !ok {
		return
	}

	var req feedbackRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	d, err := fn(c.Request.Context(), actor, gigID, deliverableID, req.Feedback)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
