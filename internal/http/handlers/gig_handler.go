package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/hive-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hive-backend/internal/service"
)

type GigHandler struct {
	gigs *service.GigService
}

func NewGigHandler(gigs *service.GigService) *GigHandler {
	return &GigHandler{gigs: gigs}
}

type createGigRequest struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Requirements string     `json:"requirements"`
	Price        int64      `json:"price"`
	Category     string     `json:"category"`
	Deadline     *time.Time `json:"deadline"`
	Publish      bool       `json:"publish"`
}

type updateGigRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Requirements *string    `json:"requirements"`
	Category     *string    `json:"category"`
	Price        *int64     `json:"price"`
	Deadline     *time.Time `json:"deadline"`
}

// CreateGig POST /gigs
func (h *GigHandler) CreateGig(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req createGigRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	gig, err := h.gigs.CreateGig(c.Request.Context(), actor, service.CreateGigInput{
		Title:        req.Title,
		Description:  req.Description,
		Requirements: req.Requirements,
		Price:        req.Price,
		Category:     req.Category,
		Deadline:     req.Deadline,
		Publish:      req.Publish,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gig)
}

// ListGigs GET /gigs?status=&owner_id=&category=
func (h *GigHandler) ListGigs(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	in := service.ListGigsInput{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Limit:    limit,
		Offset:   offset,
	}
	if raw := c.Query("owner_id"); raw != "" {
		ownerID, err := uuid.Parse(raw)
		if err != nil {
			common.Fail(c, validationErr("owner_id должен быть валидным UUID"))
			return
		}
		in.OwnerID = &ownerID
	}

	gigs, err := h.gigs.ListGigs(c.Request.Context(), in)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gigs": gigs, "limit": limit, "offset": offset})
}

// GetGig GET /gigs/:id
func (h *GigHandler) GetGig(c *gin.Context) {
	gigID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	gig, err := h.gigs.GetGig(c.Request.Context(), gigID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gig)
}

// UpdateGig PATCH /gigs/:id
func (h *GigHandler) UpdateGig(c *gin.Context) {
	actor, gigID, ok := actorAndID(c, "id")
	if !ok {
		return
	}

	var req updateGigRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	gig, err := h.gigs.UpdateGig(c.Request.Context(), actor, gigID, service.UpdateGigInput{
		Title:        req.Title,
		Description:  req.Description,
		Requirements: req.Requirements,
		Category:     req.Category,
		Price:        req.Price,
		Deadline:     req.Deadline,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gig)
}

// PublishGig POST /gigs/:id/publish
func (h *GigHandler) PublishGig(c *gin.Context) {
	actor, gigID, ok := actorAndID(c, "id")
	if !ok {
		return
	}

	gig, err := h.gigs.PublishGig(c.Request.Context(), actor, gigID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gig)
}

// CancelGig POST /gigs/:id/cancel
func (h *GigHandler) CancelGig(c *gin.Context) {
	actor, gigID, ok := actorAndID(c, "id")
	if !ok {
		return
	}

	gig, err := h.gigs.CancelGig(c.Request.Context(), actor, gigID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gig)
}

// MarkPaid POST /gigs/:id/mark-paid
func (h *GigHandler) MarkPaid(c *gin.Context) {
	actor, gigID, ok := actorAndID(c, "id")
	if !ok {
		return
	}

	gig, err := h.gigs.MarkPaid(c.Request.Context(), actor, gigID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gig)
}
