package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/hive-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hive-backend/internal/service"
)

type BidHandler struct {
	bids *service.BidService
}

func NewBidHandler(bids *service.BidService) *BidHandler {
	return &BidHandler{bids: bids}
}

type bidRequest struct {
	Proposal       string  `json:"proposal"`
	EstimatedHours float64 `json:"estimated_hours"`
	HoneyRequested *int64  `json:"honey_requested"`
}

func (r bidRequest) input() service.BidInput {
	return service.BidInput{
		Proposal:       r.Proposal,
		EstimatedHours: r.EstimatedHours,
		HoneyRequested: r.HoneyRequested,
	}
}

// PlaceBid POST /gigs/:id/bids
func (h *BidHandler) PlaceBid(c *gin.Context) {
	actor, gigID, ok := actorAndID(c, "id")
	if !ok {
		return
	}

	var req bidRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	bid, err := h.bids.PlaceBid(c.Request.Context(), actor, gigID, req.input())
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, bid)
}

// ListBids GET /gigs/:id/bids
func (h *BidHandler) ListBids(c *gin.Context) {
	actor, gigID, ok := actorAndID(c, "id")
	if !ok {
		return
	}

	bids, err := h.bids.ListBids(c.Request.Context(), actor, gigID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

// AcceptBid POST /gigs/:id/bids/:bidId/accept
func (h *BidHandler) AcceptBid(c *gin.Context) {
	actor, gigID, bidID, ok := actorAndIDs(c, "id", "bidId")
	if !ok {
		return
	}

	assignment, err := h.bids.AcceptBid(c.Request.Context(), actor, gigID, bidID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, assignment)
}

// UpdateBid PATCH /bids/:bidId
func (h *BidHandler) UpdateBid(c *gin.Context) {
	actor, bidID, ok := actorAndID(c, "bidId")
	if !ok {
		return
	}

	var req bidRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	bid, err := h.bids.UpdateBid(c.Request.Context(), actor, bidID, req.input())
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bid)
}

// WithdrawBid POST /bids/:bidId/withdraw
func (h *BidHandler) WithdrawBid(c *gin.Context) {
	actor, bidID, ok := actorAndID(c, "bidId")
	if !ok {
		return
	}

	bid, err := h.bids.WithdrawBid(c.Request.Context(), actor, bidID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bid)
}
