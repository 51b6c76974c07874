package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/hive-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hive-backend/internal/service"
)

// StatsHandler репутация участников и ручной запуск автоподтверждения.
type StatsHandler struct {
	reputation   *service.ReputationService
	autoApproval *service.AutoApprovalService
}

func NewStatsHandler(reputation *service.ReputationService, autoApproval *service.AutoApprovalService) *StatsHandler {
	return &StatsHandler{reputation: reputation, autoApproval: autoApproval}
}

// GetStats GET /stats/:type/:id
func (h *StatsHandler) GetStats(c *gin.Context) {
	partyID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	stats, err := h.reputation.GetStats(c.Request.Context(), models.ActorType(c.Param("type")), partyID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Sweep POST /admin/sweep
func (h *StatsHandler) Sweep(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	if !actor.IsArbiter() {
		common.Fail(c, apperror.ErrForbidden)
		return
	}

	report, err := h.autoApproval.Sweep(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
