package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/hive-backend/internal/http/handlers/common"
	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
)

// actorAndID участник из контекста и UUID из пути. При ошибке ответ уже отправлен в ErrorHandler.
func actorAndID(c *gin.Context, param string) (models.Actor, uuid.UUID, bool) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.Fail(c, err)
		return models.Actor{}, uuid.Nil, false
	}
	id, err := common.ParseUUIDParam(c, param)
	if err != nil {
		common.Fail(c, err)
		return models.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

// actorAndIDs то же для двух параметров пути.
func actorAndIDs(c *gin.Context, first, second string) (models.Actor, uuid.UUID, uuid.UUID, bool) {
	actor, a, ok := actorAndID(c, first)
	if !ok {
		return models.Actor{}, uuid.Nil, uuid.Nil, false
	}
	b, err := common.ParseUUIDParam(c, second)
	if err != nil {
		common.Fail(c, err)
		return models.Actor{}, uuid.Nil, uuid.Nil, false
	}
	return actor, a, b, true
}

func validationErr(msg string) error {
	return apperror.New(apperror.ErrCodeValidation, msg)
}
