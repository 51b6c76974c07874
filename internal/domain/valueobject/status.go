package valueobject

import (
	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
)

// gigTransitions граф допустимых переходов задания. Всё, чего здесь нет, запрещено.
var gigTransitions = map[models.GigStatus][]models.GigStatus{
	models.GigStatusDraft:      {models.GigStatusOpen},
	models.GigStatusOpen:       {models.GigStatusInProgress, models.GigStatusCancelled},
	models.GigStatusInProgress: {models.GigStatusReview, models.GigStatusDisputed},
	models.GigStatusReview:     {models.GigStatusInProgress, models.GigStatusCompleted, models.GigStatusDisputed},
	models.GigStatusCompleted:  {models.GigStatusPaid, models.GigStatusDisputed},
	models.GigStatusDisputed:   {models.GigStatusCompleted, models.GigStatusCancelled},
	models.GigStatusPaid:       {},
	models.GigStatusCancelled:  {},
}

// CanTransition проверяет ребро графа.
func CanTransition(from, to models.GigStatus) bool {
	allowed, ok := gigTransitions[from]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == to {
			return true
		}
	}
	return false
}

// IsTerminal из терминального статуса выхода нет.
func IsTerminal(s models.GigStatus) bool {
	return s == models.GigStatusPaid || s == models.GigStatusCancelled
}

// IsValidGigStatus проверяет, что статус известен.
func IsValidGigStatus(s models.GigStatus) bool {
	_, ok := gigTransitions[s]
	return ok
}

// NewGigStatus разбирает статус из строки (фильтры списков).
func NewGigStatus(status string) (models.GigStatus, error) {
	s := models.GigStatus(status)
	if !IsValidGigStatus(s) {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус задания")
	}
	return s, nil
}

// AllowsDispute статусы, из которых можно открыть спор (completed дополнительно ограничен окном).
func AllowsDispute(s models.GigStatus) bool {
	return CanTransition(s, models.GigStatusDisputed)
}

// AcceptsDeliverables статусы, в которых пчела может отправить результат.
func AcceptsDeliverables(s models.GigStatus) bool {
	return s == models.GigStatusInProgress || s == models.GigStatusReview
}
