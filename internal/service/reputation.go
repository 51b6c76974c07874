package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
	"github.com/ignatzorin/hive-backend/internal/repository"
)

// Пороги уровней: репутация и число завершённых заданий.
var levelThresholds = []struct {
	level      models.Level
	reputation int
	gigs       int
}{
	{models.LevelQueen, 500, 50},
	{models.LevelForager, 150, 15},
	{models.LevelWorker, 30, 3},
}

// ComputeReputation чистая функция от агрегатов участника.
func ComputeReputation(s models.PartyStats) (int, models.Level) {
	rep := 10*s.GigsCompleted + 5*s.DisputesWon - 15*s.DisputesLost + int(s.HoneyEarned/1000)
	if rep < 0 {
		rep = 0
	}
	for _, t := range levelThresholds {
		if rep >= t.reputation && s.GigsCompleted >= t.gigs {
			return rep, t.level
		}
	}
	return rep, models.LevelLarva
}

// applyStats прибавляет счётчики и пересчитывает репутацию в той же транзакции.
func applyStats(ctx context.Context, tx repository.Tx, partyType models.ActorType, partyID uuid.UUID, delta models.StatsDelta, now time.Time) error {
	if delta.IsZero() {
		return nil
	}
	stats, err := tx.ApplyStatsDelta(ctx, partyType, partyID, delta, now)
	if err != nil {
		return internal(err)
	}
	rep, level := ComputeReputation(*stats)
	if err := tx.SetReputation(ctx, partyType, partyID, rep, level, now); err != nil {
		return internal(err)
	}
	return nil
}

// ReputationService чтение агрегатов участников.
type ReputationService struct {
	*base
}

// GetStats агрегаты участника. Участник без истории получает нулевую запись уровня larva.
func (s *ReputationService) GetStats(ctx context.Context, partyType models.ActorType, partyID uuid.UUID) (*models.PartyStats, error) {
	if partyType != models.ActorHuman && partyType != models.ActorBee {
		return nil, validation("статистика ведётся только для людей и пчёл")
	}
	stats, err := s.store.GetPartyStats(ctx, partyType, partyID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.PartyStats{PartyType: partyType, PartyID: partyID, Level: models.LevelLarva}, nil
	}
	if err != nil {
		return nil, storeErr(err, apperror.ErrGigNotFound)
	}
	return stats, nil
}
