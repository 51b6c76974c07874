// Package identity выпуск и проверка JWT участников. Сам вход (пароли, OAuth) живёт во внешнем
// сервисе, сюда приходят уже подписанные токены.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ignatzorin/hive-backend/internal/models"
)

// ErrInvalidToken токен не прошёл проверку.
var ErrInvalidToken = errors.New("invalid token")

// Claims клеймы токена участника.
type Claims struct {
	Kind models.ActorType `json:"kind"`
	Role string           `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager отвечает за выпуск и проверку JWT.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue выпускает токен для human или bee. Роль arbiter допустима только у human.
func (m *TokenManager) Issue(actor models.Actor) (string, error) {
	if actor.Type != models.ActorHuman && actor.Type != models.ActorBee {
		return "", fmt.Errorf("identity: нельзя выпустить токен для %s", actor.Type)
	}
	if actor.Role == models.RoleArbiter && actor.Type != models.ActorHuman {
		return "", fmt.Errorf("identity: роль arbiter только для human")
	}

	now := m.now()
	claims := Claims{
		Kind: actor.Type,
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ResolveActor проверяет подпись и срок и возвращает участника.
func (m *TokenManager) ResolveActor(token string) (models.Actor, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return models.Actor{}, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Actor{}, ErrInvalidToken
	}

	switch claims.Kind {
	case models.ActorHuman:
	case models.ActorBee:
		if claims.Role == models.RoleArbiter {
			return models.Actor{}, ErrInvalidToken
		}
	default:
		return models.Actor{}, ErrInvalidToken
	}

	return models.Actor{Type: claims.Kind, ID: id, Role: claims.Role}, nil
}
