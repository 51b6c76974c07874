package identity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/hive-backend/internal/models"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	bee := models.Bee(uuid.New())
	token, err := m.Issue(bee)
	require.NoError(t, err)

	actor, err := m.ResolveActor(token)
	require.NoError(t, err)
	assert.Equal(t, bee, actor)

	arbiter := models.Actor{Type: models.ActorHuman, ID: uuid.New(), Role: models.RoleArbiter}
	token, err = m.Issue(arbiter)
	require.NoError(t, err)
	actor, err = m.ResolveActor(token)
	require.NoError(t, err)
	assert.True(t, actor.IsArbiter())
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	token, err := m.Issue(models.Human(uuid.New()))
	require.NoError(t, err)

	other := NewTokenManager("another-secret", time.Hour)
	_, err = other.ResolveActor(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ResolveActor("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenManager("test-secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err = expired.Issue(models.Human(uuid.New()))
	require.NoError(t, err)
	_, err = m.ResolveActor(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_SystemAndBeeArbiterNotIssued(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	_, err := m.Issue(models.AutoApprovalActor())
	assert.Error(t, err)

	_, err = m.Issue(models.Actor{Type: models.ActorBee, ID: uuid.New(), Role: models.RoleArbiter})
	assert.Error(t, err)
}
