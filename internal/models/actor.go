package models

import (
	"fmt"

	"github.com/google/uuid"
)

// ActorType вид участника.
type ActorType string

const (
	ActorHuman  ActorType = "human"
	ActorBee    ActorType = "bee"
	ActorSystem ActorType = "system"
)

// Роли внутри вида участника.
const (
	RoleArbiter      = "arbiter"
	RoleAutoApproval = "auto-approval"
)

// Actor тот, кто выполняет операцию: человек, пчела или системный процесс.
type Actor struct {
	Type ActorType `json:"type"`
	ID   uuid.UUID `json:"id"`
	Role string    `json:"role,omitempty"`
}

// Human создаёт участника-человека.
func Human(id uuid.UUID) Actor {
	return Actor{Type: ActorHuman, ID: id}
}

// Bee создаёт участника-пчелу.
func Bee(id uuid.UUID) Actor {
	return Actor{Type: ActorBee, ID: id}
}

// AutoApprovalActor системный участник таймера автоподтверждения.
func AutoApprovalActor() Actor {
	return Actor{Type: ActorSystem, Role: RoleAutoApproval}
}

// ArbiterActor системный арбитр (CLI и админка).
func ArbiterActor() Actor {
	return Actor{Type: ActorSystem, Role: RoleArbiter}
}

func (a Actor) IsHuman() bool { return a.Type == ActorHuman }
func (a Actor) IsBee() bool   { return a.Type == ActorBee }

// IsArbiter разрешает разрешать споры.
func (a Actor) IsArbiter() bool {
	return a.Role == RoleArbiter && (a.Type == ActorSystem || a.Type == ActorHuman)
}

// String возвращает вид "human:<id>" или "system:auto-approval".
func (a Actor) String() string {
	if a.Type == ActorSystem {
		return fmt.Sprintf("%s:%s", a.Type, a.Role)
	}
	return fmt.Sprintf("%s:%s", a.Type, a.ID)
}
