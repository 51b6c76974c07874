package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ignatzorin/hive-backend/internal/config"
	"github.com/ignatzorin/hive-backend/internal/identity"
	"github.com/ignatzorin/hive-backend/internal/models"
)

// cmdToken выпускает токен участника для локальной отладки API.
var cmdToken = &cli.Command{
	Name:  "token",
	Usage: "Issue an actor JWT signed with JWT_SECRET",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "kind", Usage: "human | bee", Value: string(models.ActorHuman)},
		&cli.StringFlag{Name: "id", Usage: "actor id, random when empty"},
		&cli.StringFlag{Name: "role", Usage: "arbiter (human only)"},
		&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
	},
	Action: func(cctx *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		id := uuid.New()
		if raw := cctx.String("id"); raw != "" {
			if id, err = uuid.Parse(raw); err != nil {
				return cli.Exit("--id должен быть UUID", 2)
			}
		}

		actor := models.Actor{Type: models.ActorType(cctx.String("kind")), ID: id, Role: cctx.String("role")}
		token, err := identity.NewTokenManager(cfg.JWTSecret, cctx.Duration("ttl")).Issue(actor)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}
