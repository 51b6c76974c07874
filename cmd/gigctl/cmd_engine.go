package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ignatzorin/hive-backend/internal/bootstrap"
	"github.com/ignatzorin/hive-backend/internal/db"
	"github.com/ignatzorin/hive-backend/internal/models"
	"github.com/ignatzorin/hive-backend/internal/service"
)

var cmdSweep = &cli.Command{
	Name:  "sweep",
	Usage: "Auto-approve deliverables the owner did not review in time",
	Action: func(cctx *cli.Context) error {
		return withEngine(cctx, func(ctx context.Context, e *bootstrap.Engine) error {
			report, err := e.Services.AutoApproval.Sweep(ctx)
			if err != nil {
				return err
			}
			if err := printJSON(report); err != nil {
				return err
			}
			if report.Failed > 0 {
				return cli.Exit(fmt.Sprintf("%d candidates failed", report.Failed), 1)
			}
			return nil
		})
	},
}

var cmdResolveDispute = &cli.Command{
	Name:  "resolve-dispute",
	Usage: "Resolve an open dispute as arbiter",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "id", Usage: "dispute id", Required: true},
		&cli.StringFlag{Name: "decision", Usage: "release | refund | split", Required: true},
		&cli.StringFlag{Name: "bee-share", Usage: "bee share for split, e.g. 0.6"},
		&cli.StringFlag{Name: "note", Usage: "resolution note"},
	},
	Action: func(cctx *cli.Context) error {
		id, err := uuidFlag(cctx, "id")
		if err != nil {
			return err
		}
		return withEngine(cctx, func(ctx context.Context, e *bootstrap.Engine) error {
			dispute, err := e.Services.Disputes.Resolve(ctx, models.ArbiterActor(), id, service.ResolveInput{
				Decision: cctx.String("decision"),
				Note:     cctx.String("note"),
				BeeShare: cctx.String("bee-share"),
			})
			if err != nil {
				return err
			}
			return printJSON(dispute)
		})
	},
}

// gigCommand операция арбитра над заданием по --gig.
func gigCommand(name, usage string, fn func(ctx context.Context, svc *service.Services, actor models.Actor, cctx *cli.Context) (any, error)) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "gig", Usage: "gig id", Required: true},
		},
		Action: func(cctx *cli.Context) error {
			if _, err := uuidFlag(cctx, "gig"); err != nil {
				return err
			}
			return withEngine(cctx, func(ctx context.Context, e *bootstrap.Engine) error {
				out, err := fn(ctx, e.Services, models.ArbiterActor(), cctx)
				if err != nil {
					return err
				}
				return printJSON(out)
			})
		},
	}
}

var cmdMarkPaid = gigCommand("mark-paid", "Mark a completed gig as paid out", func(ctx context.Context, svc *service.Services, actor models.Actor, cctx *cli.Context) (any, error) {
	id, _ := uuidFlag(cctx, "gig")
	return svc.Gigs.MarkPaid(ctx, actor, id)
})

var cmdRelease = gigCommand("release", "Release held escrow to the assigned bee", func(ctx context.Context, svc *service.Services, actor models.Actor, cctx *cli.Context) (any, error) {
	id, _ := uuidFlag(cctx, "gig")
	return svc.Escrow.Release(ctx, actor, id)
})

var cmdRefund = gigCommand("refund", "Refund held escrow to the owner (retries a failed refund)", func(ctx context.Context, svc *service.Services, actor models.Actor, cctx *cli.Context) (any, error) {
	id, _ := uuidFlag(cctx, "gig")
	return svc.Escrow.Refund(ctx, actor, id)
})

var cmdMigrate = &cli.Command{
	Name:  "migrate",
	Usage: "Apply pending SQL migrations",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "dry-run", Usage: "only list pending migrations"},
	},
	Action: func(cctx *cli.Context) error {
		return withEngine(cctx, func(ctx context.Context, e *bootstrap.Engine) error {
			if cctx.Bool("dry-run") {
				pending, err := db.PendingMigrations(ctx, e.DB, e.Config.MigrationsPath)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"pending": pending})
			}
			applied, err := db.RunMigrations(ctx, e.DB, e.Config.MigrationsPath)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"applied": applied})
		})
	},
}
