// gigctl административные операции движка: прогон автоподтверждения из cron,
// решения арбитра, выплаты и миграции.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ignatzorin/hive-backend/internal/bootstrap"
	"github.com/ignatzorin/hive-backend/internal/config"
	"github.com/ignatzorin/hive-backend/internal/logger"
	"github.com/ignatzorin/hive-backend/internal/notify"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "gigctl",
		Usage: "hive gig engine admin tool",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
			},
		},
		Before: func(cctx *cli.Context) error {
			logger.Init(cctx.String("log-level"))
			logger.SetTextFormatter()
			logger.SetOutput(os.Stderr)
			return nil
		},
		Commands: []*cli.Command{
			cmdSweep,
			cmdResolveDispute,
			cmdMarkPaid,
			cmdRelease,
			cmdRefund,
			cmdMigrate,
			cmdToken,
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Log.WithError(err).Error("gigctl failed")
		os.Exit(1)
	}
}

// withEngine собирает движок по окружению. Уведомления CLI пишет в лог.
func withEngine(cctx *cli.Context, fn func(ctx context.Context, e *bootstrap.Engine) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StorageDriver != config.StorageDriverPostgres {
		return cli.Exit("gigctl работает только с STORAGE_DRIVER=postgres", 2)
	}

	ctx := cctx.Context
	dispatcher := notify.NewDispatcher(cfg.NotifyBuffer, 1, notify.LogSink{})
	dispatcher.Start(ctx)
	defer dispatcher.Close()

	e, err := bootstrap.Open(ctx, cfg, bootstrap.Options{Notifier: dispatcher})
	if err != nil {
		return err
	}
	defer e.Close()

	return fn(ctx, e)
}

func uuidFlag(cctx *cli.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(cctx.String(name))
	if err != nil {
		return uuid.Nil, cli.Exit("--"+name+" должен быть UUID", 2)
	}
	return id, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
