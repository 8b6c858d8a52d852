// Standalone sweeper runner for deployments that scale escalation separately
// from the API surface.
package main

import (
	"context"

	"github.com/pdcgo/procurement_service/common"
	"github.com/pdcgo/procurement_service/configs"
	"github.com/pdcgo/procurement_service/escalation"
	"github.com/pdcgo/procurement_service/notification"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func NewLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func NewDatabase(cfg *configs.AppConfig) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.Database.DSN))
	default:
		return gorm.Open(postgres.Open(cfg.Database.DSN))
	}
}

func NewSweeper(cfg *configs.AppConfig, db *gorm.DB, log *zap.Logger) *escalation.Sweeper {
	return escalation.NewSweeper(db, common.NewUnitService(db), log, cfg.Sweeper.Interval)
}

func NewHook(cfg *configs.AppConfig, log *zap.Logger) *notification.Hook {
	dispatch := notification.NopDispatcher
	if cfg.Notification.WebhookURL != "" {
		dispatch = notification.WebhookDispatcher(cfg.Notification.WebhookURL, cfg.Notification.Timeout)
	}
	return notification.NewHook(log, dispatch)
}

type SweeperApp struct {
	Run func() error
}

func NewSweeperApp(
	sweeper *escalation.Sweeper,
	hook *notification.Hook,
	log *zap.Logger,
) *SweeperApp {
	return &SweeperApp{
		Run: func() error {
			hook.Register("notification")
			defer hook.Close()

			log.Info("sweeper running")
			return sweeper.Run(context.Background())
		},
	}
}

func main() {
	app, err := InitializeSweeper()
	if err != nil {
		panic(err)
	}

	err = app.Run()
	if err != nil {
		panic(err)
	}
}
