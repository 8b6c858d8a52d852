package main

import (
	"github.com/pdcgo/procurement_service"
	"github.com/pdcgo/procurement_service/configs"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func NewDatabase(cfg *configs.AppConfig) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.Database.DSN))
	default:
		return gorm.Open(postgres.Open(cfg.Database.DSN))
	}
}

type Migration struct {
	Run func() error
}

func NewMigration(
	migrate procurement_service.MigrationHandler,
	seed procurement_service.SeedHandler,
) *Migration {
	return &Migration{
		Run: func() error {
			err := migrate()
			if err != nil {
				return err
			}

			return seed()
		},
	}
}

func main() {
	mig, err := InitializeMigration()
	if err != nil {
		panic(err)
	}

	err = mig.Run()
	if err != nil {
		panic(err)
	}
}
