//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/pdcgo/procurement_service"
	"github.com/pdcgo/procurement_service/configs"
)

func InitializeMigration() (*Migration, error) {
	wire.Build(
		configs.NewProductionConfig,
		NewDatabase,
		procurement_service.NewMigrationHandler,
		procurement_service.NewSeedHandler,
		NewMigration,
	)

	return &Migration{}, nil
}
