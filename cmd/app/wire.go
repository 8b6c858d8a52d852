//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/pdcgo/procurement_service"
	"github.com/pdcgo/procurement_service/configs"
)

func InitializeApp() (*App, error) {
	wire.Build(
		configs.NewProductionConfig,
		NewLogger,
		NewDatabase,
		NewEngine,
		NewSweeper,
		NewHook,
		procurement_service.NewRegister,
		NewApp,
	)

	return &App{}, nil
}
