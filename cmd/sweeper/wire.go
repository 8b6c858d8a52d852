//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/pdcgo/procurement_service/configs"
)

func InitializeSweeper() (*SweeperApp, error) {
	wire.Build(
		configs.NewProductionConfig,
		NewLogger,
		NewDatabase,
		NewSweeper,
		NewHook,
		NewSweeperApp,
	)

	return &SweeperApp{}, nil
}
