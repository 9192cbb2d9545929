package main

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/keeper-crm/keeper-back/internal/config"
	"github.com/keeper-crm/keeper-back/internal/db"
	"github.com/keeper-crm/keeper-back/internal/service"
	"github.com/keeper-crm/keeper-back/internal/storage"
	"github.com/keeper-crm/keeper-back/internal/transport"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.NewConfig,
			NewLogger,
			db.NewGormClient,
		),
		storage.Module,
		service.Module,
		fx.Provide(transport.NewHTTPServer),
		fx.Invoke(func(*transport.HTTPServer) {}),
	)

	app.Run()
}

func NewLogger() (*zap.SugaredLogger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
