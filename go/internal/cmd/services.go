package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/earnplay/cardbattle/go/internal/game/bus"
	"github.com/earnplay/cardbattle/go/internal/game/engine"
	"github.com/earnplay/cardbattle/go/internal/game/gateway"
	"github.com/earnplay/cardbattle/go/internal/game/repository"
)

type Services struct {
	Engine  *engine.Engine
	Manager *gateway.Manager
	Handler *gateway.Handler
}

func setupServices(config Config, pool *pgxpool.Pool, eventBus *bus.Bus) *Services {
	// Database layer → engine → gateway
	repo := repository.NewRepository(pool)
	gameEngine := engine.New(config.Engine, repo, eventBus, clockwork.NewRealClock(), nil)

	manager := gateway.NewManager(gateway.DefaultConnectionConfig(), gameEngine)
	handler := gateway.NewHandler(manager)

	return &Services{
		Engine:  gameEngine,
		Manager: manager,
		Handler: handler,
	}
}
