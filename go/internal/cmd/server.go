package main

import (
	"fmt"
	"net/http"

	"github.com/earnplay/cardbattle/go/internal/game/gateway"
)

func setupServer(config Config, services *Services) *http.Server {
	mux := http.NewServeMux()
	services.Handler.Routes(mux)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", config.Port),
		Handler: gateway.WithCORS(mux),
	}
}
