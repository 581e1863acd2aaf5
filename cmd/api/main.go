// @title                       Factur-X API
// @version                     1.0
// @description                 Factur-X generation, validation and portal submission.
// @BasePath                    /
// @securityDefinitions.apikey  Bearer
// @in                          header
// @name                        Authorization
package main

import (
	"context"

	_ "github.com/jhoicas/facture-electronique/docs"
	"github.com/jhoicas/facture-electronique/internal/bootstrap"
	"github.com/jhoicas/facture-electronique/pkg/config"
	"github.com/jhoicas/facture-electronique/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load configuration: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("starting")

	if err := cfg.Require("JWT_SECRET"); err != nil {
		log.Fatal().Err(err).Msg("configuration")
	}

	a, err := bootstrap.New(context.Background(), cfg, log, bootstrap.Options{Ledger: true, Portals: true})
	if err != nil {
		log.Fatal().Err(err).Msg("wiring")
	}
	defer a.Close()

	if err := bootstrap.ListenAndServe(a); err != nil {
		log.Error().Err(err).Msg("http server")
	}
}
