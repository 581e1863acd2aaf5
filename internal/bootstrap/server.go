package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpRouter "github.com/jhoicas/facture-electronique/internal/interfaces/http"
)

// SwaggerFile is served under /docs when present.
const SwaggerFile = "./docs/swagger.json"

// NewServer builds the Fiber app: /health, the Swagger UI and the API routes.
func NewServer(a *App) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      a.Config.App.Name,
		BodyLimit:    20 << 20,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute, // PDF builds shell out to gs and xmllint
		IdleTimeout:  60 * time.Second,
	})
	app.Use(recover.New())

	if _, err := os.Stat(SwaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: SwaggerFile,
			Path:     "docs",
			Title:    "Factur-X API",
		}))
	} else {
		a.Log.Warn().Str("file", SwaggerFile).Msg("swagger ui disabled")
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": a.Config.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		FacturX:     a.FacturX,
		Submissions: a.Submissions,
		JWTSecret:   a.Config.JWT.Secret,
	})
	return app
}

// ListenAndServe runs the API on cfg.HTTP until SIGINT or SIGTERM, then shuts
// down gracefully.
func ListenAndServe(a *App) error {
	app := NewServer(a)
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(a.Config.HTTP.Addr())
	}()
	a.Log.Info().Str("addr", a.Config.HTTP.Addr()).Msg("http server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	a.Log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		return err
	}
	a.Log.Info().Msg("http server stopped")
	return nil
}
