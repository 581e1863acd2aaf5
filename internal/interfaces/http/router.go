package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/facture-electronique/pkg/jwt"
)

// RouterDeps holds the use cases behind the API.
type RouterDeps struct {
	FacturX     FacturXService
	Submissions SubmissionService // nil disables /api/submissions
	JWTSecret   string
}

// Router registers the API routes. Everything under /api needs a Bearer token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	fx := api.Group("/facturx")
	fxHandler := NewFacturXHandler(deps.FacturX)
	fx.Post("/xml", fxHandler.GenerateXML)
	fx.Post("/validate", fxHandler.Validate)
	fx.Post("/pdf", RequireRole(jwt.RoleAdmin, jwt.RoleEmitter), fxHandler.BuildPDF)

	if deps.Submissions == nil {
		return
	}
	subs := api.Group("/submissions")
	subHandler := NewSubmissionHandler(deps.Submissions)
	subs.Get("/portals", subHandler.Portals)
	subs.Post("/:portal", RequireRole(jwt.RoleAdmin, jwt.RoleEmitter), subHandler.Submit)
	subs.Get("/:id", subHandler.Status)
}
