package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/facture-electronique/internal/application/dto"
	"github.com/jhoicas/facture-electronique/internal/application/submission"
	"github.com/jhoicas/facture-electronique/internal/domain"
	"github.com/jhoicas/facture-electronique/pkg/config"
)

// writeError maps domain errors to HTTP statuses:
// invalid data 400, Schematron failures 422, deployment defects 500,
// collaborator failures 502.
func writeError(c *fiber.Ctx, err error) error {
	var (
		xsltErr     *domain.XSLTValidationError
		invalidErr  *domain.InvalidDataFacturxError
		resourceErr *domain.ResourceError
		configErr   *config.ConfigError
		externalErr *domain.ExternalError
	)
	switch {
	case errors.As(err, &xsltErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Code:     "SCHEMATRON",
			Message:  xsltErr.Error(),
			Messages: xsltErr.Messages(),
		})
	case errors.As(err, &invalidErr),
		errors.Is(err, domain.ErrInvalidInvoice),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnknownProfile),
		errors.Is(err, domain.ErrUnknownPaymentMode):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.As(err, &resourceErr), errors.As(err, &configErr):
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "DEPLOYMENT", Message: err.Error()})
	case errors.Is(err, submission.ErrStatusUnsupported):
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Code: "UNSUPPORTED", Message: err.Error()})
	case errors.As(err, &externalErr):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "EXTERNAL", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
