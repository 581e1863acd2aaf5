package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/facture-electronique/internal/application/dto"
	"github.com/jhoicas/facture-electronique/internal/domain/entity"
)

// SubmissionService is what the handler needs from the submission use case.
type SubmissionService interface {
	Submit(ctx context.Context, portal string, f *entity.Facture) (*entity.Submission, error)
	Status(ctx context.Context, id string) (*entity.Submission, error)
	Portals() []string
}

// SubmissionHandler sends invoices to the portals.
type SubmissionHandler struct {
	uc SubmissionService
}

// NewSubmissionHandler builds the handler.
func NewSubmissionHandler(uc SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{uc: uc}
}

// Portals godoc
// @Summary      List configured portals
// @Tags         submissions
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.PortalsResponse
// @Router       /api/submissions/portals [get]
func (h *SubmissionHandler) Portals(c *fiber.Ctx) error {
	return c.JSON(dto.PortalsResponse{Portals: h.uc.Portals()})
}

// Submit godoc
// @Summary      Submit an invoice to a portal
// @Tags         submissions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        portal  path  string          true  "chorus-pro | pennylane | sage"
// @Param        body    body  entity.Facture  true  "Invoice"
// @Success      201  {object}  entity.Submission
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/submissions/{portal} [post]
func (h *SubmissionHandler) Submit(c *fiber.Ctx) error {
	var f entity.Facture
	if err := c.BodyParser(&f); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: err.Error()})
	}
	s, err := h.uc.Submit(c.Context(), c.Params("portal"), &f)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s)
}

// Status godoc
// @Summary      Refresh and return a submission status
// @Tags         submissions
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "Submission id"
// @Success      200  {object}  entity.Submission
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      501  {object}  dto.ErrorResponse
// @Router       /api/submissions/{id} [get]
func (h *SubmissionHandler) Status(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id is required"})
	}
	s, err := h.uc.Status(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(s)
}
