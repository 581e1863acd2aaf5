package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/facture-electronique/internal/application/dto"
	appfx "github.com/jhoicas/facture-electronique/internal/application/facturx"
	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	"github.com/jhoicas/facture-electronique/internal/facturx"
)

// DigestHeader carries the canonical SHA-256 of the generated XML.
const DigestHeader = "X-Facturx-Digest"

// FacturXService is what the handler needs from the generation use case.
type FacturXService interface {
	GenerateXML(f *entity.Facture, p facturx.Profile) ([]byte, string, error)
	ValidateXML(ctx context.Context, xml []byte, p facturx.Profile) error
	BuildPDFBytes(ctx context.Context, f *entity.Facture, p facturx.Profile) ([]byte, *appfx.SaveResult, error)
}

// FacturXHandler exposes XML generation, validation and PDF builds.
type FacturXHandler struct {
	svc FacturXService
}

// NewFacturXHandler builds the handler.
func NewFacturXHandler(svc FacturXService) *FacturXHandler {
	return &FacturXHandler{svc: svc}
}

func profileParam(c *fiber.Ctx) (facturx.Profile, error) {
	var q dto.ProfileQuery
	if err := c.QueryParser(&q); err != nil || strings.TrimSpace(q.Profile) == "" {
		return facturx.ProfileEN16931, nil
	}
	return facturx.ParseProfile(q.Profile)
}

func parseFacture(c *fiber.Ctx) (*entity.Facture, error) {
	var f entity.Facture
	if err := c.BodyParser(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// GenerateXML godoc
// @Summary      Generate the Factur-X XML of an invoice
// @Tags         facturx
// @Security     Bearer
// @Accept       json
// @Produce      xml
// @Param        profile  query  string          false  "minimum | basic | en16931 | extended"
// @Param        body     body   entity.Facture  true   "Invoice"
// @Success      200
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/facturx/xml [post]
func (h *FacturXHandler) GenerateXML(c *fiber.Ctx) error {
	p, err := profileParam(c)
	if err != nil {
		return writeError(c, err)
	}
	f, err := parseFacture(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: err.Error()})
	}
	xml, digest, err := h.svc.GenerateXML(f, p)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(DigestHeader, digest)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	return c.Send(xml)
}

// Validate godoc
// @Summary      Validate a Factur-X XML document against the profile Schematron
// @Tags         facturx
// @Security     Bearer
// @Accept       xml
// @Produce      json
// @Param        profile  query  string  false  "minimum | basic | en16931 | extended"
// @Success      200  {object}  dto.ValidationResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/facturx/validate [post]
func (h *FacturXHandler) Validate(c *fiber.Ctx) error {
	p, err := profileParam(c)
	if err != nil {
		return writeError(c, err)
	}
	body := c.Body()
	if len(body) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "xml body required"})
	}
	if err := h.svc.ValidateXML(c.Context(), body, p); err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ValidationResponse{Valid: true, Profile: p.String()})
}

// BuildPDF godoc
// @Summary      Render, embed and return a Factur-X PDF/A-3
// @Tags         facturx
// @Security     Bearer
// @Accept       json
// @Produce      application/pdf
// @Param        profile  query  string          false  "minimum | basic | en16931 | extended"
// @Param        body     body   entity.Facture  true   "Invoice"
// @Success      200
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/facturx/pdf [post]
func (h *FacturXHandler) BuildPDF(c *fiber.Ctx) error {
	p, err := profileParam(c)
	if err != nil {
		return writeError(c, err)
	}
	f, err := parseFacture(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: err.Error()})
	}
	pdf, res, err := h.svc.BuildPDFBytes(c.Context(), f, p)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(DigestHeader, res.Digest)
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+safeFileName(f.NumeroFacture)+`.pdf"`)
	return c.Send(pdf)
}

func safeFileName(s string) string {
	if s == "" {
		return "factur-x"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
