// Package schematron validates Factur-X XML against the official Schematron
// rules, compiled to XSLT and shipped as installation resources.
package schematron

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jhoicas/facture-electronique/internal/domain"
	"github.com/jhoicas/facture-electronique/internal/facturx"
	"github.com/jhoicas/facture-electronique/pkg/logger"
)

// Validator runs the profile stylesheet over a document and reports failed asserts.
type Validator struct {
	resources   fs.FS
	transformer Transformer
	log         *logger.Logger
}

// NewValidator creates a validator reading stylesheets from resources.
func NewValidator(resources fs.FS, t Transformer, log *logger.Logger) *Validator {
	if log == nil {
		log = logger.Nop()
	}
	return &Validator{resources: resources, transformer: t, log: log}
}

// Validate returns nil when every assertion holds, *domain.XSLTValidationError
// listing all failures otherwise. A missing stylesheet is a *domain.ResourceError.
// The stylesheet is read on every call.
func (v *Validator) Validate(ctx context.Context, xml []byte, p facturx.Profile) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", domain.ErrUnknownProfile, int(p))
	}
	cfg := p.Config()

	stylesheet, err := fs.ReadFile(v.resources, cfg.SchematronResource)
	if err != nil {
		cause := err
		if errors.Is(err, fs.ErrNotExist) {
			cause = domain.ErrResourceNotFound
		}
		return &domain.ResourceError{Kind: "schematron stylesheet", Path: cfg.SchematronResource, Err: cause}
	}

	report, err := v.transformer.Transform(ctx, stylesheet, xml)
	if err != nil {
		return err
	}
	asserts, err := ParseSVRL(report)
	if err != nil {
		return &domain.ExternalError{Collaborator: "schematron", Err: err}
	}

	if len(asserts) > 0 {
		v.log.Debug().
			Str("profile", cfg.Name).
			Int("failed_asserts", len(asserts)).
			Msg("schematron validation failed")
		return &domain.XSLTValidationError{Profile: cfg.Name, Asserts: asserts}
	}
	v.log.Debug().Str("profile", cfg.Name).Msg("schematron validation passed")
	return nil
}
