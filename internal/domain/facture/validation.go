// Package facture holds the domain rules of an invoice, independent of any
// serialization. Code tables and normalization live in internal/facturx.
package facture

import (
	"errors"
	"fmt"

	"github.com/jhoicas/facture-electronique/internal/domain"
	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	"github.com/jhoicas/facture-electronique/internal/facturx"
)

// Validate checks the structural constraints of the model. Business rules of
// EN 16931 are left to the Schematron pass.
func Validate(f *entity.Facture) error {
	if f == nil {
		return fmt.Errorf("%w: nil invoice", domain.ErrInvalidInvoice)
	}
	var errs []error

	if f.DateFacture != "" {
		if _, err := facturx.Date(f.DateFacture); err != nil {
			errs = append(errs, fmt.Errorf("date_facture: %w", err))
		}
	}
	if f.DateEcheancePaiement != "" {
		if _, err := facturx.Date(f.DateEcheancePaiement); err != nil {
			errs = append(errs, fmt.Errorf("date_echeance_paiement: %w", err))
		}
	}
	if f.CadreDeFacturation.Code.RequiresValideur() && f.CadreDeFacturation.CodeStructureValideur == "" {
		errs = append(errs, fmt.Errorf("cadre %s requires code_structure_valideur", f.CadreDeFacturation.Code))
	}

	seen := make(map[int]bool, len(f.LignesDePoste))
	for _, l := range f.LignesDePoste {
		if seen[l.Numero] {
			errs = append(errs, fmt.Errorf("line %d: duplicate line number", l.Numero))
		}
		seen[l.Numero] = true
		if !l.Quantite.IsPositive() {
			errs = append(errs, fmt.Errorf("line %d: quantity must be strictly positive", l.Numero))
		}
		if !l.MontantUnitaireHT.IsPositive() {
			errs = append(errs, fmt.Errorf("line %d: unit price must be strictly positive", l.Numero))
		}
		if l.MontantRemiseHT != nil && l.MontantRemiseHT.IsNegative() {
			errs = append(errs, fmt.Errorf("line %d: discount must not be negative", l.Numero))
		}
		for _, d := range []string{l.DateDebutPeriode, l.DateFinPeriode} {
			if d == "" {
				continue
			}
			if _, err := facturx.Date(d); err != nil {
				errs = append(errs, fmt.Errorf("line %d: %w", l.Numero, err))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{domain.ErrInvalidInvoice}, errs...)...)
	}
	return nil
}

// CheckProfile applies the rules that depend on the target profile before any XML
// is produced. Profiles with line-level discounts cannot carry a global TTC discount;
// MINIMUM does not look at that field.
func CheckProfile(f *entity.Facture, p facturx.Profile) error {
	cfg := p.Config()
	if cfg.ForbidsGlobalDiscount && !f.MontantTotal.RemiseGlobaleTTC().IsZero() {
		return &domain.InvalidDataFacturxError{
			Profile: cfg.Name,
			Field:   "montant_total.montant_remise_globale_ttc",
			Reason:  "a global TTC discount must be spread over line discounts for this profile",
		}
	}
	return nil
}
