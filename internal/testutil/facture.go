// Package testutil provides invoice fixtures shared by package tests.
package testutil

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/facture-electronique/internal/domain/entity"
)

// Dec parses a decimal literal and panics on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DecPtr is Dec returning a pointer, for optional fields.
func DecPtr(s string) *decimal.Decimal {
	d := Dec(s)
	return &d
}

// SampleFacture returns a one-line EN16931-valid invoice: 10 × 100.00 at 20 %.
func SampleFacture() *entity.Facture {
	return &entity.Facture{
		ModeDepot:            entity.ModeDepotDepotPDFAPI,
		NumeroFacture:        "FA-2024-001",
		DateFacture:          "2024-10-26",
		DateEcheancePaiement: "2024-11-26",
		Commentaire:          "Merci pour votre confiance",
		Destinataire: entity.Destinataire{
			AdresseElectronique:  entity.AdresseElectronique{Identifiant: "12345678901234", SchemeID: "0009"},
			Nom:                  "Acheteur SA",
			AdressePostale:       entity.AdressePostale{CodePostal: "75001", LigneUn: "1 rue de Rivoli", Ville: "Paris", PaysCodeISO: "FR"},
			CodeServiceExecutant: "SERVICE-01",
		},
		Fournisseur: entity.Fournisseur{
			IDFournisseur:       123,
			AdresseElectronique: entity.AdresseElectronique{Identifiant: "11122233300011", SchemeID: "0009"},
			Nom:                 "Vendeur SAS",
			NumeroTVAIntra:      "FR12111222333",
			IBAN:                "FR7630006000011234567890189",
			AdressePostale:      entity.AdressePostale{CodePostal: "69002", LigneUn: "10 quai Rambaud", Ville: "Lyon", PaysCodeISO: "FR"},
		},
		CadreDeFacturation: entity.CadreDeFacturation{Code: entity.CadreA1FactureFournisseur},
		References: entity.References{
			DeviseFacture:     "EUR",
			TypeFacture:       entity.TypeFactureFacture,
			TypeTVA:           entity.TypeTVASurDebit,
			ModePaiement:      entity.ModePaiementVirement,
			NumeroBonCommande: "BC-456",
		},
		LignesDePoste: []entity.LigneDePoste{
			{
				Numero:            1,
				Reference:         "REF001",
				Denomination:      "Produit 1",
				Quantite:          Dec("10"),
				Unite:             "pce",
				MontantUnitaireHT: Dec("100.0"),
				CategorieTVA:      entity.CategorieTVAStandard,
				TauxTVAManuel:     DecPtr("20"),
			},
		},
		LignesDeTVA: []entity.LigneDeTVA{
			{
				MontantBaseHT: Dec("1000.0"),
				MontantTVA:    Dec("200.0"),
				Categorie:     entity.CategorieTVAStandard,
				TauxManuel:    DecPtr("20"),
			},
		},
		MontantTotal: entity.MontantTotal{
			MontantHTTotal:  Dec("1000.0"),
			MontantTVA:      Dec("200.0"),
			MontantTTCTotal: Dec("1200.0"),
			MontantAPayer:   Dec("1200.0"),
		},
	}
}

// WithLines returns f with n copies of its first line, numbered 1..n, and the
// totals and VAT summary adjusted to match.
func WithLines(f *entity.Facture, n int) *entity.Facture {
	base := f.LignesDePoste[0]
	lines := make([]entity.LigneDePoste, 0, n)
	ht := decimal.Zero
	for i := 1; i <= n; i++ {
		l := base
		l.Numero = i
		lines = append(lines, l)
		ht = ht.Add(l.MontantNet())
	}
	vat := ht.Mul(Dec("0.20"))
	f.LignesDePoste = lines
	f.LignesDeTVA = []entity.LigneDeTVA{{MontantBaseHT: ht, MontantTVA: vat, Categorie: entity.CategorieTVAStandard, TauxManuel: DecPtr("20")}}
	f.MontantTotal.MontantHTTotal = ht
	f.MontantTotal.MontantTVA = vat
	f.MontantTotal.MontantTTCTotal = ht.Add(vat)
	f.MontantTotal.MontantAPayer = ht.Add(vat)
	return f
}
