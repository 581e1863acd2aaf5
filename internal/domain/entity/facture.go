package entity

import (
	"github.com/shopspring/decimal"
)

// ModeDepot is how an invoice is deposited on the portal.
type ModeDepot string

const (
	ModeDepotSaisieAPI        ModeDepot = "SAISIE_API"
	ModeDepotDepotPDFAPI      ModeDepot = "DEPOT_PDF_API"
	ModeDepotDepotPDFSigneAPI ModeDepot = "DEPOT_PDF_SIGNE_API"
)

// CodeCadreFacturation identifies the billing frame (BT-23 business process).
type CodeCadreFacturation string

const (
	CadreA1FactureFournisseur          CodeCadreFacturation = "A1_FACTURE_FOURNISSEUR"
	CadreA2FactureFournisseurDejaPayee CodeCadreFacturation = "A2_FACTURE_FOURNISSEUR_DEJA_PAYEE"
	CadreA9FactureSousTraitant         CodeCadreFacturation = "A9_FACTURE_SOUSTRAITANT"
	CadreA12FactureCoTraitant          CodeCadreFacturation = "A12_FACTURE_COTRAITANT"
)

// RequiresValideur reports whether the frame needs a validating structure (sub/co-contracting).
func (c CodeCadreFacturation) RequiresValideur() bool {
	return c == CadreA9FactureSousTraitant || c == CadreA12FactureCoTraitant
}

// TypeFacture distinguishes invoices from credit notes.
type TypeFacture string

const (
	TypeFactureFacture TypeFacture = "FACTURE"
	TypeFactureAvoir   TypeFacture = "AVOIR"
)

// TypeTVA is the VAT regime of the invoice.
type TypeTVA string

const (
	TypeTVASurDebit        TypeTVA = "TVA_SUR_DEBIT"
	TypeTVASurEncaissement TypeTVA = "TVA_SUR_ENCAISSEMENT"
	TypeTVAExoneration     TypeTVA = "EXONERATION"
	TypeTVASansTVA         TypeTVA = "SANS_TVA"
)

// ModePaiement is the payment method.
type ModePaiement string

const (
	ModePaiementCheque      ModePaiement = "CHEQUE"
	ModePaiementPrelevement ModePaiement = "PRELEVEMENT"
	ModePaiementVirement    ModePaiement = "VIREMENT"
	ModePaiementEspece      ModePaiement = "ESPECE"
	ModePaiementAutre       ModePaiement = "AUTRE"
	ModePaiementReport      ModePaiement = "REPORT"
)

// CategorieTVA is the UNTDID 5305 VAT category code.
type CategorieTVA string

const (
	CategorieTVAStandard           CategorieTVA = "S"
	CategorieTVAZero               CategorieTVA = "Z"
	CategorieTVAExoneree           CategorieTVA = "E"
	CategorieTVAAutoliquidation    CategorieTVA = "AE"
	CategorieTVAIntracommunautaire CategorieTVA = "K"
	CategorieTVAExportation        CategorieTVA = "G"
	CategorieTVAHorsChamp          CategorieTVA = "O"
	CategorieTVAIlesCanaries       CategorieTVA = "L"
	CategorieTVACeutaMelilla       CategorieTVA = "M"
)

// Facture is the invoice as provided by the caller. Builders read it and never modify it.
type Facture struct {
	ModeDepot            ModeDepot          `json:"mode_depot"`
	NumeroFacture        string             `json:"numero_facture"`
	DateFacture          string             `json:"date_facture"`
	DateEcheancePaiement string             `json:"date_echeance_paiement,omitempty"`
	Commentaire          string             `json:"commentaire,omitempty"`
	IDUtilisateurCourant int64              `json:"id_utilisateur_courant,omitempty"`
	Destinataire         Destinataire       `json:"destinataire"`
	Fournisseur          Fournisseur        `json:"fournisseur"`
	CadreDeFacturation   CadreDeFacturation `json:"cadre_de_facturation"`
	References           References         `json:"references"`
	LignesDePoste        []LigneDePoste     `json:"lignes_de_poste"`
	LignesDeTVA          []LigneDeTVA       `json:"lignes_de_tva"`
	MontantTotal         MontantTotal       `json:"montant_total"`

	PiecesJointesPrincipales     []PieceJointePrincipale     `json:"pieces_jointes_principales,omitempty"`
	PiecesJointesComplementaires []PieceJointeComplementaire `json:"pieces_jointes_complementaires,omitempty"`
}

// AdresseElectronique is a party identifier with its scheme (e.g. 0009 for SIRET).
type AdresseElectronique struct {
	Identifiant string `json:"identifiant"`
	SchemeID    string `json:"scheme_id,omitempty"`
}

// AdressePostale is a postal address. Only the country is used by MINIMUM.
type AdressePostale struct {
	CodePostal  string `json:"code_postal,omitempty"`
	LigneUn     string `json:"ligne_un,omitempty"`
	LigneDeux   string `json:"ligne_deux,omitempty"`
	Ville       string `json:"ville,omitempty"`
	PaysCodeISO string `json:"pays_code_iso"`
}

// Destinataire is the buyer.
type Destinataire struct {
	AdresseElectronique  AdresseElectronique `json:"adresse_electronique"`
	Nom                  string              `json:"nom"`
	AdressePostale       AdressePostale      `json:"adresse_postale"`
	CodeServiceExecutant string              `json:"code_service_executant,omitempty"`
}

// Fournisseur is the seller.
type Fournisseur struct {
	IDFournisseur            int64               `json:"id_fournisseur"`
	IDServiceFournisseur     int64               `json:"id_service_fournisseur,omitempty"`
	CodeCoordonneesBancaires int64               `json:"code_coordonnees_bancaires_fournisseur,omitempty"`
	AdresseElectronique      AdresseElectronique `json:"adresse_electronique"`
	Nom                      string              `json:"nom"`
	NumeroTVAIntra           string              `json:"numero_tva_intra"`
	IBAN                     string              `json:"iban,omitempty"`
	AdressePostale           AdressePostale      `json:"adresse_postale"`
}

// CadreDeFacturation is the billing frame.
type CadreDeFacturation struct {
	Code                  CodeCadreFacturation `json:"code_cadre_facturation"`
	CodeServiceValideur   string               `json:"code_service_valideur,omitempty"`
	CodeStructureValideur string               `json:"code_structure_valideur,omitempty"`
}

// References groups the invoice-level references.
type References struct {
	DeviseFacture        string       `json:"devise_facture"`
	TypeFacture          TypeFacture  `json:"type_facture"`
	TypeTVA              TypeTVA      `json:"type_tva"`
	ModePaiement         ModePaiement `json:"mode_paiement"`
	NumeroBonCommande    string       `json:"numero_bon_commande,omitempty"`
	NumeroMarche         string       `json:"numero_marche,omitempty"`
	NumeroFactureOrigine string       `json:"numero_facture_origine,omitempty"`
	MotifExonerationTVA  string       `json:"motif_exoneration_tva,omitempty"`
}

// Devise returns the invoice currency, EUR when unset.
func (r References) Devise() string {
	if r.DeviseFacture == "" {
		return "EUR"
	}
	return r.DeviseFacture
}

// LigneDePoste is an invoice line. Amounts are per unit and exclusive of VAT.
type LigneDePoste struct {
	Numero              int              `json:"numero"`
	Reference           string           `json:"reference,omitempty"`
	Denomination        string           `json:"denomination"`
	Quantite            decimal.Decimal  `json:"quantite"`
	Unite               string           `json:"unite,omitempty"`
	MontantUnitaireHT   decimal.Decimal  `json:"montant_unitaire_ht"`
	MontantRemiseHT     *decimal.Decimal `json:"montant_remise_ht,omitempty"`
	TauxTVA             string           `json:"taux_tva,omitempty"`
	TauxTVAManuel       *decimal.Decimal `json:"taux_tva_manuel,omitempty"`
	CategorieTVA        CategorieTVA     `json:"categorie_tva,omitempty"`
	DateDebutPeriode    string           `json:"date_debut_periode,omitempty"`
	DateFinPeriode      string           `json:"date_fin_periode,omitempty"`
	CodeRaisonReduction string           `json:"code_raison_reduction,omitempty"`
	RaisonReduction     string           `json:"raison_reduction,omitempty"`
}

// Remise returns the per-unit discount, zero when absent.
func (l LigneDePoste) Remise() decimal.Decimal {
	if l.MontantRemiseHT == nil {
		return decimal.Zero
	}
	return *l.MontantRemiseHT
}

// QuantitePrecision is the number of decimals kept on billed quantities.
const QuantitePrecision = 4

// QuantiteFacturee is the quantity as emitted in the document.
func (l LigneDePoste) QuantiteFacturee() decimal.Decimal {
	return l.Quantite.Round(QuantitePrecision)
}

// PrixNet is the per-unit price after discount.
func (l LigneDePoste) PrixNet() decimal.Decimal {
	return l.MontantUnitaireHT.Sub(l.Remise())
}

// MontantNet is the line net total, quantity × (unit price − discount),
// rounded to cents. Header sums add these rounded values.
func (l LigneDePoste) MontantNet() decimal.Decimal {
	return l.PrixNet().Mul(l.QuantiteFacturee()).Round(2)
}

// MontantRemiseTotal is the line discount, discount per unit × quantity,
// rounded to cents.
func (l LigneDePoste) MontantRemiseTotal() decimal.Decimal {
	return l.Remise().Mul(l.QuantiteFacturee()).Round(2)
}

// LigneDeTVA is one VAT breakdown row per (rate, category).
type LigneDeTVA struct {
	MontantBaseHT decimal.Decimal  `json:"montant_base_ht"`
	MontantTVA    decimal.Decimal  `json:"montant_tva"`
	Taux          string           `json:"taux,omitempty"`
	TauxManuel    *decimal.Decimal `json:"taux_manuel,omitempty"`
	Categorie     CategorieTVA     `json:"categorie,omitempty"`
}

// MontantTotal is the monetary summary of the invoice.
type MontantTotal struct {
	MontantHTTotal          decimal.Decimal  `json:"montant_ht_total"`
	MontantTVA              decimal.Decimal  `json:"montant_tva"`
	MontantTTCTotal         decimal.Decimal  `json:"montant_ttc_total"`
	MontantAPayer           decimal.Decimal  `json:"montant_a_payer"`
	Acompte                 *decimal.Decimal `json:"acompte,omitempty"`
	MontantRemiseGlobaleTTC *decimal.Decimal `json:"montant_remise_globale_ttc,omitempty"`
	MotifRemiseGlobaleTTC   string           `json:"motif_remise_globale_ttc,omitempty"`
}

// RemiseGlobaleTTC returns the global discount, zero when absent.
func (m MontantTotal) RemiseGlobaleTTC() decimal.Decimal {
	if m.MontantRemiseGlobaleTTC == nil {
		return decimal.Zero
	}
	return *m.MontantRemiseGlobaleTTC
}

// MontantAcompte returns the prepaid amount, zero when absent.
func (m MontantTotal) MontantAcompte() decimal.Decimal {
	if m.Acompte == nil {
		return decimal.Zero
	}
	return *m.Acompte
}

// PieceJointePrincipale references the main attachment already uploaded to the portal.
type PieceJointePrincipale struct {
	Designation string `json:"piece_jointe_principale_designation"`
	ID          int64  `json:"piece_jointe_principale_id,omitempty"`
}

// PieceJointeComplementaire references an additional attachment.
type PieceJointeComplementaire struct {
	Designation        string `json:"piece_jointe_complementaire_designation"`
	ID                 int64  `json:"piece_jointe_complementaire_id"`
	IDLiaison          int64  `json:"piece_jointe_complementaire_id_liaison"`
	NumeroLigneFacture int    `json:"piece_jointe_complementaire_numero_ligne_facture"`
	Type               string `json:"piece_jointe_complementaire_type"`
}
