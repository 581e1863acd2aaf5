package portal

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/facture-electronique/internal/domain/entity"
)

// number marshals a decimal as a bare JSON number.
type number decimal.Decimal

func (n number) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(n).String()), nil
}

func optNumber(d *decimal.Decimal) *number {
	if d == nil {
		return nil
	}
	n := number(*d)
	return &n
}

// ChorusInvoice is the body of /factures/v1/soumettre. Names follow the
// Chorus Pro API; fields only Factur-X needs (party names, seller SIRET,
// addresses) are not part of it.
type ChorusInvoice struct {
	CadreDeFacturation        chorusCadre                 `json:"cadreDeFacturation"`
	Commentaire               string                      `json:"commentaire,omitempty"`
	DateFacture               string                      `json:"dateFacture,omitempty"`
	Destinataire              chorusDestinataire          `json:"destinataire"`
	Fournisseur               chorusFournisseur           `json:"fournisseur"`
	IDUtilisateurCourant      int64                       `json:"idUtilisateurCourant"`
	LignePoste                []chorusLignePoste          `json:"lignePoste,omitempty"`
	LigneTva                  []chorusLigneTva            `json:"ligneTva,omitempty"`
	ModeDepot                 entity.ModeDepot            `json:"modeDepot"`
	MontantTotal              chorusMontantTotal          `json:"montantTotal"`
	NumeroFactureSaisi        string                      `json:"numeroFactureSaisi,omitempty"`
	PieceJointeComplementaire []chorusPieceComplementaire `json:"pieceJointeComplementaire,omitempty"`
	PieceJointePrincipale     []chorusPiecePrincipale     `json:"pieceJointePrincipale,omitempty"`
	References                chorusReferences            `json:"references"`
}

type chorusCadre struct {
	CodeCadreFacturation  entity.CodeCadreFacturation `json:"codeCadreFacturation"`
	CodeServiceValideur   string                      `json:"codeServiceValideur,omitempty"`
	CodeStructureValideur string                      `json:"codeStructureValideur,omitempty"`
}

type chorusDestinataire struct {
	CodeDestinataire     string `json:"codeDestinataire"`
	CodeServiceExecutant string `json:"codeServiceExecutant,omitempty"`
}

type chorusFournisseur struct {
	CodeCoordonneesBancairesFournisseur int64  `json:"codeCoordonneesBancairesFournisseur,omitempty"`
	IDFournisseur                       int64  `json:"idFournisseur"`
	IDServiceFournisseur                int64  `json:"idServiceFournisseur,omitempty"`
	NumeroTvaIntra                      string `json:"numeroTvaIntra,omitempty"`
}

type chorusLignePoste struct {
	LignePosteDenomination      string  `json:"lignePosteDenomination"`
	LignePosteMontantRemiseHT   *number `json:"lignePosteMontantRemiseHT,omitempty"`
	LignePosteMontantUnitaireHT number  `json:"lignePosteMontantUnitaireHT"`
	LignePosteNumero            int     `json:"lignePosteNumero"`
	LignePosteQuantite          number  `json:"lignePosteQuantite"`
	LignePosteReference         string  `json:"lignePosteReference,omitempty"`
	LignePosteTauxTva           string  `json:"lignePosteTauxTva,omitempty"`
	LignePosteTauxTvaManuel     *number `json:"lignePosteTauxTvaManuel,omitempty"`
	LignePosteUnite             string  `json:"lignePosteUnite,omitempty"`
}

type chorusLigneTva struct {
	LigneTvaMontantBaseHtParTaux number  `json:"ligneTvaMontantBaseHtParTaux"`
	LigneTvaMontantTvaParTaux    number  `json:"ligneTvaMontantTvaParTaux"`
	LigneTvaTaux                 string  `json:"ligneTvaTaux,omitempty"`
	LigneTvaTauxManuel           *number `json:"ligneTvaTauxManuel,omitempty"`
}

type chorusMontantTotal struct {
	MontantAPayer           number  `json:"montantAPayer"`
	MontantHtTotal          number  `json:"montantHtTotal"`
	MontantRemiseGlobaleTTC *number `json:"montantRemiseGlobaleTTC,omitempty"`
	MontantTVA              number  `json:"montantTVA"`
	MontantTtcTotal         number  `json:"montantTtcTotal"`
	MotifRemiseGlobaleTTC   string  `json:"motifRemiseGlobaleTTC,omitempty"`
}

type chorusPiecePrincipale struct {
	PieceJointePrincipaleDesignation string `json:"pieceJointePrincipaleDesignation"`
	PieceJointePrincipaleID          int64  `json:"pieceJointePrincipaleId,omitempty"`
}

type chorusPieceComplementaire struct {
	PieceJointeComplementaireDesignation        string `json:"pieceJointeComplementaireDesignation"`
	PieceJointeComplementaireID                 int64  `json:"pieceJointeComplementaireId"`
	PieceJointeComplementaireIDLiaison          int64  `json:"pieceJointeComplementaireIdLiaison"`
	PieceJointeComplementaireNumeroLigneFacture int    `json:"pieceJointeComplementaireNumeroLigneFacture"`
	PieceJointeComplementaireType               string `json:"pieceJointeComplementaireType"`
}

type chorusReferences struct {
	DeviseFacture        string              `json:"deviseFacture"`
	ModePaiement         entity.ModePaiement `json:"modePaiement"`
	MotifExonerationTva  string              `json:"motifExonerationTva,omitempty"`
	NumeroBonCommande    string              `json:"numeroBonCommande,omitempty"`
	NumeroFactureOrigine string              `json:"numeroFactureOrigine,omitempty"`
	NumeroMarche         string              `json:"numeroMarche,omitempty"`
	TypeFacture          entity.TypeFacture  `json:"typeFacture"`
	TypeTva              entity.TypeTVA      `json:"typeTva"`
}

// ChorusPayload maps an invoice to the Chorus Pro submission body. In
// SAISIE_API mode the portal numbers and dates the invoice itself.
func ChorusPayload(f *entity.Facture) ChorusInvoice {
	p := ChorusInvoice{
		CadreDeFacturation: chorusCadre{
			CodeCadreFacturation:  f.CadreDeFacturation.Code,
			CodeServiceValideur:   f.CadreDeFacturation.CodeServiceValideur,
			CodeStructureValideur: f.CadreDeFacturation.CodeStructureValideur,
		},
		Commentaire: f.Commentaire,
		Destinataire: chorusDestinataire{
			CodeDestinataire:     f.Destinataire.AdresseElectronique.Identifiant,
			CodeServiceExecutant: f.Destinataire.CodeServiceExecutant,
		},
		Fournisseur: chorusFournisseur{
			CodeCoordonneesBancairesFournisseur: f.Fournisseur.CodeCoordonneesBancaires,
			IDFournisseur:                       f.Fournisseur.IDFournisseur,
			IDServiceFournisseur:                f.Fournisseur.IDServiceFournisseur,
			NumeroTvaIntra:                      f.Fournisseur.NumeroTVAIntra,
		},
		IDUtilisateurCourant: f.IDUtilisateurCourant,
		ModeDepot:            f.ModeDepot,
		MontantTotal: chorusMontantTotal{
			MontantAPayer:           number(f.MontantTotal.MontantAPayer),
			MontantHtTotal:          number(f.MontantTotal.MontantHTTotal),
			MontantRemiseGlobaleTTC: optNumber(f.MontantTotal.MontantRemiseGlobaleTTC),
			MontantTVA:              number(f.MontantTotal.MontantTVA),
			MontantTtcTotal:         number(f.MontantTotal.MontantTTCTotal),
			MotifRemiseGlobaleTTC:   f.MontantTotal.MotifRemiseGlobaleTTC,
		},
		References: chorusReferences{
			DeviseFacture:        f.References.Devise(),
			ModePaiement:         f.References.ModePaiement,
			MotifExonerationTva:  f.References.MotifExonerationTVA,
			NumeroBonCommande:    f.References.NumeroBonCommande,
			NumeroFactureOrigine: f.References.NumeroFactureOrigine,
			NumeroMarche:         f.References.NumeroMarche,
			TypeFacture:          f.References.TypeFacture,
			TypeTva:              f.References.TypeTVA,
		},
	}
	if f.ModeDepot != entity.ModeDepotSaisieAPI {
		p.NumeroFactureSaisi = f.NumeroFacture
		p.DateFacture = f.DateFacture
	}

	for _, l := range f.LignesDePoste {
		p.LignePoste = append(p.LignePoste, chorusLignePoste{
			LignePosteDenomination:      l.Denomination,
			LignePosteMontantRemiseHT:   optNumber(l.MontantRemiseHT),
			LignePosteMontantUnitaireHT: number(l.MontantUnitaireHT),
			LignePosteNumero:            l.Numero,
			LignePosteQuantite:          number(l.Quantite),
			LignePosteReference:         l.Reference,
			LignePosteTauxTva:           l.TauxTVA,
			LignePosteTauxTvaManuel:     optNumber(l.TauxTVAManuel),
			LignePosteUnite:             l.Unite,
		})
	}
	for _, t := range f.LignesDeTVA {
		p.LigneTva = append(p.LigneTva, chorusLigneTva{
			LigneTvaMontantBaseHtParTaux: number(t.MontantBaseHT),
			LigneTvaMontantTvaParTaux:    number(t.MontantTVA),
			LigneTvaTaux:                 t.Taux,
			LigneTvaTauxManuel:           optNumber(t.TauxManuel),
		})
	}
	for _, pj := range f.PiecesJointesPrincipales {
		p.PieceJointePrincipale = append(p.PieceJointePrincipale, chorusPiecePrincipale{
			PieceJointePrincipaleDesignation: pj.Designation,
			PieceJointePrincipaleID:          pj.ID,
		})
	}
	for _, pj := range f.PiecesJointesComplementaires {
		p.PieceJointeComplementaire = append(p.PieceJointeComplementaire, chorusPieceComplementaire{
			PieceJointeComplementaireDesignation:        pj.Designation,
			PieceJointeComplementaireID:                 pj.ID,
			PieceJointeComplementaireIDLiaison:          pj.IDLiaison,
			PieceJointeComplementaireNumeroLigneFacture: pj.NumeroLigneFacture,
			PieceJointeComplementaireType:               pj.Type,
		})
	}
	return p
}
