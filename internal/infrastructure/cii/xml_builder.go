// Package cii builds and serializes UN/CEFACT Cross Industry Invoice documents
// for the Factur-X profiles.
package cii

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	"github.com/jhoicas/facture-electronique/internal/domain/facture"
	"github.com/jhoicas/facture-electronique/internal/facturx"
)

// Scheme identifiers used on party ids.
const (
	SchemeLegalOrganization = "0002"
	SchemeVAT               = "VA"
	TaxTypeVAT              = "VAT"
)

// XMLBuilder produces the CII tree of an invoice for a given profile. One builder
// serves every profile; the profile configuration decides which sections appear.
type XMLBuilder struct {
	now func() time.Time
}

// NewXMLBuilder creates the builder.
func NewXMLBuilder() *XMLBuilder {
	return &XMLBuilder{now: time.Now}
}

// WithClock sets the clock used when an invoice has no issue date.
func (b *XMLBuilder) WithClock(now func() time.Time) *XMLBuilder {
	b.now = now
	return b
}

// Build returns the document tree for f under profile p. f is not modified.
func (b *XMLBuilder) Build(f *entity.Facture, p facturx.Profile) (*etree.Document, error) {
	if f == nil {
		return nil, fmt.Errorf("cii: nil invoice")
	}
	if !p.Valid() {
		return nil, fmt.Errorf("cii: invalid profile %d", int(p))
	}
	if err := facture.Validate(f); err != nil {
		return nil, err
	}
	if err := facture.CheckProfile(f, p); err != nil {
		return nil, err
	}

	issue := f.DateFacture
	if issue == "" {
		issue = b.now().Format("2006-01-02")
	}
	issueDate, err := facturx.Date(issue)
	if err != nil {
		return nil, err
	}

	db := &docBuilder{f: f, cfg: p.Config(), issueDate: issueDate}
	return db.build()
}

// docBuilder carries the state of a single Build call.
type docBuilder struct {
	f         *entity.Facture
	cfg       facturx.ProfileConfig
	issueDate string // format 102
}

func (d *docBuilder) build() (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("rsm:CrossIndustryInvoice")
	for _, ns := range d.cfg.Namespaces {
		root.CreateAttr("xmlns:"+ns.Prefix, ns.URI)
	}

	d.writeContext(root)
	d.writeExchangedDocument(root)

	tx := root.CreateElement("rsm:SupplyChainTradeTransaction")
	if d.cfg.IncludesLineItems {
		for _, line := range d.f.LignesDePoste {
			if err := d.writeLineItem(tx, line); err != nil {
				return nil, err
			}
		}
	}
	d.writeAgreement(tx)
	// Empty delivery block: mandatory in every profile.
	tx.CreateElement("ram:ApplicableHeaderTradeDelivery")
	if err := d.writeSettlement(tx); err != nil {
		return nil, err
	}
	return doc, nil
}

// ---- rsm:ExchangedDocumentContext (BG-2)

func (d *docBuilder) writeContext(root *etree.Element) {
	ctx := root.CreateElement("rsm:ExchangedDocumentContext")
	if code := d.f.CadreDeFacturation.Code; code != "" {
		setText(ctx.CreateElement("ram:BusinessProcessSpecifiedDocumentContextParameter"), "ram:ID", string(code))
	}
	setText(ctx.CreateElement("ram:GuidelineSpecifiedDocumentContextParameter"), "ram:ID", d.cfg.URN)
}

// ---- rsm:ExchangedDocument (BT-1, BT-2, BT-3, BG-1)

func (d *docBuilder) writeExchangedDocument(root *etree.Element) {
	doc := root.CreateElement("rsm:ExchangedDocument")
	setText(doc, "ram:ID", d.f.NumeroFacture)
	setText(doc, "ram:TypeCode", facturx.TypeCode(d.f.References.TypeFacture))
	writeDateTime(doc, "ram:IssueDateTime", d.issueDate)
	if d.cfg.IncludesNote && strings.TrimSpace(d.f.Commentaire) != "" {
		setText(doc.CreateElement("ram:IncludedNote"), "ram:Content", d.f.Commentaire)
	}
}

// ---- ram:IncludedSupplyChainTradeLineItem (BG-25)

func (d *docBuilder) writeLineItem(tx *etree.Element, l entity.LigneDePoste) error {
	item := tx.CreateElement("ram:IncludedSupplyChainTradeLineItem")
	setText(item.CreateElement("ram:AssociatedDocumentLineDocument"), "ram:LineID", fmt.Sprintf("%d", l.Numero))
	setText(item.CreateElement("ram:SpecifiedTradeProduct"), "ram:Name", productName(l))

	remise := l.Remise()
	agreement := item.CreateElement("ram:SpecifiedLineTradeAgreement")
	gross := agreement.CreateElement("ram:GrossPriceProductTradePrice")
	setAmount(gross, "ram:ChargeAmount", l.MontantUnitaireHT)
	if !remise.IsZero() {
		writeAllowance(gross, "ram:AppliedTradeAllowanceCharge", allowance{amount: remise})
	}
	setAmount(agreement.CreateElement("ram:NetPriceProductTradePrice"), "ram:ChargeAmount", l.PrixNet())

	qty := setText(item.CreateElement("ram:SpecifiedLineTradeDelivery"), "ram:BilledQuantity", facturx.Quantity(l.Quantite))
	qty.CreateAttr("unitCode", facturx.UnitCode(l.Unite))

	settlement := item.CreateElement("ram:SpecifiedLineTradeSettlement")
	category, err := facturx.VATCategoryCode(l.CategorieTVA)
	if err != nil {
		return fmt.Errorf("line %d: %w", l.Numero, err)
	}
	tax := settlement.CreateElement("ram:ApplicableTradeTax")
	setText(tax, "ram:TypeCode", TaxTypeVAT)
	setText(tax, "ram:CategoryCode", category)
	if l.TauxTVA != "" || l.TauxTVAManuel != nil {
		rate, err := facturx.VATRate(l.TauxTVA, l.TauxTVAManuel)
		if err != nil {
			return fmt.Errorf("line %d: %w", l.Numero, err)
		}
		setText(tax, "ram:RateApplicablePercent", facturx.Percent(rate))
	}

	start, end := d.issueDate, d.issueDate
	if l.DateDebutPeriode != "" {
		if start, err = facturx.Date(l.DateDebutPeriode); err != nil {
			return fmt.Errorf("line %d: %w", l.Numero, err)
		}
	}
	if l.DateFinPeriode != "" {
		if end, err = facturx.Date(l.DateFinPeriode); err != nil {
			return fmt.Errorf("line %d: %w", l.Numero, err)
		}
	}
	period := settlement.CreateElement("ram:BillingSpecifiedPeriod")
	writeDateTime(period, "ram:StartDateTime", start)
	writeDateTime(period, "ram:EndDateTime", end)

	if !remise.IsZero() {
		writeAllowance(settlement, "ram:SpecifiedTradeAllowanceCharge", allowance{
			amount:     l.MontantRemiseTotal(),
			reasonCode: l.CodeRaisonReduction,
			reason:     l.RaisonReduction,
		})
	}
	setAmount(settlement.CreateElement("ram:SpecifiedTradeSettlementLineMonetarySummation"), "ram:LineTotalAmount", l.MontantNet())
	return nil
}

func productName(l entity.LigneDePoste) string {
	return strings.TrimSpace(l.Reference + " " + l.Denomination)
}

// allowance holds the source values of one allowance block. Gross-price and
// line-level allowances are each built from their own value.
type allowance struct {
	amount     decimal.Decimal
	reasonCode string
	reason     string
}

func writeAllowance(parent *etree.Element, tag string, a allowance) {
	el := parent.CreateElement(tag)
	setText(el.CreateElement("ram:ChargeIndicator"), "udt:Indicator", "false")
	setAmount(el, "ram:ActualAmount", a.amount)
	if a.reasonCode != "" {
		setText(el, "ram:ReasonCode", a.reasonCode)
	}
	if a.reason != "" {
		setText(el, "ram:Reason", a.reason)
	}
}

// ---- ram:ApplicableHeaderTradeAgreement (BT-10, BT-13, BG-4, BG-7)

func (d *docBuilder) writeAgreement(tx *etree.Element) {
	agreement := tx.CreateElement("ram:ApplicableHeaderTradeAgreement")
	if ref := d.f.Destinataire.CodeServiceExecutant; ref != "" {
		setText(agreement, "ram:BuyerReference", ref)
	}

	seller := agreement.CreateElement("ram:SellerTradeParty")
	setText(seller, "ram:Name", d.f.Fournisseur.Nom)
	writeLegalOrganization(seller, d.f.Fournisseur.AdresseElectronique)
	d.writeAddress(seller, d.f.Fournisseur.AdressePostale)
	if vat := d.f.Fournisseur.NumeroTVAIntra; vat != "" {
		id := setText(seller.CreateElement("ram:SpecifiedTaxRegistration"), "ram:ID", vat)
		id.CreateAttr("schemeID", SchemeVAT)
	}

	buyer := agreement.CreateElement("ram:BuyerTradeParty")
	setText(buyer, "ram:Name", d.f.Destinataire.Nom)
	writeLegalOrganization(buyer, d.f.Destinataire.AdresseElectronique)
	// The MINIMUM schema has no buyer address.
	if d.cfg.IncludesFullAddress {
		d.writeAddress(buyer, d.f.Destinataire.AdressePostale)
	}

	if po := d.f.References.NumeroBonCommande; po != "" {
		setText(agreement.CreateElement("ram:BuyerOrderReferencedDocument"), "ram:IssuerAssignedID", po)
	}
}

func writeLegalOrganization(party *etree.Element, addr entity.AdresseElectronique) {
	id := setText(party.CreateElement("ram:SpecifiedLegalOrganization"), "ram:ID", addr.Identifiant)
	id.CreateAttr("schemeID", SchemeLegalOrganization)
}

func (d *docBuilder) writeAddress(party *etree.Element, a entity.AdressePostale) {
	addr := party.CreateElement("ram:PostalTradeAddress")
	if d.cfg.IncludesFullAddress {
		if a.CodePostal != "" {
			setText(addr, "ram:PostcodeCode", a.CodePostal)
		}
		if a.LigneUn != "" {
			setText(addr, "ram:LineOne", a.LigneUn)
		}
		if a.LigneDeux != "" {
			setText(addr, "ram:LineTwo", a.LigneDeux)
		}
		if a.Ville != "" {
			setText(addr, "ram:CityName", a.Ville)
		}
	}
	setText(addr, "ram:CountryID", a.PaysCodeISO)
}

// ---- ram:ApplicableHeaderTradeSettlement (BT-5, BG-16, BG-23, BG-20, BG-22)

func (d *docBuilder) writeSettlement(tx *etree.Element) error {
	settlement := tx.CreateElement("ram:ApplicableHeaderTradeSettlement")
	currency := d.f.References.Devise()
	setText(settlement, "ram:InvoiceCurrencyCode", currency)

	if d.cfg.IncludesPaymentMeans {
		code, err := facturx.PaymentMeansCode(d.f.References.ModePaiement)
		if err != nil {
			return err
		}
		means := settlement.CreateElement("ram:SpecifiedTradeSettlementPaymentMeans")
		setText(means, "ram:TypeCode", code)
		if iban := d.f.Fournisseur.IBAN; iban != "" {
			setText(means.CreateElement("ram:PayeePartyCreditorFinancialAccount"), "ram:IBANID", strings.ReplaceAll(iban, " ", ""))
		}
	}

	if d.cfg.IncludesTaxBreakdown {
		for i, vat := range d.f.LignesDeTVA {
			if err := d.writeHeaderTax(settlement, vat); err != nil {
				return fmt.Errorf("vat line %d: %w", i+1, err)
			}
		}
	}

	if d.cfg.IncludesPaymentTerms && d.f.DateEcheancePaiement != "" {
		due, err := facturx.Date(d.f.DateEcheancePaiement)
		if err != nil {
			return err
		}
		writeDateTime(settlement.CreateElement("ram:SpecifiedTradePaymentTerms"), "ram:DueDateDateTime", due)
	}

	d.writeMonetarySummation(settlement, currency)
	return nil
}

func (d *docBuilder) writeHeaderTax(settlement *etree.Element, vat entity.LigneDeTVA) error {
	category, err := facturx.VATCategoryCode(vat.Categorie)
	if err != nil {
		return err
	}
	tax := settlement.CreateElement("ram:ApplicableTradeTax")
	setAmount(tax, "ram:CalculatedAmount", vat.MontantTVA)
	setText(tax, "ram:TypeCode", TaxTypeVAT)
	if category == string(entity.CategorieTVAExoneree) && d.f.References.MotifExonerationTVA != "" {
		setText(tax, "ram:ExemptionReason", d.f.References.MotifExonerationTVA)
	}
	setAmount(tax, "ram:BasisAmount", vat.MontantBaseHT)
	setText(tax, "ram:CategoryCode", category)
	if code, ok := facturx.TaxPointCode(d.f.References.TypeTVA); ok {
		setText(tax, "ram:DueDateTypeCode", code)
	}
	if vat.Taux != "" || vat.TauxManuel != nil {
		rate, err := facturx.VATRate(vat.Taux, vat.TauxManuel)
		if err != nil {
			return err
		}
		setText(tax, "ram:RateApplicablePercent", facturx.Percent(rate))
	}
	return nil
}

func (d *docBuilder) writeMonetarySummation(settlement *etree.Element, currency string) {
	m := d.f.MontantTotal
	sum := settlement.CreateElement("ram:SpecifiedTradeSettlementHeaderMonetarySummation")
	if d.cfg.IncludesLineItems {
		lineTotal := decimal.Zero
		for _, l := range d.f.LignesDePoste {
			lineTotal = lineTotal.Add(l.MontantNet())
		}
		setAmount(sum, "ram:LineTotalAmount", lineTotal)
		setAmount(sum, "ram:AllowanceTotalAmount", decimal.Zero)
	}
	setAmount(sum, "ram:TaxBasisTotalAmount", m.MontantHTTotal)
	setAmount(sum, "ram:TaxTotalAmount", m.MontantTVA).CreateAttr("currencyID", currency)
	setAmount(sum, "ram:GrandTotalAmount", m.MontantTTCTotal)
	if d.cfg.IncludesLineItems {
		setAmount(sum, "ram:TotalPrepaidAmount", m.MontantAcompte())
	}
	setAmount(sum, "ram:DuePayableAmount", m.MontantAPayer)
}

// ---- helpers

// setText appends <tag>value</tag> to parent. Free text is NFC-normalized.
func setText(parent *etree.Element, tag, value string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(norm.NFC.String(value))
	return el
}

// setAmount appends a decimal rendered through facturx.Amount.
func setAmount(parent *etree.Element, tag string, d decimal.Decimal) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(facturx.Amount(d))
	return el
}

// writeDateTime appends <tag><udt:DateTimeString format="102">date</udt:DateTimeString></tag>.
func writeDateTime(parent *etree.Element, tag, date102 string) {
	dts := parent.CreateElement(tag).CreateElement("udt:DateTimeString")
	dts.CreateAttr("format", facturx.DateFormat)
	dts.SetText(date102)
}
