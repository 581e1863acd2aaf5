// Package pdf produces and post-processes the PDF side of a Factur-X invoice:
// the visual rendering, the PDF/A-3 conversion, the XML attachment and the
// digital signature.
//
// A4 page layout of the rendering:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: seller name + SIRET  │  invoice number + date      │
//	│  ─────────────────────────────────────────────────────────  │
//	│  SELLER: address / VAT number                                │
//	│  BUYER: name + SIRET + address                               │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLE: Qty | Designation | Unit price | VAT% | Total        │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALS: net / VAT / gross / amount due                      │
//	│  ─────────────────────────────────────────────────────────  │
//	│  PAYMENT: due date + IBAN + SEPA QR                          │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	"github.com/jhoicas/facture-electronique/internal/facturx"
)

// ── Palette ───────────────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// ── Renderer ──────────────────────────────────────────────────────────────────

// MarotoRenderer draws the human-readable invoice with Maroto v2.
type MarotoRenderer struct{}

// NewMarotoRenderer builds the renderer.
func NewMarotoRenderer() *MarotoRenderer { return &MarotoRenderer{} }

// Render returns the PDF bytes of f. The output is a plain PDF; PDF/A conversion
// happens later in the pipeline.
func (r *MarotoRenderer) Render(_ context.Context, f *entity.Facture) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("pdf: nil invoice")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(documentTitle(f)+" "+f.NumeroFacture, true).
		WithAuthor(f.Fournisseur.Nom, true).
		WithCreationDate(issueTime(f)).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(f))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(sellerRow(f.Fournisseur))
	m.AddRows(buyerRow(f.Destinataire))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableDetailRows(f.LignesDePoste)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(f))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(paymentRows(f)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: render: %w", err)
	}
	return doc.GetBytes(), nil
}

func documentTitle(f *entity.Facture) string {
	if f.References.TypeFacture == entity.TypeFactureAvoir {
		return "AVOIR"
	}
	return "FACTURE"
}

func issueTime(f *entity.Facture) time.Time {
	t, err := time.Parse("2006-01-02", f.DateFacture)
	if err != nil {
		return time.Now()
	}
	return t
}

// ── Sections ──────────────────────────────────────────────────────────────────

func headerRow(f *entity.Facture) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New(f.Fournisseur.Nom, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("SIRET : "+f.Fournisseur.AdresseElectronique.Identifiant, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(documentTitle(f), props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(f.NumeroFacture, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Date : "+frenchDate(f.DateFacture), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func sellerRow(s entity.Fournisseur) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("ÉMETTEUR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("%s   |   TVA : %s",
				formatAddress(s.AdressePostale),
				nonEmpty(s.NumeroTVAIntra, "-"),
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

func buyerRow(d entity.Destinataire) core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New("DESTINATAIRE", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(d.Nom, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("SIRET : %s   |   %s   |   Service : %s",
				d.AdresseElectronique.Identifiant,
				formatAddress(d.AdressePostale),
				nonEmpty(d.CodeServiceExecutant, "-"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Qté", 1, align.Center),
		h("Désignation", 5, align.Left),
		h("PU HT", 2, align.Right),
		h("TVA %", 1, align.Center),
		h("Total HT", 3, align.Right),
	).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
}

func tableDetailRows(lines []entity.LigneDePoste) []core.Row {
	result := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		name := strings.TrimSpace(l.Reference + " " + l.Denomination)
		if !l.Remise().IsZero() {
			name += fmt.Sprintf(" (remise %s / u)", formatMoney(l.Remise()))
		}
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(
				l.Quantite.String(),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(5).Add(text.New(
				name,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(2).Add(text.New(
				formatMoney(l.MontantUnitaireHT),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(1).Add(text.New(
				lineRate(l),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(3).Add(text.New(
				formatMoney(l.MontantNet()),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

func lineRate(l entity.LigneDePoste) string {
	rate, err := facturx.VATRate(l.TauxTVA, l.TauxTVAManuel)
	if err != nil {
		return "-"
	}
	return strings.Replace(rate.String(), ".", ",", 1)
}

func totalsRow(f *entity.Facture) core.Row {
	m := f.MontantTotal
	label := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2,
		})
	}
	value := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1, Top: top})
	}
	grand := func(s string, right, top float64) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: right, Top: top,
		})
	}
	currency := " " + f.References.Devise()

	return row.New(26).Add(
		col.New(3),
		col.New(3).Add(
			label("Total HT :"),
			text.New("TVA :", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: 6}),
			text.New("Total TTC :", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: 12}),
			grand("NET À PAYER :", 2, 18),
		),
		col.New(3).Add(
			value(formatMoney(m.MontantHTTotal)+currency, 0),
			value(formatMoney(m.MontantTVA)+currency, 6),
			value(formatMoney(m.MontantTTCTotal)+currency, 12),
			grand(formatMoney(m.MontantAPayer)+currency, 1, 18),
		),
		col.New(3),
	)
}

func paymentRows(f *entity.Facture) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("RÈGLEMENT", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
		)),
	}

	details := fmt.Sprintf("Mode : %s", nonEmpty(string(f.References.ModePaiement), "-"))
	if f.DateEcheancePaiement != "" {
		details += "   |   Échéance : " + frenchDate(f.DateEcheancePaiement)
	}
	if f.Fournisseur.IBAN != "" {
		details += "   |   IBAN : " + f.Fournisseur.IBAN
	}
	rows = append(rows, row.New(6).Add(col.New(12).Add(
		text.New(details, props.Text{Size: 8, Color: colorGray, Top: 1}),
	)))

	if payload := sepaQRPayload(f); payload != "" {
		rows = append(rows, row.New(40).Add(
			col.New(3).Add(code.NewQr(payload, props.Rect{Percent: 95, Center: true})),
			col.New(9).Add(
				text.New("Scannez ce code avec votre application bancaire\npour régler ce document par virement SEPA.", props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
			),
		))
	}

	if f.Commentaire != "" {
		rows = append(rows, row.New(8).Add(col.New(12).Add(
			text.New(f.Commentaire, props.Text{Size: 8, Top: 2}),
		)))
	}
	return rows
}

// sepaQRPayload encodes an EPC069-12 (version 002) credit transfer for EUR
// invoices paid by transfer. Empty when not applicable.
func sepaQRPayload(f *entity.Facture) string {
	if f.Fournisseur.IBAN == "" || f.References.Devise() != "EUR" ||
		f.References.ModePaiement != entity.ModePaiementVirement || !f.MontantTotal.MontantAPayer.IsPositive() {
		return ""
	}
	name := f.Fournisseur.Nom
	if len([]rune(name)) > 70 {
		name = string([]rune(name)[:70])
	}
	return strings.Join([]string{
		"BCD", "002", "1", "SCT",
		"", // BIC, optional since version 002
		name,
		strings.ReplaceAll(f.Fournisseur.IBAN, " ", ""),
		"EUR" + facturx.Amount(f.MontantTotal.MontantAPayer),
		"", "",
		f.NumeroFacture,
	}, "\n")
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func formatAddress(a entity.AdressePostale) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.LigneUn, a.LigneDeux, strings.TrimSpace(a.CodePostal + " " + a.Ville), a.PaysCodeISO} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return nonEmpty(strings.Join(parts, ", "), "-")
}

func frenchDate(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("02/01/2006")
}

// formatMoney renders an amount the French way: space thousands separator and
// decimal comma. Ex: 1234567.5 -> "1 234 567,50"
func formatMoney(d decimal.Decimal) string {
	s := facturx.Amount(d)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	n := len(intPart)
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, c)
	}
	return sign + string(buf) + "," + frac
}
