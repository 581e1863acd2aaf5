// Package facturx holds the code tables, value normalization and profile
// definitions of the Factur-X 1.0 / EN 16931 CII syntax.
package facturx

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/facture-electronique/internal/domain"
	"github.com/jhoicas/facture-electronique/internal/domain/entity"
)

// =============================================================================
// UNTDID 1001 - Document type (BT-3)
// =============================================================================

const (
	TypeCodeInvoice    = "380" // Commercial invoice
	TypeCodeCreditNote = "381" // Credit note (avoir)
)

// TypeCode maps the invoice type to its document type code. Anything but AVOIR is an invoice.
func TypeCode(t entity.TypeFacture) string {
	if t == entity.TypeFactureAvoir {
		return TypeCodeCreditNote
	}
	return TypeCodeInvoice
}

// =============================================================================
// UNTDID 4461 - Payment means (BT-81)
// =============================================================================

const (
	PaymentMeansCash        = "10"
	PaymentMeansCheque      = "20"
	PaymentMeansTransfer    = "30"
	PaymentMeansDirectDebit = "49"
	PaymentMeansOther       = "57"
	PaymentMeansDeferred    = "97"
)

var paymentMeansCodes = map[entity.ModePaiement]string{
	entity.ModePaiementCheque:      PaymentMeansCheque,
	entity.ModePaiementPrelevement: PaymentMeansDirectDebit,
	entity.ModePaiementVirement:    PaymentMeansTransfer,
	entity.ModePaiementEspece:      PaymentMeansCash,
	entity.ModePaiementAutre:       PaymentMeansOther,
	entity.ModePaiementReport:      PaymentMeansDeferred,
}

// PaymentMeansCode maps the payment method to its settlement code.
// An unmapped method is an error, never a default.
func PaymentMeansCode(m entity.ModePaiement) (string, error) {
	code, ok := paymentMeansCodes[m]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownPaymentMode, string(m))
	}
	return code, nil
}

// =============================================================================
// UN/ECE Recommendation 20 - Units of measure (BT-130)
// =============================================================================

const (
	UnitEach       = "C62"
	UnitKilogram   = "KGM"
	UnitLitre      = "LTR"
	UnitMetre      = "MTR"
	UnitCubicMetre = "MTQ"
	UnitTonne      = "TNE"
)

var unitCodes = map[string]string{
	"lot": UnitEach,
	"Kg":  UnitKilogram,
	"L":   UnitLitre,
	"m":   UnitMetre,
	"m3":  UnitCubicMetre,
	"t":   UnitTonne,
}

// UnitCode maps a free-form unit to its UN/ECE code. Unknown units fall back to C62 (one).
func UnitCode(unit string) string {
	if code, ok := unitCodes[unit]; ok {
		return code
	}
	return UnitEach
}

// =============================================================================
// UNTDID 5305 - VAT category (BT-118 / BT-151)
// =============================================================================

var vatCategories = map[entity.CategorieTVA]bool{
	entity.CategorieTVAStandard:           true,
	entity.CategorieTVAZero:               true,
	entity.CategorieTVAExoneree:           true,
	entity.CategorieTVAAutoliquidation:    true,
	entity.CategorieTVAIntracommunautaire: true,
	entity.CategorieTVAExportation:        true,
	entity.CategorieTVAHorsChamp:          true,
	entity.CategorieTVAIlesCanaries:       true,
	entity.CategorieTVACeutaMelilla:       true,
}

// VATCategoryCode validates a VAT category. Empty means standard rate (S).
func VATCategoryCode(c entity.CategorieTVA) (string, error) {
	if c == "" {
		return string(entity.CategorieTVAStandard), nil
	}
	if !vatCategories[c] {
		return "", fmt.Errorf("%w: unknown vat category %q", domain.ErrInvalidInput, string(c))
	}
	return string(c), nil
}

// VATRate resolves a rate: the manual percentage when set, otherwise the numeric
// part of a rate code such as "TVA20" or "TVA5.5".
func VATRate(code string, manual *decimal.Decimal) (decimal.Decimal, error) {
	if manual != nil {
		return *manual, nil
	}
	digits := strings.TrimLeftFunc(code, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != ','
	})
	digits = strings.ReplaceAll(strings.TrimSpace(strings.TrimSuffix(digits, "%")), ",", ".")
	if digits == "" {
		return decimal.Zero, fmt.Errorf("%w: vat rate %q has no numeric value", domain.ErrInvalidInput, code)
	}
	rate, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: vat rate %q: %v", domain.ErrInvalidInput, code, err)
	}
	return rate, nil
}

// =============================================================================
// Value normalization
// =============================================================================

// DateFormat is the UNTDID 2379 code for CCYYMMDD.
const DateFormat = "102"

const isoDate = "2006-01-02"

// Amount renders a monetary value with exactly two decimals, rounding half
// away from zero. It is the only place amounts become text.
func Amount(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// AmountFromFloat is the entry point for float inputs; the value goes through decimal first.
func AmountFromFloat(f float64) string {
	return Amount(decimal.NewFromFloat(f))
}

// Quantity renders a billed quantity with entity.QuantitePrecision decimals.
func Quantity(d decimal.Decimal) string {
	return d.Round(entity.QuantitePrecision).StringFixed(entity.QuantitePrecision)
}

// Percent renders a VAT rate.
func Percent(d decimal.Decimal) string {
	return Amount(d)
}

// Date converts YYYY-MM-DD to YYYYMMDD (format 102).
func Date(s string) (string, error) {
	t, err := time.Parse(isoDate, s)
	if err != nil {
		return "", fmt.Errorf("%w: date %q is not YYYY-MM-DD", domain.ErrInvalidInput, s)
	}
	return t.Format("20060102"), nil
}

// =============================================================================
// UNTDID 2005 - VAT point date code (BT-8)
// =============================================================================

const (
	TaxPointInvoiceDate = "5"  // VAT due on invoice date (débit)
	TaxPointPaidToDate  = "72" // VAT due on payment (encaissement)
)

// TaxPointCode maps the VAT regime to the BT-8 code. Regimes without a tax
// point (exemption, no VAT) report false.
func TaxPointCode(t entity.TypeTVA) (string, bool) {
	switch t {
	case entity.TypeTVASurDebit:
		return TaxPointInvoiceDate, true
	case entity.TypeTVASurEncaissement:
		return TaxPointPaidToDate, true
	default:
		return "", false
	}
}
