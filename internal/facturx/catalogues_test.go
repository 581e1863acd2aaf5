package facturx_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facture-electronique/internal/domain"
	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	"github.com/jhoicas/facture-electronique/internal/facturx"
)

// ──────────────────────────────────────────────────────────────────────────────
// Code tables
// ──────────────────────────────────────────────────────────────────────────────

func TestTypeCode(t *testing.T) {
	assert.Equal(t, "381", facturx.TypeCode(entity.TypeFactureAvoir))
	assert.Equal(t, "380", facturx.TypeCode(entity.TypeFactureFacture))
	assert.Equal(t, "380", facturx.TypeCode(""), "an unset type is an invoice")
}

func TestPaymentMeansCode_Table(t *testing.T) {
	cases := map[entity.ModePaiement]string{
		entity.ModePaiementCheque:      "20",
		entity.ModePaiementPrelevement: "49",
		entity.ModePaiementVirement:    "30",
		entity.ModePaiementEspece:      "10",
		entity.ModePaiementAutre:       "57",
		entity.ModePaiementReport:      "97",
	}
	for mode, want := range cases {
		got, err := facturx.PaymentMeansCode(mode)
		require.NoError(t, err, "mode %s", mode)
		assert.Equal(t, want, got, "mode %s", mode)
	}
}

func TestPaymentMeansCode_UnknownIsError(t *testing.T) {
	_, err := facturx.PaymentMeansCode("BITCOIN")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownPaymentMode))
}

func TestUnitCode_FallsBackToC62(t *testing.T) {
	assert.Equal(t, "C62", facturx.UnitCode("lot"))
	assert.Equal(t, "KGM", facturx.UnitCode("Kg"))
	assert.Equal(t, "LTR", facturx.UnitCode("L"))
	assert.Equal(t, "MTR", facturx.UnitCode("m"))
	assert.Equal(t, "MTQ", facturx.UnitCode("m3"))
	assert.Equal(t, "TNE", facturx.UnitCode("t"))
	assert.Equal(t, "C62", facturx.UnitCode("pce"), "unknown units are silently C62")
	assert.Equal(t, "C62", facturx.UnitCode(""))
}

func TestVATCategoryCode(t *testing.T) {
	code, err := facturx.VATCategoryCode("")
	require.NoError(t, err)
	assert.Equal(t, "S", code)

	code, err = facturx.VATCategoryCode(entity.CategorieTVAExoneree)
	require.NoError(t, err)
	assert.Equal(t, "E", code)

	_, err = facturx.VATCategoryCode("X")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVATRate(t *testing.T) {
	manual := decimal.NewFromInt(20)
	rate, err := facturx.VATRate("TVA10", &manual)
	require.NoError(t, err)
	assert.True(t, rate.Equal(manual), "the manual rate wins over the code")

	rate, err = facturx.VATRate("TVA5.5", nil)
	require.NoError(t, err)
	assert.Equal(t, "5.5", rate.String())

	rate, err = facturx.VATRate("TVA2,1", nil)
	require.NoError(t, err)
	assert.Equal(t, "2.1", rate.String())

	_, err = facturx.VATRate("EXO", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ──────────────────────────────────────────────────────────────────────────────
// Normalization
// ──────────────────────────────────────────────────────────────────────────────

func TestAmount_TwoDecimalsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "123.46", facturx.Amount(decimal.RequireFromString("123.456")))
	assert.Equal(t, "100.00", facturx.Amount(decimal.NewFromInt(100)))
	assert.Equal(t, "0.13", facturx.Amount(decimal.RequireFromString("0.125")))
	assert.Equal(t, "-0.13", facturx.Amount(decimal.RequireFromString("-0.125")))
	assert.Equal(t, "2.68", facturx.Amount(decimal.RequireFromString("2.675")))
}

func TestQuantity_FourDecimals(t *testing.T) {
	assert.Equal(t, "0.1250", facturx.Quantity(decimal.RequireFromString("0.125")))
	assert.Equal(t, "10.0000", facturx.Quantity(decimal.NewFromInt(10)))
	assert.Equal(t, "1.2346", facturx.Quantity(decimal.RequireFromString("1.23456")))
}

func TestAmountFromFloat(t *testing.T) {
	assert.Equal(t, "123.46", facturx.AmountFromFloat(123.456))
	assert.Equal(t, "100.00", facturx.AmountFromFloat(100.0))
	assert.Equal(t, "0.30", facturx.AmountFromFloat(0.1+0.2))
}

func TestDate(t *testing.T) {
	got, err := facturx.Date("2024-10-26")
	require.NoError(t, err)
	assert.Equal(t, "20241026", got)

	for _, bad := range []string{"", "26/10/2024", "2024-13-01", "2024-02-30"} {
		_, err := facturx.Date(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "date %q must be rejected", bad)
	}
}

func TestTaxPointCode(t *testing.T) {
	code, ok := facturx.TaxPointCode(entity.TypeTVASurDebit)
	assert.True(t, ok)
	assert.Equal(t, "5", code)

	code, ok = facturx.TaxPointCode(entity.TypeTVASurEncaissement)
	assert.True(t, ok)
	assert.Equal(t, "72", code)

	_, ok = facturx.TaxPointCode(entity.TypeTVAExoneration)
	assert.False(t, ok)
}
