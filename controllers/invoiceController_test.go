package controllers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLinesPricesInMinorUnits(t *testing.T) {
	lines, subtotal, taxTotal, err := buildLines([]invoiceLineDTO{
		{ArticleID: "a1", Qty: 2, UnitPrice: 1000, TaxRateBps: 1800},
		{ArticleID: "a2", Qty: 1, UnitPrice: 333, TaxRateBps: 500},
	}, "INR")
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, int64(2000), lines[0].NetPrice)
	assert.Equal(t, int64(360), lines[0].TaxAmount) // 18% of 2000
	assert.Equal(t, int64(2360), lines[0].GrossPrice)

	// 5% of 333 = 16.65, rounds half-up to 17
	assert.Equal(t, int64(17), lines[1].TaxAmount)
	assert.Equal(t, int64(350), lines[1].GrossPrice)

	assert.Equal(t, int64(2333), subtotal)
	assert.Equal(t, int64(377), taxTotal)
}

func TestBuildLinesZeroTax(t *testing.T) {
	lines, subtotal, taxTotal, err := buildLines([]invoiceLineDTO{
		{ArticleID: "a1", Qty: 3, UnitPrice: 250, TaxRateBps: 0},
	}, "INR")
	require.NoError(t, err)
	assert.Equal(t, int64(750), subtotal)
	assert.Equal(t, int64(0), taxTotal)
	assert.Equal(t, int64(750), lines[0].GrossPrice)
}
