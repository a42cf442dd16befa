package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInvoiceDate(t *testing.T) {
	date, err := ParseInvoiceDate("FAC-2026-INVOICE-20260801")
	require.NoError(t, err)

	assert.Equal(t, "2026", date.Year)
	assert.Equal(t, "August", date.MonthName)
	assert.Equal(t, "July", date.SessionsMonthName)
	assert.Equal(t, "01/08/2026", date.Display)
}

func TestParseInvoiceDateJanuary(t *testing.T) {
	date, err := ParseInvoiceDate("FAC-2026-INVOICE-20260115")
	require.NoError(t, err)
	assert.Equal(t, "January", date.MonthName)
	assert.Equal(t, "December", date.SessionsMonthName)
}

func TestParseInvoiceDateTooShort(t *testing.T) {
	_, err := ParseInvoiceDate("short-ref")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestParseInvoiceDateNotADate(t *testing.T) {
	_, err := ParseInvoiceDate("FAC-2026-INVOICE-notadate")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestDocumentFileName(t *testing.T) {
	assert.Equal(t,
		"invoice_FAC-20260801-GRP1.html",
		DocumentFileName("FAC-20260801", "GRP1"),
	)
}

func TestDocumentFileNameSanitizesSplitCodes(t *testing.T) {
	assert.Equal(t,
		"invoice_FAC-20260801-SPLIT-50-AAA-50-BBB.html",
		DocumentFileName("FAC-20260801", "SPLIT|50|AAA|50|BBB"),
	)
}
