package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicepost/internal/invoice"
	"invoicepost/internal/models"
)

func testDocument(t *testing.T) Document {
	t.Helper()

	date, err := invoice.ParseInvoiceDate("FAC-2026-INVOICE-20260801")
	require.NoError(t, err)

	usage := &models.UsageSession{
		SessionCore: models.SessionCore{
			Label:         "autonomous",
			Category:      models.CategoryAutonomous,
			User:          "alice",
			EquipmentName: "SP8",
			Date:          "01/07/2026",
			StartTime:     "09:00",
			FinalAmount:   50.00,
		},
		BookedDuration: "2:00",
		UsedDuration:   "2:00",
		InitialAmount:  50.00,
	}
	training := &models.TrainingSession{
		SessionCore: models.SessionCore{
			Label:         "training",
			Category:      models.CategoryTraining,
			User:          "carol",
			EquipmentName: "SP8",
			Date:          "03/07/2026",
			StartTime:     "14:00",
			FinalAmount:   50.00,
		},
		Duration: "1:00",
	}

	return Document{
		InvoiceRef: "FAC-2026-INVOICE-20260801",
		Date:       date,
		Recipient: models.Recipient{
			GroupID:          "smithlab",
			GroupName:        "Smith lab",
			HeadName:         "Prof Smith",
			HeadEmail:        "head@uni.example",
			Institution:      "Example University",
			Address:          "1 Road, City",
			ChargedGrantCode: "GRP1",
			DocumentPath:     filepath.Join(t.TempDir(), "2026", "August", "invoice_FAC-2026-INVOICE-20260801-GRP1.html"),
			Charges: models.ChargeSummary{
				Autonomous: "50.00",
				Assisted:   "0.00",
				Training:   "50.00",
				GrandTotal: "100.00",
			},
		},
		Autonomous: []models.Session{usage},
		Training:   []models.Session{training},
	}
}

func TestWriteDocument(t *testing.T) {
	doc := testDocument(t)
	require.NoError(t, WriteDocument(doc))

	raw, err := os.ReadFile(doc.Recipient.DocumentPath)
	require.NoError(t, err)
	html := string(raw)

	assert.Contains(t, html, "Facility invoice FAC-2026-INVOICE-20260801")
	assert.Contains(t, html, "instrument use during July")
	assert.Contains(t, html, "Smith lab (Prof Smith)")
	assert.Contains(t, html, "<strong>GRP1</strong>")
	assert.Contains(t, html, "100.00")
	assert.Contains(t, html, "Autonomous sessions")
	assert.Contains(t, html, "Training sessions")

	// No assisted sessions, no assisted table.
	assert.NotContains(t, html, "Assisted sessions")
	// No adjustments, no fee columns or footnotes.
	assert.NotContains(t, html, "Subsidy")
	assert.NotContains(t, html, "additional fee")
}

func TestWriteDocumentAdjustedColumns(t *testing.T) {
	doc := testDocument(t)
	doc.Recipient.Charges.FeeAdjusted = true
	doc.Recipient.Charges.SubsidyAdjusted = true
	require.NoError(t, WriteDocument(doc))

	raw, err := os.ReadFile(doc.Recipient.DocumentPath)
	require.NoError(t, err)
	html := string(raw)

	assert.Contains(t, html, "Initial")
	assert.Contains(t, html, "Subsidy")
	assert.Contains(t, html, "additional fee")
	assert.Contains(t, html, "subsidised")
}
