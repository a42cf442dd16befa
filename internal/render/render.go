// Package render produces the per-group HTML invoice summary from the
// orchestrator's computed values.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"invoicepost/internal/invoice"
	"invoicepost/internal/models"
)

//go:embed templates/invoice.html.tmpl
var templateFS embed.FS

var invoiceTemplate = template.Must(template.ParseFS(templateFS, "templates/invoice.html.tmpl"))

// Document is the flat set of values one invoice summary is rendered from.
type Document struct {
	InvoiceRef string
	Date       invoice.InvoiceDate
	Recipient  models.Recipient
	Autonomous []models.Session
	Assisted   []models.Session
	Training   []models.Session
}

// WriteDocument renders the summary and writes it at the recipient's document
// path, creating the year/month directories as needed.
func WriteDocument(doc Document) error {
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, doc); err != nil {
		return fmt.Errorf("render: %w", err)
	}

	path := doc.Recipient.DocumentPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}
