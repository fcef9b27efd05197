// Package pdftext extracts plain text from PDF files on disk.
package pdftext

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extract returns the plain text of every page of the PDF at path.
// Pages that fail to parse are skipped rather than failing the whole
// extraction.
func Extract(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	return b.String(), nil
}
