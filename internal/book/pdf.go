package book

import (
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders the book as a simple PDF: a cover page followed by one
// page run per article with a bookmark each. Layout is intentionally plain;
// the XHTML volume is the primary artifact.
func WritePDF(b Book, path string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(b.Title), false)
	if b.Publisher != "" {
		pdf.SetAuthor(tr(b.Publisher), false)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 22)
	pdf.MultiCell(0, 10, tr(b.Title), "", "C", false)
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 12)
	if b.Description != "" {
		pdf.MultiCell(0, 6, tr(b.Description), "", "C", false)
		pdf.Ln(2)
	}
	if b.Publisher != "" {
		pdf.MultiCell(0, 6, tr(b.Publisher), "", "C", false)
	}
	pdf.MultiCell(0, 6, b.Date.Format("2006-01-02"), "", "C", false)
	if b.CoverURL != "" {
		pdf.Ln(6)
		pdf.SetTextColor(0, 0, 200)
		pdf.WriteLinkString(5, tr(b.CoverURL), b.CoverURL)
		pdf.SetTextColor(0, 0, 0)
	}

	for _, s := range b.Sections {
		pdf.AddPage()
		pdf.Bookmark(tr(s.Title), 0, -1)
		pdf.SetFont("Helvetica", "B", 14)
		pdf.MultiCell(0, 7, tr(s.Title), "", "L", false)
		pdf.SetFont("Helvetica", "", 11)
		for _, line := range strings.Split(flatten(s.HTML), "\n") {
			if strings.TrimSpace(line) == "" {
				pdf.Ln(4)
				continue
			}
			pdf.MultiCell(0, 5, tr(line), "", "L", false)
		}
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
