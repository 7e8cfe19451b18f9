package recipe

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// RenderPDF lays out a saved recipe as a printable A4 page.
func RenderPDF(r *SavedRecipe) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(r.Title, true)
	pdf.AddPage()

	// Core fonts are cp1252; the translator keeps å, ä and ö intact.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 20)
	pdf.MultiCell(0, 9, tr(r.Title), "", "L", false)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.SetTextColor(100, 100, 100)
	if r.OriginalTitle != "" && r.OriginalTitle != r.Title {
		pdf.MultiCell(0, 5, tr("Original: "+r.OriginalTitle), "", "L", false)
	}
	if meta := r.MetaLine(); meta != "" {
		pdf.MultiCell(0, 5, tr(meta), "", "L", false)
	}
	if r.OriginalURL != "" {
		pdf.MultiCell(0, 5, tr("Källa: "+r.OriginalURL), "", "L", false)
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	section := func(heading string) {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 14)
		pdf.MultiCell(0, 7, tr(heading), "", "L", false)
		pdf.Ln(1)
		pdf.SetFont("Helvetica", "", 11)
	}

	section("Ingredienser")
	for _, line := range r.Ingredients {
		pdf.MultiCell(0, 5.5, tr("• "+line), "", "L", false)
	}

	section("Instruktioner")
	for i, step := range r.Instructions {
		pdf.MultiCell(0, 5.5, tr(fmt.Sprintf("%d. %s", i+1, step)), "", "L", false)
		pdf.Ln(1)
	}

	if len(r.Notes) > 0 {
		section("Tips och anpassningar")
		pdf.SetFont("Helvetica", "", 10)
		for _, note := range r.Notes {
			pdf.MultiCell(0, 5, tr("• "+note), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
