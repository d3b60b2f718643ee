package book

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"
)

func sampleBook() Book {
	return Book{
		Title:       "Heraldo de Aragon",
		Description: "Daily newspaper from Aragon",
		Publisher:   "Grupo Heraldo",
		Language:    language.Spanish,
		CoverURL:    "http://www.heraldo.es/img/logo.png",
		ExtraCSS:    ".entradilla { font-style: italic; }",
		Date:        time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC),
		Sections: []Section{
			{Title: "First & Foremost", URL: "http://example.com/1", HTML: "<p>uno</p>"},
			{Title: "Second", URL: "http://example.com/2", HTML: "<p>dos</p>"},
		},
	}
}

func TestWrite_VolumeContainsMetadataAndSectionsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.html")
	if err := Write(sampleBook(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read volume: %v", err)
	}
	out := string(data)

	if !strings.Contains(out, `lang="es"`) {
		t.Fatalf("expected language attribute, got %q", out)
	}
	if !strings.Contains(out, "Heraldo de Aragon") || !strings.Contains(out, "Grupo Heraldo") {
		t.Fatalf("expected metadata in volume")
	}
	if !strings.Contains(out, "First &amp; Foremost") {
		t.Fatalf("expected escaped section title, got %q", out)
	}
	if !strings.Contains(out, "<p>uno</p>") || !strings.Contains(out, "<p>dos</p>") {
		t.Fatalf("expected trimmed HTML passed through unescaped")
	}
	if strings.Index(out, "<p>uno</p>") > strings.Index(out, "<p>dos</p>") {
		t.Fatalf("expected sections in feed order")
	}
	if !strings.Contains(out, ".entradilla") {
		t.Fatalf("expected extra style rules appended")
	}
	if !strings.Contains(out, `src="http://www.heraldo.es/img/logo.png"`) {
		t.Fatalf("expected image cover inlined, got %q", out)
	}
}

func TestWrite_PDFCoverBecomesLinkNotImage(t *testing.T) {
	b := sampleBook()
	b.CoverURL = "http://oldorigin-www.heraldo.es/20131201/primeras/portada_aragon.pdf"
	path := filepath.Join(t.TempDir(), "book.html")
	if err := Write(b, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(path)
	out := string(data)
	if strings.Contains(out, `<img src="http://oldorigin-www.heraldo.es`) {
		t.Fatalf("expected no img tag for PDF cover, got %q", out)
	}
	if !strings.Contains(out, `href="http://oldorigin-www.heraldo.es/20131201/primeras/portada_aragon.pdf"`) {
		t.Fatalf("expected PDF cover linked, got %q", out)
	}
}

func TestWrite_UndefinedLanguageDefaultsToEnglish(t *testing.T) {
	b := sampleBook()
	b.Language = language.Und
	path := filepath.Join(t.TempDir(), "book.html")
	if err := Write(b, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `lang="en"`) {
		t.Fatalf("expected default language attribute")
	}
}

func TestFlatten_BlocksBecomeLines(t *testing.T) {
	got := flatten(`<div><h2>Head</h2><p>First   paragraph</p><p>Second</p><script>skip()</script></div>`)
	if !strings.Contains(got, "Head") || !strings.Contains(got, "First paragraph") {
		t.Fatalf("expected block text preserved, got %q", got)
	}
	if strings.Contains(got, "skip()") {
		t.Fatalf("expected script content dropped, got %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("expected at most one blank line between blocks, got %q", got)
	}
	if strings.Index(got, "First paragraph") > strings.Index(got, "Second") {
		t.Fatalf("expected text order preserved, got %q", got)
	}
}

func TestWritePDF_ProducesNonEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.pdf")
	if err := WritePDF(sampleBook(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat pdf: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected non-empty pdf")
	}
	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "%PDF") {
		t.Fatalf("expected pdf header, got %q", string(data[:8]))
	}
}
