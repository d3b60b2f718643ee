package book

import (
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Section is one trimmed article in reading order.
type Section struct {
	Title string
	URL   string
	HTML  string
}

// Book is the assembled volume handed to the writers.
type Book struct {
	Title       string
	Description string
	Publisher   string
	Language    language.Tag
	CoverURL    string
	ExtraCSS    string
	Date        time.Time
	Sections    []Section
}

var volumeTmpl = template.Must(template.New("volume").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8"/>
<title>{{.Title}}</title>
<style>
body { font-family: serif; margin: 1em auto; max-width: 40em; }
section.article { page-break-before: always; }
p.meta { color: #555; font-size: 0.9em; }
{{.ExtraCSS}}</style>
</head>
<body>
<section class="cover">
<h1>{{.Title}}</h1>
{{if .Description}}<p class="meta">{{.Description}}</p>{{end}}
{{if .Publisher}}<p class="meta">{{.Publisher}}</p>{{end}}
<p class="meta">{{.Date}}</p>
{{if .CoverImage}}<img src="{{.CoverImage}}" alt="{{.Title}}"/>{{else if .CoverLink}}<p><a href="{{.CoverLink}}">{{.CoverLink}}</a></p>{{end}}
</section>
<nav class="toc">
<ol>
{{range .Sections}}<li><a href="#{{.ID}}">{{.Title}}</a></li>
{{end}}</ol>
</nav>
{{range .Sections}}<section class="article" id="{{.ID}}">
<h2><a href="{{.URL}}">{{.Title}}</a></h2>
{{.Body}}
</section>
{{end}}</body>
</html>
`))

type volumeSection struct {
	ID    string
	Title string
	URL   string
	Body  template.HTML
}

type volumeData struct {
	Title       string
	Description string
	Publisher   string
	Lang        string
	Date        string
	CoverImage  string
	CoverLink   string
	ExtraCSS    template.CSS
	Sections    []volumeSection
}

// Write renders the book as one self-contained XHTML volume. Section order
// is preserved; metadata is escaped; the recipe's extra style rules are
// appended verbatim.
func Write(b Book, path string) error {
	data := volumeData{
		Title:       b.Title,
		Description: b.Description,
		Publisher:   b.Publisher,
		Lang:        langAttr(b.Language),
		Date:        b.Date.Format("2006-01-02"),
		ExtraCSS:    template.CSS(b.ExtraCSS),
	}
	if isImageURL(b.CoverURL) {
		data.CoverImage = b.CoverURL
	} else {
		data.CoverLink = b.CoverURL
	}
	for i, s := range b.Sections {
		data.Sections = append(data.Sections, volumeSection{
			ID:    fmt.Sprintf("article-%d", i+1),
			Title: s.Title,
			URL:   s.URL,
			Body:  template.HTML(s.HTML),
		})
	}
	var sb strings.Builder
	if err := volumeTmpl.Execute(&sb, data); err != nil {
		return fmt.Errorf("render volume: %w", err)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write volume: %w", err)
	}
	return nil
}

func langAttr(tag language.Tag) string {
	if tag == language.Und || tag.String() == "und" {
		return "en"
	}
	return tag.String()
}

// isImageURL is a coarse extension check; covers like dated front-page PDFs
// get a link instead of an inline img.
func isImageURL(u string) bool {
	lower := strings.ToLower(u)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
