package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/feedbook/internal/book"
	"github.com/hyperifyio/feedbook/internal/cover"
	"github.com/hyperifyio/feedbook/internal/feed"
	"github.com/hyperifyio/feedbook/internal/fetch"
	"github.com/hyperifyio/feedbook/internal/rules"
)

const defaultUserAgent = "feedbook/1.0 (+https://github.com/hyperifyio/feedbook)"

// App wires one recipe into a runnable pipeline: resolve cover, drain feeds,
// fetch and prune each article, package the volume.
type App struct {
	cfg     Config
	recipe  Recipe
	ruleSet *rules.RuleSet

	articles *fetch.Client
	feeds    *fetch.Client
}

// New loads and validates the recipe and prepares the HTTP clients. The rule
// list compiles once here; a bad rule fails startup, not the run.
func New(cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	recipe, err := LoadRecipe(cfg.RecipePath)
	if err != nil {
		return nil, fmt.Errorf("load recipe: %w", err)
	}
	if err := ValidateRecipe(recipe); err != nil {
		return nil, err
	}
	list, err := recipe.CompiledRules()
	if err != nil {
		return nil, err
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	a := &App{cfg: cfg, recipe: recipe, ruleSet: rules.New(list)}
	a.articles = &fetch.Client{
		UserAgent:          ua,
		PerRequestTimeout:  timeout,
		Delay:              recipe.Delay(),
		RedirectMaxHops:    5,
		AcceptContentTypes: fetch.HTMLContentTypes,
	}
	a.feeds = &fetch.Client{
		UserAgent:          ua,
		PerRequestTimeout:  timeout,
		Delay:              recipe.Delay(),
		RedirectMaxHops:    5,
		AcceptContentTypes: fetch.FeedContentTypes,
	}
	return a, nil
}

// Run executes one build. Per-feed and per-article failures are logged and
// skipped; the run fails only when every feed failed
// (feed.ErrAllFeedsFailed) or the artifact cannot be written.
func (a *App) Run(ctx context.Context) error {
	resolver := &cover.Resolver{
		Template: a.recipe.Cover.Template,
		Fallback: a.recipe.CoverFallback(),
		Prober:   a.articles,
	}
	res := resolver.Resolve(ctx)
	log.Info().Str("url", res.URL).Bool("probed", res.Probed).Msg("cover resolved")

	source := &feed.Source{
		Getter:     a.feeds,
		MaxPerFeed: a.recipe.Limits.ArticlesPerFeed,
		MaxAge:     a.recipe.OldestArticle(),
	}
	stubs, err := source.Drain(ctx, a.recipe.Descriptors())
	if err != nil {
		return err
	}
	log.Info().Int("articles", len(stubs)).Msg("feeds drained")

	sections := fetchAndExtract(ctx, a.articles, stubs, a.ruleSet)

	b := book.Book{
		Title:       a.recipe.Title,
		Description: a.recipe.Description,
		Publisher:   a.recipe.Publisher,
		Language:    a.recipe.LanguageTag(),
		CoverURL:    res.URL,
		ExtraCSS:    a.recipe.ExtraCSS,
		Date:        time.Now(),
		Sections:    sections,
	}
	if err := book.Write(b, a.cfg.OutputPath); err != nil {
		return err
	}
	log.Info().Str("out", a.cfg.OutputPath).Int("articles", len(sections)).Msg("wrote volume")
	if a.cfg.PDFPath != "" {
		if err := book.WritePDF(b, a.cfg.PDFPath); err != nil {
			return err
		}
		log.Info().Str("out", a.cfg.PDFPath).Msg("wrote pdf")
	}
	return nil
}

// sourceGetter abstracts the minimal fetch method used for tests.
type sourceGetter interface {
	Get(ctx context.Context, url string) ([]byte, string, error)
}

// fetchAndExtract retrieves each article independently and applies the rule
// set. Errors are isolated per article: failures are logged and skipped
// rather than aborting the run, so one bad article does not stop progress.
func fetchAndExtract(ctx context.Context, f sourceGetter, stubs []feed.Stub, rs *rules.RuleSet) []book.Section {
	sections := make([]book.Section, 0, len(stubs))
	for _, st := range stubs {
		body, _, err := f.Get(ctx, st.URL)
		if err != nil {
			log.Warn().Err(err).Str("url", st.URL).Msg("article fetch failed; skipping")
			continue
		}
		res, err := rs.Apply(body)
		if err != nil {
			log.Warn().Err(err).Str("url", st.URL).Msg("article extraction failed; skipping")
			continue
		}
		sections = append(sections, book.Section{
			Title: pickNonEmpty(res.Title, st.Title),
			URL:   st.URL,
			HTML:  res.HTML,
		})
	}
	return sections
}

func pickNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
