package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/language"
	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/feedbook/internal/feed"
	"github.com/hyperifyio/feedbook/internal/rules"
)

// Recipe is the declarative description of one publication: identity,
// feeds, cover heuristic, limits, and the ordered extraction rule list.
// Loaded once at startup; immutable for the run.
type Recipe struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Publisher   string `yaml:"publisher" json:"publisher"`
	Language    string `yaml:"language" json:"language"`
	Masthead    string `yaml:"masthead" json:"masthead"`

	Cover struct {
		Template string `yaml:"template" json:"template"`
		Fallback string `yaml:"fallback" json:"fallback"`
	} `yaml:"cover" json:"cover"`

	Limits struct {
		OldestArticleDays float64 `yaml:"oldestArticleDays" json:"oldestArticleDays"`
		ArticlesPerFeed   int     `yaml:"articlesPerFeed" json:"articlesPerFeed"`
		DelaySeconds      float64 `yaml:"delaySeconds" json:"delaySeconds"`
	} `yaml:"limits" json:"limits"`

	ExtraCSS string `yaml:"extraCSS" json:"extraCSS"`

	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`
	Rules []RuleConfig `yaml:"rules" json:"rules"`
}

// FeedConfig is one named feed endpoint.
type FeedConfig struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// RuleConfig is the file form of one extraction rule. Selector actions use
// tag/attrs/match; rewrite uses pattern/replacement.
type RuleConfig struct {
	Action      string              `yaml:"action" json:"action"`
	Pattern     string              `yaml:"pattern" json:"pattern"`
	Replacement string              `yaml:"replacement" json:"replacement"`
	Tag         string              `yaml:"tag" json:"tag"`
	Attrs       map[string][]string `yaml:"attrs" json:"attrs"`
	Match       string              `yaml:"match" json:"match"`
}

// LoadRecipe reads a YAML or JSON recipe by extension, trying YAML first for
// anything else.
func LoadRecipe(path string) (Recipe, error) {
	var r Recipe
	b, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &r); err != nil {
			return r, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &r); err != nil {
			return r, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &r); err != nil {
			if jerr := json.Unmarshal(b, &r); jerr != nil {
				return r, fmt.Errorf("parse recipe: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return r, nil
}

// ValidateRecipe checks the recipe before the run starts. Rule mistakes are
// configuration errors and fail fast here rather than mid-run.
func ValidateRecipe(r Recipe) error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("recipe: title is required")
	}
	if len(r.Feeds) == 0 {
		return errors.New("recipe: at least one feed is required")
	}
	for i, f := range r.Feeds {
		if strings.TrimSpace(f.URL) == "" {
			return fmt.Errorf("recipe: feeds[%d]: url is required", i)
		}
	}
	// Cover resolution must always be able to fall back to something.
	if strings.TrimSpace(r.CoverFallback()) == "" {
		return errors.New("recipe: masthead or cover.fallback is required")
	}
	if r.Language != "" {
		if _, err := language.Parse(r.Language); err != nil {
			return fmt.Errorf("recipe: language %q: %w", r.Language, err)
		}
	}
	if r.Limits.OldestArticleDays < 0 || r.Limits.ArticlesPerFeed < 0 || r.Limits.DelaySeconds < 0 {
		return errors.New("recipe: negative limits are not allowed")
	}
	for i, rc := range r.Rules {
		if err := validateRule(rc); err != nil {
			return fmt.Errorf("recipe: rules[%d]: %w", i, err)
		}
	}
	return nil
}

func validateRule(rc RuleConfig) error {
	switch rules.Action(rc.Action) {
	case rules.ActionRewrite:
		if rc.Pattern == "" {
			return errors.New("rewrite: pattern is required")
		}
		if _, err := regexp.Compile(rc.Pattern); err != nil {
			return fmt.Errorf("rewrite: pattern: %w", err)
		}
	case rules.ActionKeepOnly, rules.ActionRemove, rules.ActionBoundaryBefore, rules.ActionBoundaryAfter:
		if strings.TrimSpace(rc.Tag) == "" {
			return fmt.Errorf("%s: tag is required", rc.Action)
		}
	default:
		return fmt.Errorf("unknown action %q", rc.Action)
	}
	switch rules.MatchMode(rc.Match) {
	case "", rules.MatchToken, rules.MatchSubstring:
	default:
		return fmt.Errorf("unknown match mode %q", rc.Match)
	}
	return nil
}

// CompiledRules builds the engine rule list. Call after ValidateRecipe.
func (r Recipe) CompiledRules() ([]rules.Rule, error) {
	out := make([]rules.Rule, 0, len(r.Rules))
	for i, rc := range r.Rules {
		if rules.Action(rc.Action) == rules.ActionRewrite {
			re, err := regexp.Compile(rc.Pattern)
			if err != nil {
				return nil, fmt.Errorf("rules[%d]: %w", i, err)
			}
			out = append(out, rules.Rule{
				Action:      rules.ActionRewrite,
				Pattern:     re,
				Replacement: rc.Replacement,
			})
			continue
		}
		mode := rules.MatchMode(rc.Match)
		if mode == "" {
			mode = rules.MatchToken
		}
		out = append(out, rules.Rule{
			Action: rules.Action(rc.Action),
			Selector: rules.Selector{
				Tag:   rc.Tag,
				Attrs: rc.Attrs,
				Mode:  mode,
			},
		})
	}
	return out, nil
}

// Descriptors converts the configured feed list.
func (r Recipe) Descriptors() []feed.Descriptor {
	out := make([]feed.Descriptor, 0, len(r.Feeds))
	for _, f := range r.Feeds {
		name := f.Name
		if name == "" {
			name = f.URL
		}
		out = append(out, feed.Descriptor{Name: name, URL: f.URL})
	}
	return out
}

// OldestArticle converts the day-based cutoff to a duration. Zero disables it.
func (r Recipe) OldestArticle() time.Duration {
	return time.Duration(r.Limits.OldestArticleDays * float64(24*time.Hour))
}

// Delay is the politeness throttle between requests.
func (r Recipe) Delay() time.Duration {
	return time.Duration(r.Limits.DelaySeconds * float64(time.Second))
}

// CoverFallback is the static image used when the dated candidate does not
// probe; the masthead doubles as the default fallback.
func (r Recipe) CoverFallback() string {
	if r.Cover.Fallback != "" {
		return r.Cover.Fallback
	}
	return r.Masthead
}

// LanguageTag returns the parsed recipe language, language.Und when unset or
// invalid (ValidateRecipe rejects invalid values up front).
func (r Recipe) LanguageTag() language.Tag {
	if r.Language == "" {
		return language.Und
	}
	tag, err := language.Parse(r.Language)
	if err != nil {
		return language.Und
	}
	return tag
}
