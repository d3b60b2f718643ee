package feed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"
)

// Descriptor names one configured feed. Immutable after recipe load.
type Descriptor struct {
	Name string
	URL  string
}

// Stub is an article reference yielded by a feed, before its document has
// been fetched.
type Stub struct {
	Feed      string
	URL       string
	Title     string
	Published time.Time
}

// ErrAllFeedsFailed is returned when every configured feed failed to fetch
// or parse. A healthy feed with zero fresh entries is not a failure.
var ErrAllFeedsFailed = errors.New("all feeds failed")

// Getter is the minimal fetch surface the source needs.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, string, error)
}

// Source drains configured feeds into article stubs, one pass per run.
type Source struct {
	Getter Getter
	Parser *gofeed.Parser
	// MaxPerFeed caps each feed's yield after the age cutoff. Zero means
	// unlimited.
	MaxPerFeed int
	// MaxAge excludes entries published before now-MaxAge. Zero disables the
	// cutoff. Entries without a parseable timestamp are kept.
	MaxAge time.Duration
	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

// Drain fetches and parses every feed in configured order and returns the
// stubs in feed order. A feed that fails to fetch or parse is logged and
// skipped; Drain fails only when every feed failed.
func (s *Source) Drain(ctx context.Context, feeds []Descriptor) ([]Stub, error) {
	parser := s.Parser
	if parser == nil {
		parser = gofeed.NewParser()
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	var stubs []Stub
	failed := 0
	for _, d := range feeds {
		body, _, err := s.Getter.Get(ctx, d.URL)
		if err != nil {
			log.Warn().Err(err).Str("feed", d.Name).Str("url", d.URL).Msg("feed fetch failed; skipping")
			failed++
			continue
		}
		parsed, err := parser.ParseString(string(body))
		if err != nil {
			log.Warn().Err(err).Str("feed", d.Name).Str("url", d.URL).Msg("feed parse failed; skipping")
			failed++
			continue
		}
		kept := 0
		for _, item := range parsed.Items {
			if s.MaxPerFeed > 0 && kept >= s.MaxPerFeed {
				break
			}
			link := strings.TrimSpace(item.Link)
			if link == "" {
				continue
			}
			published := itemTime(item)
			if s.MaxAge > 0 && !published.IsZero() && published.Before(now.Add(-s.MaxAge)) {
				continue
			}
			stubs = append(stubs, Stub{
				Feed:      d.Name,
				URL:       link,
				Title:     strings.TrimSpace(item.Title),
				Published: published,
			})
			kept++
		}
		log.Debug().Str("feed", d.Name).Int("articles", kept).Msg("feed drained")
	}
	if len(feeds) > 0 && failed == len(feeds) {
		return nil, ErrAllFeedsFailed
	}
	return stubs, nil
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}
