package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

type fakeGetter struct {
	bodies map[string]string
	errs   map[string]error
}

func (f *fakeGetter) Get(_ context.Context, url string) ([]byte, string, error) {
	if err, ok := f.errs[url]; ok {
		return nil, "", err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, "", errors.New("not found")
	}
	return []byte(body), "application/rss+xml", nil
}

func rssItem(title, link string, published time.Time) string {
	date := ""
	if !published.IsZero() {
		date = "<pubDate>" + published.Format(time.RFC1123Z) + "</pubDate>"
	}
	return fmt.Sprintf("<item><title>%s</title><link>%s</link>%s</item>", title, link, date)
}

func rssFeed(title string, items ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>` +
		title + `</title>` + strings.Join(items, "") + `</channel></rss>`
}

func testNow() time.Time {
	return time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)
}

func TestDrain_YieldsStubsInFeedOrder(t *testing.T) {
	now := testNow()
	g := &fakeGetter{bodies: map[string]string{
		"http://a.example/rss": rssFeed("A",
			rssItem("a1", "http://a.example/1", now.Add(-time.Hour)),
			rssItem("a2", "http://a.example/2", now.Add(-2*time.Hour)),
		),
		"http://b.example/rss": rssFeed("B",
			rssItem("b1", "http://b.example/1", now.Add(-time.Hour)),
		),
	}}
	s := &Source{Getter: g, Now: testNow}
	stubs, err := s.Drain(context.Background(), []Descriptor{
		{Name: "A", URL: "http://a.example/rss"},
		{Name: "B", URL: "http://b.example/rss"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for _, st := range stubs {
		got = append(got, st.Title)
	}
	want := []string{"a1", "a2", "b1"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected order %v, got %v", want, got)
	}
	if stubs[0].Feed != "A" || stubs[2].Feed != "B" {
		t.Fatalf("expected feed names carried on stubs, got %+v", stubs)
	}
}

func TestDrain_CapsArticlesPerFeed(t *testing.T) {
	now := testNow()
	g := &fakeGetter{bodies: map[string]string{
		"http://a.example/rss": rssFeed("A",
			rssItem("a1", "http://a.example/1", now),
			rssItem("a2", "http://a.example/2", now),
			rssItem("a3", "http://a.example/3", now),
		),
	}}
	s := &Source{Getter: g, MaxPerFeed: 2, Now: testNow}
	stubs, err := s.Drain(context.Background(), []Descriptor{{Name: "A", URL: "http://a.example/rss"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stubs) != 2 {
		t.Fatalf("expected 2 stubs after cap, got %d", len(stubs))
	}
	if stubs[0].Title != "a1" || stubs[1].Title != "a2" {
		t.Fatalf("expected first entries kept, got %+v", stubs)
	}
}

func TestDrain_AgeCutoffExcludesStaleEntries(t *testing.T) {
	now := testNow()
	g := &fakeGetter{bodies: map[string]string{
		"http://a.example/rss": rssFeed("A",
			rssItem("fresh", "http://a.example/fresh", now.Add(-12*time.Hour)),
			rssItem("stale", "http://a.example/stale", now.Add(-72*time.Hour)),
			rssItem("undated", "http://a.example/undated", time.Time{}),
		),
	}}
	s := &Source{Getter: g, MaxAge: 48 * time.Hour, Now: testNow}
	stubs, err := s.Drain(context.Background(), []Descriptor{{Name: "A", URL: "http://a.example/rss"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for _, st := range stubs {
		got = append(got, st.Title)
	}
	if strings.Join(got, ",") != "fresh,undated" {
		t.Fatalf("expected stale entry dropped and undated kept, got %v", got)
	}
}

func TestDrain_FailedFeedIsSkippedNotFatal(t *testing.T) {
	now := testNow()
	g := &fakeGetter{
		bodies: map[string]string{
			"http://ok.example/rss": rssFeed("OK", rssItem("x", "http://ok.example/1", now)),
		},
		errs: map[string]error{
			"http://down.example/rss": errors.New("connection refused"),
		},
	}
	s := &Source{Getter: g, Now: testNow}
	stubs, err := s.Drain(context.Background(), []Descriptor{
		{Name: "Down", URL: "http://down.example/rss"},
		{Name: "OK", URL: "http://ok.example/rss"},
	})
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if len(stubs) != 1 || stubs[0].Feed != "OK" {
		t.Fatalf("expected one stub from the healthy feed, got %+v", stubs)
	}
}

func TestDrain_AllFeedsFailedIsFatal(t *testing.T) {
	g := &fakeGetter{errs: map[string]error{
		"http://a.example/rss": errors.New("boom"),
		"http://b.example/rss": errors.New("boom"),
	}}
	s := &Source{Getter: g, Now: testNow}
	_, err := s.Drain(context.Background(), []Descriptor{
		{Name: "A", URL: "http://a.example/rss"},
		{Name: "B", URL: "http://b.example/rss"},
	})
	if !errors.Is(err, ErrAllFeedsFailed) {
		t.Fatalf("expected ErrAllFeedsFailed, got %v", err)
	}
}

func TestDrain_UnparseableFeedCountsAsFailed(t *testing.T) {
	g := &fakeGetter{bodies: map[string]string{
		"http://a.example/rss": "this is not xml",
	}}
	s := &Source{Getter: g, Now: testNow}
	_, err := s.Drain(context.Background(), []Descriptor{{Name: "A", URL: "http://a.example/rss"}})
	if !errors.Is(err, ErrAllFeedsFailed) {
		t.Fatalf("expected ErrAllFeedsFailed for sole unparseable feed, got %v", err)
	}
}

func TestDrain_EmptyHealthyFeedIsNotAFailure(t *testing.T) {
	g := &fakeGetter{bodies: map[string]string{
		"http://a.example/rss": rssFeed("A"),
	}}
	s := &Source{Getter: g, Now: testNow}
	stubs, err := s.Drain(context.Background(), []Descriptor{{Name: "A", URL: "http://a.example/rss"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stubs) != 0 {
		t.Fatalf("expected no stubs, got %+v", stubs)
	}
}
