package rules

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Action identifies what a rule does to the document.
type Action string

const (
	// ActionRewrite applies a regex substitution to the raw bytes before the
	// DOM is parsed.
	ActionRewrite Action = "rewrite"
	// ActionBoundaryBefore discards everything before the first matching
	// element; the element itself is kept.
	ActionBoundaryBefore Action = "boundary_before"
	// ActionBoundaryAfter discards everything after the first matching
	// element; the element itself is kept.
	ActionBoundaryAfter Action = "boundary_after"
	// ActionKeepOnly retains only the subtrees matching the selector. Several
	// keep rules form a union in document order.
	ActionKeepOnly Action = "keep_only"
	// ActionRemove deletes matching subtrees from the retained content.
	ActionRemove Action = "remove"
)

// MatchMode controls how attribute values are compared.
type MatchMode string

const (
	// MatchToken compares against whole whitespace-separated tokens of the
	// attribute value. This is the default: precision over recall.
	MatchToken MatchMode = "token"
	// MatchSubstring matches anywhere inside the attribute value.
	MatchSubstring MatchMode = "substring"
)

// Selector matches an element by tag name plus attribute constraints. Every
// constrained attribute must be present with at least one allowed value;
// allowed values within one attribute are alternatives.
type Selector struct {
	Tag   string
	Attrs map[string][]string
	Mode  MatchMode
}

// Rule is one entry of the ordered extraction rule list. Selector actions use
// Selector; ActionRewrite uses Pattern/Replacement ($1-style group references
// allowed in Replacement).
type Rule struct {
	Action      Action
	Selector    Selector
	Pattern     *regexp.Regexp
	Replacement string
}

// Result is the pruned document.
type Result struct {
	Title string
	HTML  string
}

// RuleSet applies an ordered rule list to fetched documents. It is immutable
// after construction and safe for concurrent use across articles.
type RuleSet struct {
	rewrites   []Rule
	boundaries []Rule
	keeps      []Selector
	removes    []Selector
}

// New groups the rule list by pass. Order within each pass is preserved.
func New(list []Rule) *RuleSet {
	rs := &RuleSet{}
	for _, r := range list {
		switch r.Action {
		case ActionRewrite:
			rs.rewrites = append(rs.rewrites, r)
		case ActionBoundaryBefore, ActionBoundaryAfter:
			rs.boundaries = append(rs.boundaries, r)
		case ActionKeepOnly:
			rs.keeps = append(rs.keeps, r.Selector)
		case ActionRemove:
			rs.removes = append(rs.removes, r.Selector)
		}
	}
	return rs
}

// Apply prunes one fetched document. The pass order is fixed: rewrites on the
// raw bytes, then boundary truncation, then the keep-only union, then
// removals inside the retained content. A rule that matches nothing is a
// no-op; a parse failure is an error and the caller drops the article.
func (rs *RuleSet) Apply(raw []byte) (Result, error) {
	for _, r := range rs.rewrites {
		raw = applyRewrite(raw, r.Pattern, r.Replacement)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	bodySel := doc.Find("body").First()
	if bodySel.Length() == 0 {
		return Result{Title: title}, nil
	}
	body := bodySel.Get(0)

	for _, r := range rs.boundaries {
		if n := firstMatch(body, r.Selector); n != nil {
			if r.Action == ActionBoundaryBefore {
				trimBefore(body, n)
			} else {
				trimAfter(body, n)
			}
		}
	}

	if kept := topMatches(body, rs.keeps); len(kept) > 0 {
		rebuildBody(body, kept)
	}

	for _, n := range topMatches(body, rs.removes) {
		n.Parent.RemoveChild(n)
	}

	inner, err := bodySel.Html()
	if err != nil {
		return Result{}, fmt.Errorf("render html: %w", err)
	}
	return Result{Title: title, HTML: strings.TrimSpace(inner)}, nil
}

// applyRewrite substitutes every match, skipping match sites where the
// expansion is already present. Rerunning an insertion-style rewrite (for
// example "<hr/>$0") therefore inserts exactly once.
func applyRewrite(raw []byte, re *regexp.Regexp, repl string) []byte {
	matches := re.FindAllSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return raw
	}
	var out []byte
	last := 0
	for _, m := range matches {
		s, e := m[0], m[1]
		expansion := re.Expand(nil, []byte(repl), raw, m)
		if surrounds(raw, s, e, expansion) {
			out = append(out, raw[last:e]...)
		} else {
			out = append(out, raw[last:s]...)
			out = append(out, expansion...)
		}
		last = e
	}
	return append(out, raw[last:]...)
}

// surrounds reports whether expansion already occurs within the immediate
// neighborhood of the match at raw[s:e].
func surrounds(raw []byte, s, e int, expansion []byte) bool {
	if len(expansion) == 0 {
		return false
	}
	lo := s - len(expansion)
	if lo < 0 {
		lo = 0
	}
	hi := e + len(expansion)
	if hi > len(raw) {
		hi = len(raw)
	}
	return bytes.Contains(raw[lo:hi], expansion)
}

// Matches reports whether the element satisfies the selector.
func (s Selector) Matches(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if !strings.EqualFold(n.Data, s.Tag) {
		return false
	}
	for key, allowed := range s.Attrs {
		if !attrMatches(n, key, allowed, s.Mode) {
			return false
		}
	}
	return true
}

func attrMatches(n *html.Node, key string, allowed []string, mode MatchMode) bool {
	var val string
	found := false
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			val = a.Val
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if mode == MatchSubstring {
		for _, want := range allowed {
			if strings.Contains(val, want) {
				return true
			}
		}
		return false
	}
	for _, token := range strings.Fields(val) {
		for _, want := range allowed {
			if token == want {
				return true
			}
		}
	}
	return false
}

// firstMatch returns the first element in document order under root matching
// the selector, or nil.
func firstMatch(root *html.Node, s Selector) *html.Node {
	var res *html.Node
	walk(root, func(n *html.Node) bool {
		if res == nil && s.Matches(n) {
			res = n
		}
		return res == nil
	})
	return res
}

// topMatches collects, in document order, elements matching any selector,
// without descending into a match. Nested matches are therefore kept exactly
// once, as part of their outermost matching ancestor.
func topMatches(root *html.Node, sels []Selector) []*html.Node {
	if len(sels) == 0 {
		return nil
	}
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		for _, s := range sels {
			if s.Matches(n) {
				out = append(out, n)
				return false
			}
		}
		return true
	})
	return out
}

// walk visits element nodes under root in document order; fn returning false
// skips the node's subtree.
func walk(root *html.Node, fn func(*html.Node) bool) {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && !fn(c) {
			continue
		}
		walk(c, fn)
	}
}

// trimBefore removes everything preceding n in document order, up to but not
// including root. n and its ancestors stay.
func trimBefore(root, n *html.Node) {
	for cur := n; cur != nil && cur != root; cur = cur.Parent {
		parent := cur.Parent
		if parent == nil {
			return
		}
		for sib := cur.PrevSibling; sib != nil; {
			prev := sib.PrevSibling
			parent.RemoveChild(sib)
			sib = prev
		}
	}
}

// trimAfter removes everything following n in document order, up to but not
// including root.
func trimAfter(root, n *html.Node) {
	for cur := n; cur != nil && cur != root; cur = cur.Parent {
		parent := cur.Parent
		if parent == nil {
			return
		}
		for sib := cur.NextSibling; sib != nil; {
			next := sib.NextSibling
			parent.RemoveChild(sib)
			sib = next
		}
	}
}

// rebuildBody replaces body's children with the kept subtrees, preserving
// document order.
func rebuildBody(body *html.Node, kept []*html.Node) {
	for _, n := range kept {
		n.Parent.RemoveChild(n)
	}
	for body.FirstChild != nil {
		body.RemoveChild(body.FirstChild)
	}
	for _, n := range kept {
		body.AppendChild(n)
	}
}
