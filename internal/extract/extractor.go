// Package extract recovers PartyRecords from rendered listing cards.
//
// The listing page has no stable schema, so every field is resolved by an
// ordered list of independent rules. The first rule that hits wins; when none
// does the field gets its sentinel. A record is only dropped when its link or
// title cannot be resolved.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	appLog "partywatch/internal/log"
	"partywatch/internal/model"
)

// card is what a rule sees: the entry scope, the candidate node inside it
// and the already resolved title.
type card struct {
	scope *goquery.Selection
	node  *goquery.Selection
	title string
}

// holds reports whether sel is the candidate node or one of its ancestors.
func (c card) holds(sel *goquery.Selection) bool {
	n := c.node.Get(0)
	return sel.Get(0) == n || sel.Contains(n)
}

// inNode reports whether sel is the candidate node or sits inside it. A node
// that is the link itself spans the whole card and shadows nothing.
func (c card) inNode(sel *goquery.Selection) bool {
	n := c.node.Get(0)
	if n == c.scope.Get(0) {
		return false
	}
	return sel.Get(0) == n || c.node.Contains(sel.Get(0))
}

// rule is one strategy for one field.
type rule[T any] struct {
	name  string
	apply func(c card) (T, bool)
}

func firstHit[T any](rules []rule[T], c card, fallback T) (T, string) {
	for _, r := range rules {
		if v, ok := r.apply(c); ok {
			return v, r.name
		}
	}
	return fallback, ""
}

// Extractor turns candidate nodes into PartyRecords.
type Extractor struct {
	base *url.URL

	timeRules []rule[string]
	hostRules []rule[string]
	dishRules []rule[model.Dish]
}

// New builds an Extractor resolving links and images against baseURL.
// An empty baseURL leaves links as they appear in the markup.
func New(baseURL string) (*Extractor, error) {
	e := &Extractor{}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("extract: invalid base URL: %w", err)
		}
		if !u.IsAbs() {
			return nil, fmt.Errorf("extract: base URL %q is not absolute", baseURL)
		}
		e.base = u
	}

	e.timeRules = []rule[string]{
		{name: "clock-icon-sibling", apply: clockIconSibling},
		{name: "clock-icon-wrapper-sibling", apply: clockIconWrapperSibling},
		{name: "text-scan", apply: timeTextScan},
	}
	e.hostRules = []rule[string]{
		{name: "label-with-avatar", apply: hostWithAvatar},
	}
	e.dishRules = []rule[model.Dish]{
		{name: "dish-card", apply: e.dishCard},
	}
	return e, nil
}

// Extract returns the record for node, or false when the node has no
// resolvable link, identifier or title. It never panics.
func (e *Extractor) Extract(node *goquery.Selection) (rec model.PartyRecord, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			appLog.Warn("extract: recovered from panic", "panic", fmt.Sprint(r))
			rec, ok = model.PartyRecord{}, false
		}
	}()

	if node == nil || node.Length() == 0 {
		return model.PartyRecord{}, false
	}
	node = node.First()

	link := node.Closest("a[href]")
	if link.Length() == 0 {
		appLog.Debug("extract: no link ancestor")
		return model.PartyRecord{}, false
	}
	href, _ := link.Attr("href")

	id, abs, ok := e.resolveLink(href)
	if !ok {
		appLog.Debug("extract: unusable link", "href", href)
		return model.PartyRecord{}, false
	}

	title := cleanText(link.AttrOr("title", ""))
	if title == "" {
		title = cleanText(node.Text())
	}
	if title == "" {
		appLog.Debug("extract: empty title", "id", id)
		return model.PartyRecord{}, false
	}

	// Fields live anywhere in the card, not just under the title node.
	c := card{scope: link, node: node, title: title}

	rec = model.PartyRecord{
		ID:    id,
		Title: title,
		URL:   abs,
	}

	var timeRule, hostRule, dishRule string
	rec.Time, timeRule = firstHit(e.timeRules, c, model.Unspecified)
	rec.Host, hostRule = firstHit(e.hostRules, c, model.Unspecified)
	rec.Dish, dishRule = firstHit(e.dishRules, c, model.Dish{Name: model.NoDish})

	appLog.Debug("extract: record",
		"id", rec.ID,
		"time_rule", timeRule,
		"host_rule", hostRule,
		"dish_rule", dishRule,
	)
	return rec, true
}

// ExtractAll runs Extract over every node in sel and drops misses.
func (e *Extractor) ExtractAll(sel *goquery.Selection) []model.PartyRecord {
	out := make([]model.PartyRecord, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if rec, ok := e.Extract(s); ok {
			out = append(out, rec)
		}
	})
	return out
}

// resolveLink returns the identifier (the single path segment of href) and
// the fully qualified link.
func (e *Extractor) resolveLink(href string) (id, abs string, ok bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", "", false
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return "", "", false
	}

	seg := strings.Trim(u.Path, "/")
	if seg == "" || strings.Contains(seg, "/") {
		return "", "", false
	}

	return seg, e.resolve(u), true
}

func (e *Extractor) resolve(u *url.URL) string {
	if e.base == nil {
		return u.String()
	}
	return e.base.ResolveReference(u).String()
}

func (e *Extractor) resolveString(ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return e.resolve(u)
}
