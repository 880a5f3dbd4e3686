package match

import (
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"partywatch/internal/model"
)

// Classifier matches titles against the keywords of the enabled groups in a
// single pass over the normalized title.
type Classifier struct {
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
	groups  []model.InterestGroup

	// keywordGroups[i] lists indexes into groups for dictionary entry i.
	keywordGroups [][]int
}

// NewClassifier builds a classifier over the enabled groups. Disabled groups
// are dropped here, so Classify can never return one. Group order is kept
// and defines the order of Classify results.
func NewClassifier(groups []model.InterestGroup) *Classifier {
	c := &Classifier{}

	dict := make([]string, 0)
	index := make(map[string]int)

	for _, g := range groups {
		if !g.Enabled {
			continue
		}
		gi := len(c.groups)
		c.groups = append(c.groups, g)

		for _, kw := range g.Keywords {
			nk := Normalize(kw)
			if nk == "" {
				// An empty keyword would match every title.
				continue
			}
			di, ok := index[nk]
			if !ok {
				di = len(dict)
				index[nk] = di
				dict = append(dict, nk)
				c.keywordGroups = append(c.keywordGroups, nil)
			}
			if !containsInt(c.keywordGroups[di], gi) {
				c.keywordGroups[di] = append(c.keywordGroups[di], gi)
			}
		}
	}

	if len(dict) > 0 {
		c.matcher = ahocorasick.NewStringMatcher(dict)
	}
	return c
}

// Groups returns the enabled groups the classifier was built with.
func (c *Classifier) Groups() []model.InterestGroup {
	return c.groups
}

// Classify returns every enabled group with at least one keyword that is a
// substring of the normalized title, in configuration order.
func (c *Classifier) Classify(title string) []model.InterestGroup {
	if c.matcher == nil {
		return nil
	}
	text := Normalize(title)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	hits := c.matcher.Match([]byte(text))
	c.mu.Unlock()

	if len(hits) == 0 {
		return nil
	}

	matched := make([]bool, len(c.groups))
	for _, hit := range hits {
		if hit < 0 || hit >= len(c.keywordGroups) {
			continue
		}
		for _, gi := range c.keywordGroups[hit] {
			matched[gi] = true
		}
	}

	out := make([]model.InterestGroup, 0, len(c.groups))
	for gi, ok := range matched {
		if ok {
			out = append(out, c.groups[gi])
		}
	}
	return out
}

// Classify is the one-shot form of Classifier.Classify.
func Classify(title string, groups []model.InterestGroup) []model.InterestGroup {
	return NewClassifier(groups).Classify(title)
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
