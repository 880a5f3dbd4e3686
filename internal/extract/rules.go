package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"partywatch/internal/model"
)

func hasClockPath(svg *goquery.Selection) bool {
	return svg.Find("path").FilterFunction(func(_ int, p *goquery.Selection) bool {
		return strings.Contains(p.AttrOr("d", ""), clockIconFragment)
	}).Length() > 0
}

// clockIcons walks the clock icons in scope and returns the first time text
// that next(svg) yields.
func clockIcons(scope *goquery.Selection, next func(svg *goquery.Selection) *goquery.Selection) (string, bool) {
	var out string
	scope.Find("svg").EachWithBreak(func(_ int, svg *goquery.Selection) bool {
		if !hasClockPath(svg) {
			return true
		}
		txt := cleanText(next(svg).First().Text())
		if isTimeText(txt) {
			out = txt
			return false
		}
		return true
	})
	return out, out != ""
}

func clockIconSibling(c card) (string, bool) {
	return clockIcons(c.scope, func(svg *goquery.Selection) *goquery.Selection {
		return svg.Next()
	})
}

// clockIconWrapperSibling handles icons wrapped in their own element.
func clockIconWrapperSibling(c card) (string, bool) {
	return clockIcons(c.scope, func(svg *goquery.Selection) *goquery.Selection {
		return svg.Parent().Next()
	})
}

func timeTextScan(c card) (string, bool) {
	var out string
	c.scope.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		txt := cleanText(s.Text())
		if isTimeText(txt) {
			out = txt
			return false
		}
		return true
	})
	return out, out != ""
}

// hostWithAvatar accepts the first host-styled leaf whose own layout row
// also holds an avatar image or initial placeholder. A row that wraps the
// candidate node is the card column, not a host row, and the title is never
// the host.
func hostWithAvatar(c card) (string, bool) {
	var out string
	c.scope.Find(hostLabelSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 || c.inNode(s) {
			return true
		}
		txt := cleanText(s.Text())
		if txt == c.title || isHostExcluded(txt) {
			return true
		}
		row := s.Parent().Closest(layoutSelector)
		if row.Length() == 0 || !within(c.scope, row) || c.holds(row) {
			return true
		}
		if row.Find(avatarSelector).NotSelection(s).Length() == 0 {
			return true
		}
		out = txt
		return false
	})
	return out, out != ""
}

// within reports whether sel is scope itself or one of its descendants, so a
// layout row never reaches into a neighbouring card.
func within(scope, sel *goquery.Selection) bool {
	n := sel.Get(0)
	return n == scope.Get(0) || scope.Contains(n)
}

// dishCard reads the first container holding a meals image as a direct child.
func (e *Extractor) dishCard(c card) (model.Dish, bool) {
	var dish model.Dish
	found := false

	c.scope.Find("div").EachWithBreak(func(_ int, box *goquery.Selection) bool {
		img := box.ChildrenFiltered("img").FilterFunction(func(_ int, i *goquery.Selection) bool {
			return strings.Contains(i.AttrOr("src", ""), mealsAssetMarker)
		}).First()
		if img.Length() == 0 {
			return true
		}

		dish = e.readDishCard(box, img)
		found = true
		return false
	})
	return dish, found
}

func (e *Extractor) readDishCard(box, img *goquery.Selection) model.Dish {
	dish := model.Dish{Name: model.NoDish}

	if src := strings.TrimSpace(img.AttrOr("src", "")); src != "" {
		abs := e.resolveString(src)
		dish.Image = &abs
	}

	// Leaves first, then the whole card text for markup that keeps the
	// quantity and the name in separate inline nodes.
	texts := make([]string, 0, 4)
	box.Find("*").Not("img").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() == 0 {
			texts = append(texts, cleanText(s.Text()))
		}
	})
	texts = append(texts, cleanText(box.Text()))

	for _, t := range texts {
		if qty, name, ok := parseQuantity(t); ok {
			dish.Name = name
			dish.Quantity = &qty
			return dish
		}
	}

	if alt := cleanText(img.AttrOr("alt", "")); alt != "" {
		dish.Name = alt
		return dish
	}
	if t := texts[len(texts)-1]; t != "" {
		dish.Name = t
	}
	return dish
}
