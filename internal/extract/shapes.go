package extract

import (
	"regexp"
	"strconv"
	"strings"

	"partywatch/internal/match"
)

// Markup signatures of the listing page. None of these are stable contracts
// of the site; they are what the rendered cards look like today.
const (
	// clockIconFragment is part of the path data of the clock icon that
	// precedes the schedule text.
	clockIconFragment = "M12 6v6l4 2"

	// mealsAssetMarker appears in the source path of every dish image.
	mealsAssetMarker = "/meals/"

	hostLabelSelector = `[class*="truncate"], [class*="font-medium"]`
	layoutSelector    = `[class*="flex"]`
	avatarSelector    = `img[class*="rounded-full"], [class*="rounded-full"], [class*="avatar"]`
)

var timeShapes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\d+\s*[mhd]\s+ago$`),
	regexp.MustCompile(`(?i)^in\s+\d+\s*[mhd]$`),
	regexp.MustCompile(`(?i)^\d{1,2}:\d{2}\s*[ap]m$`),
	regexp.MustCompile(`(?i)^\d{1,2}\s+[a-z]{3},\s*\d{1,2}:\d{2}\s*[ap]m$`),
}

var (
	ratioShape    = regexp.MustCompile(`^\d+\s*/\s*\d+$`)
	// A letter x needs a space after it so "2xTreme" or "3 Xiao Buns" stay
	// names.
	quantityShape = regexp.MustCompile(`^(\d+)\s*(?:×|[xX]\s)\s*(\S.*)$`)
	spaceRun      = regexp.MustCompile(`\s+`)
)

// Labels that share the host label styling but are never a host name.
var (
	activityVocabulary = vocabulary(
		"Bug Catching", "Cooking", "Farming", "Fishing", "Foraging",
		"Furniture Making", "Gardening", "Hunting", "Mining", "Smelting",
		"Woodcutting", "Accessory Making", "Questing", "Socializing",
		"Decorating",
	)
	locationVocabulary = vocabulary(
		"Kilima Valley", "Kilima", "Bahari Bay", "Bahari", "Elderwood",
		"Home Plot", "Housing Plot", "Fairgrounds",
	)
	beginnerFriendly = match.Normalize("Beginner Friendly")
)

func vocabulary(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[match.Normalize(w)] = struct{}{}
	}
	return out
}

// cleanText collapses whitespace runs and trims.
func cleanText(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

func isTimeText(s string) bool {
	if s == "" {
		return false
	}
	for _, re := range timeShapes {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// isHostExcluded reports whether a host-styled label is really some other
// field rendered with the same classes.
func isHostExcluded(s string) bool {
	if isTimeText(s) || ratioShape.MatchString(s) || quantityShape.MatchString(s) {
		return true
	}
	n := match.Normalize(s)
	if n == "" || n == beginnerFriendly {
		return true
	}
	if _, ok := activityVocabulary[n]; ok {
		return true
	}
	if _, ok := locationVocabulary[n]; ok {
		return true
	}
	return false
}

// parseQuantity splits "2 × Fish Stew" into (2, "Fish Stew").
func parseQuantity(s string) (int, string, bool) {
	m := quantityShape.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	name := cleanText(m[2])
	if name == "" {
		return 0, "", false
	}
	return n, name, true
}
