package match

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"partywatch/internal/model"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Fishing Party — Rare Catches": "fishing party rare catches",
		"  CAKE!!  time\n\tnow ":       "cake time now",
		"Sushi/Chapaa-Kebab":           "sushi chapaa kebab",
		"":                             "",
		"---":                          "",
		"Lvl 10 Épic":                  "lvl 10 pic",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Fishing Party — Rare Catches",
		"  a  b  ",
		"ÀÉÎ õ ü 123",
		"tab\tnew\nline",
		"🎉 Party 🎉",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), in)
	}
}

func sampleGroups() []model.InterestGroup {
	return []model.InterestGroup{
		{Name: "Cakes", Keywords: []string{"cake", "cakes"}, Enabled: true},
		{Name: "Fishing", Keywords: []string{"fishing", "rare catch"}, Enabled: true},
		{Name: "Fish Dishes", Keywords: []string{"Fish", "sushi"}, Enabled: true},
		{Name: "Legendary", Keywords: []string{"epic", "legendary"}, Enabled: true},
		{Name: "Plushies", Keywords: []string{"plushie"}, Enabled: false},
	}
}

func names(groups []model.InterestGroup) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Name)
	}
	return out
}

func TestClassifyMultipleGroups(t *testing.T) {
	got := Classify("Fishing Party — Rare Catches", sampleGroups())
	assert.Equal(t, []string{"Fishing", "Fish Dishes"}, names(got))
}

func TestClassifyNoMatch(t *testing.T) {
	assert.Empty(t, Classify("Bug catching meetup", sampleGroups()))
	assert.Empty(t, Classify("", sampleGroups()))
}

func TestClassifyOnlyEnabled(t *testing.T) {
	got := Classify("Plushie swap and cake", sampleGroups())
	assert.Equal(t, []string{"Cakes"}, names(got))
	for _, g := range got {
		assert.True(t, g.Enabled)
	}
}

func TestClassifyPunctuationInsensitive(t *testing.T) {
	groups := []model.InterestGroup{
		{Name: "Celebration", Keywords: []string{"celebration-cake"}, Enabled: true},
	}
	got := Classify("CELEBRATION   cake!!!", groups)
	assert.Equal(t, []string{"Celebration"}, names(got))
}

func TestClassifyIgnoresEmptyKeywords(t *testing.T) {
	groups := []model.InterestGroup{
		{Name: "Blank", Keywords: []string{"", "  ", "!!"}, Enabled: true},
	}
	assert.Empty(t, Classify("anything at all", groups))
}

func TestClassifyOrderIndependent(t *testing.T) {
	titles := []string{
		"Fishing Party — Rare Catches",
		"Epic cake and sushi night",
		"Legendary plushie",
		"nothing here",
	}
	rng := rand.New(rand.NewSource(7))
	for _, title := range titles {
		want := names(Classify(title, sampleGroups()))
		for i := 0; i < 10; i++ {
			shuffled := sampleGroups()
			rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
			assert.ElementsMatch(t, want, names(Classify(title, shuffled)), title)
		}
	}
}

func TestClassifierSharedKeyword(t *testing.T) {
	groups := []model.InterestGroup{
		{Name: "A", Keywords: []string{"fish"}, Enabled: true},
		{Name: "B", Keywords: []string{"FISH", "fish"}, Enabled: true},
	}
	c := NewClassifier(groups)
	assert.Equal(t, []string{"A", "B"}, names(c.Classify("a fish")))
	assert.Len(t, c.Groups(), 2)
}
