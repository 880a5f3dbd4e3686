package model

import (
	"fmt"
	"strings"
)

// Sentinel values for fields the extractor could not resolve. They are
// distinct from the empty string so "absent" and "empty" never collide.
const (
	Unspecified = "unspecified"
	NoDish      = "none"
)

// Dish is the optional item attached to a party.
type Dish struct {
	Name     string  `json:"name"`
	Image    *string `json:"image,omitempty"`
	Quantity *int    `json:"quantity,omitempty"`
}

// Present reports whether a dish card was found for the party.
func (d Dish) Present() bool {
	return d.Name != "" && d.Name != NoDish
}

// PartyRecord is the structured view of one listing entry.
type PartyRecord struct {
	// ID is the single opaque path segment of the entry's link. Two scans
	// of the same entry always produce the same ID.
	ID    string `json:"id"`
	Title string `json:"title"`

	// Time and Host are free-form text or Unspecified.
	Time string `json:"time"`
	Host string `json:"host"`

	Dish Dish   `json:"dish"`
	URL  string `json:"url"`
}

// Sparse reports whether none of the optional fields were resolved.
func (p PartyRecord) Sparse() bool {
	return p.Time == Unspecified && p.Host == Unspecified && !p.Dish.Present()
}

// InterestGroup routes matching parties to one webhook.
type InterestGroup struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`

	// Webhook is the sink endpoint for this group.
	Webhook string `json:"-"`

	Color     int    `json:"color"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Enabled   bool   `json:"enabled"`
}

// NotifiedKey is the deduplication unit: one party reported to one group.
type NotifiedKey struct {
	PartyID   string
	GroupName string
}

const keySeparator = "::"

// String encodes the key as "id::group" for persistence.
func (k NotifiedKey) String() string {
	return k.PartyID + keySeparator + k.GroupName
}

// ParseNotifiedKey decodes the "id::group" form. Group names may not
// contain the separator but may contain anything else; the ID never does.
func ParseNotifiedKey(s string) (NotifiedKey, error) {
	id, group, ok := strings.Cut(s, keySeparator)
	if !ok || id == "" || group == "" {
		return NotifiedKey{}, fmt.Errorf("malformed notified key %q", s)
	}
	return NotifiedKey{PartyID: id, GroupName: group}, nil
}
