package dispatch

import (
	"fmt"
	"time"

	"partywatch/internal/model"
)

// Message is the JSON body POSTed to a group's webhook. The layout follows
// the Discord execute-webhook payload, which most chat sinks accept.
type Message struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []Embed `json:"embeds"`
}

type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	URL         string  `json:"url,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Thumbnail   *Image  `json:"thumbnail,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
	Footer      *Footer `json:"footer,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type Image struct {
	URL string `json:"url"`
}

type Footer struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

// BuildMessage renders one party for one group.
func BuildMessage(p model.PartyRecord, g model.InterestGroup, opts Options, now time.Time) Message {
	embed := Embed{
		Title:       p.Title,
		Description: fmt.Sprintf("New party matching **%s**", g.Name),
		URL:         p.URL,
		Color:       g.Color,
		Fields: []Field{
			{Name: "Host", Value: p.Host, Inline: true},
			{Name: "Time", Value: p.Time, Inline: true},
			{Name: "Dish", Value: dishLabel(p.Dish), Inline: true},
			{Name: "Link", Value: p.URL},
		},
		Timestamp: now.UTC().Format(time.RFC3339),
	}

	if p.Dish.Image != nil && *p.Dish.Image != "" {
		embed.Thumbnail = &Image{URL: *p.Dish.Image}
	} else if g.Thumbnail != "" {
		embed.Thumbnail = &Image{URL: g.Thumbnail}
	}

	if opts.FooterText != "" {
		embed.Footer = &Footer{Text: opts.FooterText, IconURL: opts.FooterIconURL}
	}

	return Message{
		Username:  opts.Username,
		AvatarURL: opts.AvatarURL,
		Embeds:    []Embed{embed},
	}
}

func dishLabel(d model.Dish) string {
	if d.Name == "" {
		return model.NoDish
	}
	if d.Quantity != nil {
		return fmt.Sprintf("%d × %s", *d.Quantity, d.Name)
	}
	return d.Name
}
