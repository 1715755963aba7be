package notify

import (
	"encoding/json"
	"time"

	"github.com/manav03panchal/medremind/internal/model"
)

// DiscordFormatter formats events for Discord webhooks.
type DiscordFormatter struct{}

// discordPayload represents a Discord webhook payload.
type discordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

// discordEmbed represents a Discord embed.
type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      *discordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text"`
}

// Format converts an event to a single Discord embed.
func (f *DiscordFormatter) Format(e model.Event) ([]byte, error) {
	embed := discordEmbed{
		Title:       e.Title(),
		Description: eventMessage(e),
		Color:       colorFor(e.Type),
		Timestamp:   e.Timestamp.UTC().Format(time.RFC3339),
		Footer:      &discordEmbedFooter{Text: "medremind"},
	}

	for _, fl := range eventFields(e) {
		embed.Fields = append(embed.Fields, discordEmbedField{
			Name:   fl.Name,
			Value:  fl.Value,
			Inline: true,
		})
	}

	return json.Marshal(discordPayload{Embeds: []discordEmbed{embed}})
}

// ContentType returns the content type for Discord webhooks.
func (f *DiscordFormatter) ContentType() string {
	return "application/json"
}
