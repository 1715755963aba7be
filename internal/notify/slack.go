package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/manav03panchal/medremind/internal/model"
)

// SlackFormatter formats events for Slack incoming webhooks.
type SlackFormatter struct{}

type slackPayload struct {
	Text        string        `json:"text,omitempty"`
	Blocks      []slackBlock  `json:"blocks,omitempty"`
	Attachments []slackAttach `json:"attachments,omitempty"`
}

type slackBlock struct {
	Type     string           `json:"type"`
	Text     *slackBlockText  `json:"text,omitempty"`
	Fields   []slackBlockText `json:"fields,omitempty"`
	Elements []slackBlockText `json:"elements,omitempty"`
}

type slackBlockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// slackAttach carries the sidebar color.
type slackAttach struct {
	Color    string `json:"color,omitempty"`
	Fallback string `json:"fallback,omitempty"`
}

// Format converts an event to Slack block kit.
func (f *SlackFormatter) Format(e model.Event) ([]byte, error) {
	title := e.Title()

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackBlockText{Type: "plain_text", Text: title},
		},
	}

	if msg := eventMessage(e); msg != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackBlockText{Type: "mrkdwn", Text: slackEscape(msg)},
		})
	}

	if fields := eventFields(e); len(fields) > 0 {
		var texts []slackBlockText
		for _, fl := range fields {
			texts = append(texts, slackBlockText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*%s*\n%s", fl.Name, slackEscape(fl.Value)),
			})
		}
		blocks = append(blocks, slackBlock{Type: "section", Fields: texts})
	}

	blocks = append(blocks, slackBlock{
		Type: "context",
		Elements: []slackBlockText{{
			Type: "mrkdwn",
			Text: fmt.Sprintf("medremind | %s", e.Timestamp.Format("Jan 2, 15:04")),
		}},
	})

	return json.Marshal(slackPayload{
		Text:   fmt.Sprintf("*%s*", slackEscape(title)),
		Blocks: blocks,
		Attachments: []slackAttach{{
			Color:    colorToHex(colorFor(e.Type)),
			Fallback: title,
		}},
	})
}

// ContentType returns the content type for Slack webhooks.
func (f *SlackFormatter) ContentType() string {
	return "application/json"
}

// colorToHex converts an integer color to hex string.
func colorToHex(color int) string {
	return fmt.Sprintf("#%06X", color)
}

// slackEscape escapes the characters Slack mrkdwn treats as control.
func slackEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
