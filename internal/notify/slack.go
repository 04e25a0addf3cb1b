package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Slack posts alerts to an incoming webhook as a single coloured attachment.
type Slack struct {
	Webhook string
	Client  *http.Client
}

// NewSlack returns nil when webhook is empty.
func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color    string       `json:"color"`
	Title    string       `json:"title"`
	Fallback string       `json:"fallback"`
	Fields   []slackField `json:"fields"`
	Ts       int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func slackMessageFor(a Alert) slackMessage {
	att := slackAttachment{
		Color:    "danger",
		Title:    displayName(a.Service),
		Fallback: a.Title() + "\n" + a.Text(),
		Fields: []slackField{
			{Title: "Target", Value: a.Service.Target, Short: true},
		},
	}
	if !a.Since.IsZero() {
		att.Ts = a.Since.Unix()
		att.Fields = append(att.Fields, slackField{Title: "Since", Value: a.Since.UTC().Format(time.RFC3339), Short: true})
	}
	if a.Kind == AlertRecovered {
		att.Color = "good"
		att.Fields = append(att.Fields, slackField{Title: "Downtime", Value: a.downtime(), Short: true})
	} else if a.Error != "" {
		att.Fields = append(att.Fields, slackField{Title: "Error", Value: a.Error})
	}
	return slackMessage{
		Text:        "*" + a.Title() + "*",
		Attachments: []slackAttachment{att},
	}
}

func (s *Slack) Notify(ctx context.Context, a Alert) error {
	if s == nil || s.Webhook == "" {
		return errors.New("slack disabled")
	}
	body, err := json.Marshal(slackMessageFor(a))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("slack: unexpected status %s", resp.Status)
	}
	return nil
}
