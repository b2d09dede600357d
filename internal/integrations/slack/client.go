// Package slack posts notifications to a Slack incoming webhook.
package slack

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	http *resty.Client
}

func New() *Client {
	return &Client{http: resty.New().SetTimeout(10 * time.Second)}
}

type message struct {
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
}

// Post sends text to the webhook. Slack answers a plain "ok" on success.
func (c *Client) Post(ctx context.Context, webhookURL, channel, text string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(message{Text: text, Channel: channel}).
		Post(webhookURL)
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("slack webhook: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
