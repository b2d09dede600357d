// Package docuseal creates e-signature submissions on DocuSeal.
package docuseal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "https://api.docuseal.com"

type Submitter struct {
	Role  string `json:"role,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type submissionRequest struct {
	TemplateID int         `json:"template_id"`
	SendEmail  bool        `json:"send_email"`
	Submitters []Submitter `json:"submitters"`
}

// SubmitterResult is returned per submitter; EmbedSrc is the signing link
type SubmitterResult struct {
	ID           int64  `json:"id"`
	SubmissionID int64  `json:"submission_id"`
	Email        string `json:"email"`
	Slug         string `json:"slug"`
	EmbedSrc     string `json:"embed_src"`
}

type Client struct {
	http *resty.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("X-Auth-Token", apiKey).
			SetTimeout(20 * time.Second),
	}
}

// CreateSubmission starts a signature flow. DocuSeal emails are disabled,
// the signing link is sent by our own mailer.
func (c *Client) CreateSubmission(ctx context.Context, templateID int, submitters []Submitter) ([]SubmitterResult, error) {
	var out []SubmitterResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(submissionRequest{TemplateID: templateID, SendEmail: false, Submitters: submitters}).
		SetResult(&out).
		Post("/submissions")
	if err != nil {
		return nil, fmt.Errorf("docuseal create submission: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("docuseal: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("docuseal: empty submission response")
	}
	return out, nil
}

// Ping checks the API key by listing a single template
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", "1").
		Get("/templates")
	if err != nil {
		return fmt.Errorf("docuseal ping: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("docuseal: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
