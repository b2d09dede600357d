// Package cloudflare verifies Cloudflare API tokens.
package cloudflare

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TokenStatus is the result of /user/tokens/verify
type TokenStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ExpiresOn string `json:"expires_on,omitempty"`
}

type envelope[T any] struct {
	Success bool         `json:"success"`
	Errors  []apiMessage `json:"errors"`
	Result  T            `json:"result"`
}

type Client struct {
	http *resty.Client
}

func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetAuthToken(token).
			SetTimeout(10 * time.Second),
	}
}

// VerifyToken succeeds only for an active token
func (c *Client) VerifyToken(ctx context.Context) (*TokenStatus, error) {
	var out envelope[TokenStatus]
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).SetError(&out).Get("/user/tokens/verify")
	if err != nil {
		return nil, fmt.Errorf("cloudflare verify: %w", err)
	}
	if resp.IsError() || !out.Success {
		if len(out.Errors) > 0 {
			return nil, fmt.Errorf("cloudflare: %s", out.Errors[0].Message)
		}
		return nil, fmt.Errorf("cloudflare: status %d", resp.StatusCode())
	}
	if out.Result.Status != "active" {
		return nil, fmt.Errorf("cloudflare: token status %q", out.Result.Status)
	}
	return &out.Result, nil
}
