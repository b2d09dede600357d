// Package ovh is a minimal client of the OVHcloud API (account and domains).
package ovh

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crm-gin/internal/models"

	"github.com/go-resty/resty/v2"
)

var endpoints = map[string]string{
	"ovh-eu": "https://eu.api.ovh.com/1.0",
	"ovh-ca": "https://ca.api.ovh.com/1.0",
	"ovh-us": "https://api.us.ovhcloud.com/1.0",
}

// Me is the account behind the consumer key
type Me struct {
	NicHandle string `json:"nichandle"`
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	Name      string `json:"name"`
}

// ServiceInfos carries the renewal data of a domain
type ServiceInfos struct {
	Domain     string `json:"domain"`
	Expiration string `json:"expiration"`
	Renew      struct {
		Automatic bool `json:"automatic"`
	} `json:"renew"`
}

// ExpiresAt parses the YYYY-MM-DD expiration
func (s ServiceInfos) ExpiresAt() *time.Time {
	t, err := time.Parse("2006-01-02", s.Expiration)
	if err != nil {
		return nil
	}
	return &t
}

type apiError struct {
	Message string `json:"message"`
}

type Client struct {
	http        *resty.Client
	baseURL     string
	appKey      string
	appSecret   string
	consumerKey string
	now         func() time.Time
}

// New builds a client from tenant settings. baseURL overrides the endpoint
// table when non-empty.
func New(cfg models.OVHSettings, baseURL string) *Client {
	if baseURL == "" {
		baseURL = endpoints[cfg.Endpoint]
		if baseURL == "" {
			baseURL = endpoints["ovh-eu"]
		}
	}
	return &Client{
		http:        resty.New().SetTimeout(15*time.Second).SetHeader("Content-Type", "application/json"),
		baseURL:     strings.TrimRight(baseURL, "/"),
		appKey:      cfg.ApplicationKey,
		appSecret:   cfg.ApplicationSecret,
		consumerKey: cfg.ConsumerKey,
		now:         time.Now,
	}
}

// Signature computes the X-Ovh-Signature header value
func Signature(appSecret, consumerKey, method, url, body string, ts int64) string {
	h := sha1.Sum([]byte(strings.Join([]string{appSecret, consumerKey, method, url, body, strconv.FormatInt(ts, 10)}, "+")))
	return "$1$" + hex.EncodeToString(h[:])
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	url := c.baseURL + path
	ts := c.now().Unix()

	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Ovh-Application", c.appKey).
		SetHeader("X-Ovh-Consumer", c.consumerKey).
		SetHeader("X-Ovh-Timestamp", strconv.FormatInt(ts, 10)).
		SetHeader("X-Ovh-Signature", Signature(c.appSecret, c.consumerKey, "GET", url, "", ts)).
		SetError(&apiErr).
		Get(url)
	if err != nil {
		return fmt.Errorf("ovh request %s: %w", path, err)
	}
	if resp.IsError() {
		if apiErr.Message != "" {
			return fmt.Errorf("ovh %s: %s", path, apiErr.Message)
		}
		return fmt.Errorf("ovh %s: status %d", path, resp.StatusCode())
	}
	return json.Unmarshal(resp.Body(), out)
}

func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.get(ctx, "/me", &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func (c *Client) ListDomains(ctx context.Context) ([]string, error) {
	var domains []string
	if err := c.get(ctx, "/domain", &domains); err != nil {
		return nil, err
	}
	return domains, nil
}

func (c *Client) DomainInfo(ctx context.Context, domain string) (*ServiceInfos, error) {
	var info ServiceInfos
	if err := c.get(ctx, "/domain/"+domain+"/serviceInfos", &info); err != nil {
		return nil, err
	}
	if info.Domain == "" {
		info.Domain = domain
	}
	return &info, nil
}
