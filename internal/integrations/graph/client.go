// Package graph reads and writes the Outlook calendar of a Microsoft 365
// user through Microsoft Graph, authenticated with a delegated refresh token.
package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crm-gin/internal/cache"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultLoginBaseURL = "https://login.microsoftonline.com"
	DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

	scope = "offline_access Calendars.ReadWrite"

	// graph DateTimeTimeZone values carry no offset
	localLayout = "2006-01-02T15:04:05"
)

// Credentials identify the app registration and the delegated user.
// RefreshToken is updated in place when Microsoft rotates it.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	TimeZone     string
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type DateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type Location struct {
	DisplayName string `json:"displayName"`
}

type Event struct {
	ID       string           `json:"id,omitempty"`
	Subject  string           `json:"subject"`
	Body     *ItemBody        `json:"body,omitempty"`
	Start    DateTimeTimeZone `json:"start"`
	End      DateTimeTimeZone `json:"end"`
	Location *Location        `json:"location,omitempty"`
	WebLink  string           `json:"webLink,omitempty"`
}

// NewEvent is the input of CreateEvent
type NewEvent struct {
	Subject  string
	Body     string
	Location string
	Start    time.Time
	End      time.Time
}

type Client struct {
	http     *resty.Client
	loginURL string
	graphURL string
	tokens   *cache.TTLCache[string]
}

func New(loginBaseURL, graphBaseURL string) *Client {
	if loginBaseURL == "" {
		loginBaseURL = DefaultLoginBaseURL
	}
	if graphBaseURL == "" {
		graphBaseURL = DefaultGraphBaseURL
	}
	return &Client{
		http:     resty.New().SetTimeout(20 * time.Second),
		loginURL: strings.TrimRight(loginBaseURL, "/"),
		graphURL: strings.TrimRight(graphBaseURL, "/"),
		// access tokens live 60-90 minutes
		tokens: cache.MustNew[string](128, 50*time.Minute, cache.SystemClock),
	}
}

func (c *Client) accessToken(ctx context.Context, creds *Credentials) (string, error) {
	key := creds.TenantID + ":" + creds.ClientID
	return c.tokens.GetOrLoad(key, func() (string, error) {
		var out tokenResponse
		var tokErr tokenError
		resp, err := c.http.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"client_id":     creds.ClientID,
				"client_secret": creds.ClientSecret,
				"grant_type":    "refresh_token",
				"refresh_token": creds.RefreshToken,
				"scope":         scope,
			}).
			SetResult(&out).
			SetError(&tokErr).
			Post(c.loginURL + "/" + creds.TenantID + "/oauth2/v2.0/token")
		if err != nil {
			return "", fmt.Errorf("graph token: %w", err)
		}
		if resp.IsError() {
			return "", fmt.Errorf("graph token: %s: %s", tokErr.Error, tokErr.Description)
		}
		if out.RefreshToken != "" {
			creds.RefreshToken = out.RefreshToken
		}
		return out.AccessToken, nil
	})
}

func (c *Client) request(ctx context.Context, creds *Credentials) (*resty.Request, *graphError, error) {
	tok, err := c.accessToken(ctx, creds)
	if err != nil {
		return nil, nil, err
	}
	gErr := &graphError{}
	req := c.http.R().SetContext(ctx).SetAuthToken(tok).SetError(gErr)
	if tz := creds.TimeZone; tz != "" {
		req.SetHeader("Prefer", fmt.Sprintf(`outlook.timezone="%s"`, tz))
	}
	return req, gErr, nil
}

func check(op string, resp *resty.Response, err error, gErr *graphError) error {
	if err != nil {
		return fmt.Errorf("graph %s: %w", op, err)
	}
	if resp.IsError() {
		return fmt.Errorf("graph %s: %s: %s", op, gErr.Error.Code, gErr.Error.Message)
	}
	return nil
}

func (c *Client) tz(creds *Credentials) (string, *time.Location) {
	name := creds.TimeZone
	if name == "" {
		name = "Europe/Paris"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return "UTC", time.UTC
	}
	return name, loc
}

// Verify fetches an access token, which validates the whole credential set
func (c *Client) Verify(ctx context.Context, creds *Credentials) error {
	_, err := c.accessToken(ctx, creds)
	return err
}

func (c *Client) CreateEvent(ctx context.Context, creds *Credentials, in NewEvent) (*Event, error) {
	req, gErr, err := c.request(ctx, creds)
	if err != nil {
		return nil, err
	}
	tzName, loc := c.tz(creds)
	ev := Event{
		Subject: in.Subject,
		Start:   DateTimeTimeZone{DateTime: in.Start.In(loc).Format(localLayout), TimeZone: tzName},
		End:     DateTimeTimeZone{DateTime: in.End.In(loc).Format(localLayout), TimeZone: tzName},
	}
	if in.Body != "" {
		ev.Body = &ItemBody{ContentType: "text", Content: in.Body}
	}
	if in.Location != "" {
		ev.Location = &Location{DisplayName: in.Location}
	}

	var out Event
	resp, err := req.SetBody(ev).SetResult(&out).Post(c.graphURL + "/me/events")
	if err := check("create event", resp, err, gErr); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListEvents returns the calendar view between start and end, oldest first
func (c *Client) ListEvents(ctx context.Context, creds *Credentials, start, end time.Time) ([]Event, error) {
	req, gErr, err := c.request(ctx, creds)
	if err != nil {
		return nil, err
	}
	var out struct {
		Value []Event `json:"value"`
	}
	resp, err := req.
		SetQueryParams(map[string]string{
			"startDateTime": start.UTC().Format(time.RFC3339),
			"endDateTime":   end.UTC().Format(time.RFC3339),
			"$orderby":      "start/dateTime",
			"$top":          "50",
			"$select":       "id,subject,start,end,location,webLink",
		}).
		SetResult(&out).
		Get(c.graphURL + "/me/calendarview")
	if err := check("calendar view", resp, err, gErr); err != nil {
		return nil, err
	}
	return out.Value, nil
}
