package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Client creates events on the primary calendar
type Client struct {
	service  *calendar.Service
	timezone string
}

// NewClient builds an authenticated Calendar client from the same OAuth
// client secret and stored token the Gmail session uses.
func NewClient(ctx context.Context, clientSecretFile, tokenFile, timezone string, scopes []string) (*Client, error) {
	secret, err := os.ReadFile(clientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(secret, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file: %w", err)
	}

	f, err := os.Open(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token file %s: %w", tokenFile, err)
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("could not decode token file: %w", err)
	}

	service, err := calendar.NewService(ctx, option.WithTokenSource(oauthConfig.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{service: service, timezone: timezone}, nil
}

// CreateEvent inserts a 60-minute event starting at the given time
func (c *Client) CreateEvent(ctx context.Context, title string, start time.Time) error {
	end := start.Add(60 * time.Minute)

	event := &calendar.Event{
		Summary: title,
		Start:   &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: c.timezone},
		End:     &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: c.timezone},
	}

	created, err := c.service.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to insert calendar event: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"title": title,
		"start": start.Format("2006-01-02 15:04"),
		"link":  created.HtmlLink,
	}).Info("Calendar event created")
	return nil
}
