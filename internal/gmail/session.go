package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// MailItem is one unread message reduced to what the extraction engine needs
type MailItem struct {
	ID      string
	Subject string
	Body    string
}

// MailService abstracts the unread-mail operations the fetcher consumes
type MailService interface {
	// ListUnread returns the ids of up to limit unread inbox messages
	ListUnread(ctx context.Context, limit int64) ([]string, error)

	// GetMessage fetches one message and extracts subject and plain-text body
	GetMessage(ctx context.Context, id string) (MailItem, error)

	// Refresh replaces the underlying service handle with a freshly
	// authenticated one
	Refresh(ctx context.Context) error
}

// Session wraps the shared Gmail service handle. Notification handlers can
// overlap, and a credential refresh swaps the handle wholesale, so all
// access goes through an RWMutex.
type Session struct {
	mu      sync.RWMutex
	service *gmailapi.Service

	oauthConfig *oauth2.Config
	token       *oauth2.Token
}

// NewSession authenticates with the stored OAuth token and builds the
// Gmail service.
func NewSession(ctx context.Context, clientSecretFile, tokenFile string, scopes []string) (*Session, error) {
	oauthConfig, token, err := loadCredentials(clientSecretFile, tokenFile, scopes)
	if err != nil {
		return nil, err
	}

	s := &Session{oauthConfig: oauthConfig, token: token}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh rebuilds the Gmail service from the token source. The handle is
// replaced under the write lock; in-flight calls on the old handle finish
// against the stale credentials.
func (s *Session) Refresh(ctx context.Context) error {
	tokenSource := s.oauthConfig.TokenSource(ctx, s.token)

	service, err := gmailapi.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return fmt.Errorf("failed to create Gmail service: %w", err)
	}

	s.mu.Lock()
	s.service = service
	s.mu.Unlock()

	logrus.Info("Gmail service handle refreshed")
	return nil
}

func (s *Session) handle() *gmailapi.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.service
}

// ListUnread returns the ids of up to limit unread inbox messages
func (s *Session) ListUnread(ctx context.Context, limit int64) ([]string, error) {
	response, err := s.handle().Users.Messages.List("me").
		LabelIds("INBOX", "UNREAD").
		MaxResults(limit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	ids := make([]string, 0, len(response.Messages))
	for _, msg := range response.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, nil
}

// GetMessage fetches a message and extracts its subject header and body.
// The first text/plain part wins; the snippet is the fallback when no
// plain-text part exists.
func (s *Session) GetMessage(ctx context.Context, id string) (MailItem, error) {
	msg, err := s.handle().Users.Messages.Get("me", id).Context(ctx).Do()
	if err != nil {
		return MailItem{}, fmt.Errorf("failed to get message %s: %w", id, err)
	}

	item := MailItem{ID: id, Subject: "No Subject"}

	for _, header := range msg.Payload.Headers {
		if header.Name == "Subject" {
			item.Subject = header.Value
			break
		}
	}

	for _, part := range msg.Payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			data, err := decodeURLSafe(part.Body.Data)
			if err != nil {
				logrus.Warnf("Failed to decode body part of %s: %v", id, err)
				continue
			}
			item.Body += string(data)
		}
	}

	if item.Body == "" {
		item.Body = msg.Snippet
	}

	return item, nil
}

// Watch registers the mailbox for push notifications on the given topic
// and returns the registration's expiration time.
func (s *Session) Watch(ctx context.Context, topicName string) (time.Time, error) {
	response, err := s.handle().Users.Watch("me", &gmailapi.WatchRequest{
		LabelIds:  []string{"INBOX"},
		TopicName: topicName,
	}).Context(ctx).Do()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to start Gmail watch: %w", err)
	}

	return time.UnixMilli(response.Expiration), nil
}

// decodeURLSafe decodes web-safe base64 with or without padding
func decodeURLSafe(data string) ([]byte, error) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(data)
}

// loadCredentials reads the OAuth client secret and the stored user token
func loadCredentials(clientSecretFile, tokenFile string, scopes []string) (*oauth2.Config, *oauth2.Token, error) {
	secret, err := os.ReadFile(clientSecretFile)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(secret, scopes...)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse client secret file: %w", err)
	}

	f, err := os.Open(tokenFile)
	if err != nil {
		return nil, nil, fmt.Errorf("could not load token file %s (run get-token first): %w", tokenFile, err)
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, nil, fmt.Errorf("could not decode token file: %w", err)
	}

	return oauthConfig, token, nil
}
