package gmail

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/dedup"
)

// Fetcher wraps unread-mail fetching with bounded retries. A credential
// failure refreshes the session and moves straight to the next attempt;
// any other failure consumes an exponential backoff delay. When every
// attempt fails the whole batch for that notification cycle is dropped.
type Fetcher struct {
	service      MailService
	store        dedup.Store
	maxAttempts  int
	initialDelay time.Duration
}

// NewFetcher creates a retrying fetch wrapper around a mail service
func NewFetcher(service MailService, store dedup.Store, maxAttempts int, initialDelay time.Duration) *Fetcher {
	return &Fetcher{
		service:      service,
		store:        store,
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
	}
}

// FetchUnseen returns unread mail not yet handled this run, retrying per
// the wrapper policy. On success the returned ids are already marked in
// the dedup store, so repeating the call never yields the same id twice.
func (f *Fetcher) FetchUnseen(ctx context.Context, limit int64) ([]MailItem, error) {
	delay := f.initialDelay
	kind := FailureTransient
	var lastErr error

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		items, err := f.fetchOnce(ctx, limit)
		if err == nil {
			return items, nil
		}
		lastErr = err
		logrus.Warnf("Fetch attempt %d/%d failed: %v", attempt, f.maxAttempts, err)

		if isCredentialError(err) {
			kind = FailureCredential
			logrus.Info("Transport error detected, refreshing credentials")
			if refreshErr := f.service.Refresh(ctx); refreshErr != nil {
				logrus.Errorf("Credential refresh failed: %v", refreshErr)
			}
			// retry immediately, no backoff consumed
			continue
		}

		kind = FailureTransient
		if attempt < f.maxAttempts {
			logrus.Infof("Waiting %v before retry", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}
	}

	return nil, &FetchError{Kind: kind, Attempts: f.maxAttempts, Err: lastErr}
}

// fetchOnce performs a single list+get pass over unread mail, skipping
// ids already handled this run.
func (f *Fetcher) fetchOnce(ctx context.Context, limit int64) ([]MailItem, error) {
	ids, err := f.service.ListUnread(ctx, limit)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Found %d unread mail(s)", len(ids))

	var items []MailItem
	for _, id := range ids {
		// atomic claim: overlapping handlers must not both fetch the
		// same mail. A claim lost to a later get failure stays claimed;
		// at-most-once is the contract here, not exactly-once.
		if !f.store.MarkIfUnseen(id) {
			logrus.Debugf("Mail %s already processed, skipping", id)
			continue
		}

		item, err := f.service.GetMessage(ctx, id)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, nil
}
