package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/extract"
	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/gmail"
	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/metrics"
	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/notification"
)

// UnseenFetcher pulls unread mail that has not been handled this run
type UnseenFetcher interface {
	FetchUnseen(ctx context.Context, limit int64) ([]gmail.MailItem, error)
}

// Extractor decides whether a mail describes a scheduled event
type Extractor interface {
	Extract(ctx context.Context, subject, body string) extract.Result
}

// EventCreator is the calendar-creation collaborator
type EventCreator interface {
	CreateEvent(ctx context.Context, title string, start time.Time) error
}

// Pipeline wires decode, ack, fetch, extraction and dispatch for each
// push notification. Per-mail failures never abort the rest of a batch.
type Pipeline struct {
	fetcher   UnseenFetcher
	extractor Extractor
	creator   EventCreator
	metrics   *metrics.Metrics
	loc       *time.Location
	limit     int64
}

// New creates a pipeline
func New(fetcher UnseenFetcher, extractor Extractor, creator EventCreator, m *metrics.Metrics, loc *time.Location, limit int64) *Pipeline {
	if loc == nil {
		loc = time.Local
	}
	return &Pipeline{
		fetcher:   fetcher,
		extractor: extractor,
		creator:   creator,
		metrics:   m,
		loc:       loc,
		limit:     limit,
	}
}

// HandleNotification processes one push message. The payload decode is
// best effort; the notification itself is the signal that new mail
// exists. The message is acked before any fetching, so recovery from
// later failures rests entirely on the fetcher's internal retry: there
// is deliberately no second chance at the broker level.
func (p *Pipeline) HandleNotification(ctx context.Context, payload []byte, ack func()) {
	started := time.Now()
	p.metrics.NotificationsReceived.Inc()
	logrus.Info("Gmail notification received")

	if data, ok := notification.Decode(payload); ok {
		logrus.Infof("Notification data: %v", data)
	} else {
		p.metrics.DecodeFailures.Inc()
		logrus.Info("Notification received (data decode failed, proceeding anyway)")
	}

	ack()

	items, err := p.fetcher.FetchUnseen(ctx, p.limit)
	if err != nil {
		p.metrics.FetchFailures.Inc()
		logrus.Errorf("All retry attempts exhausted, dropping this cycle: %v", err)
		return
	}

	if len(items) == 0 {
		logrus.Info("No new mail to process")
		return
	}

	for _, item := range items {
		p.processItem(ctx, item)
	}

	p.metrics.ProcessingTime.Observe(time.Since(started).Seconds())
}

// processItem runs one mail through the engine and dispatches on accept
func (p *Pipeline) processItem(ctx context.Context, item gmail.MailItem) {
	p.metrics.MailsProcessed.Inc()
	logrus.Infof("Processing: %s", preview(item.Subject))

	result := p.extractor.Extract(ctx, item.Subject, item.Body)
	if !result.HasEvent {
		p.metrics.ExtractionRejects.Inc()
		logrus.Infof("No event detected in: %s", preview(item.Subject))
		return
	}

	eventTime := result.Time
	if eventTime == "" {
		eventTime = "09:00"
	}

	start, err := time.ParseInLocation("2006-01-02 15:04", result.Date+" "+eventTime, p.loc)
	if err != nil {
		logrus.Errorf("Failed to compose event time for %q: %v", item.Subject, err)
		return
	}

	// date-only comparison, same rule the engine applies
	if start.Format("2006-01-02") < time.Now().In(p.loc).Format("2006-01-02") {
		logrus.Infof("Skipping past event (date: %s)", result.Date)
		return
	}

	p.dispatch(ctx, result.Title, start)
}

// ProcessBacklog makes one pass over unread mail at startup, before the
// listen loop. Unlike the live path this pass re-parses the event time
// with "now" as the default and bumps the year forward when the result
// is already behind, matching the long-standing startup behaviour.
func (p *Pipeline) ProcessBacklog(ctx context.Context) {
	logrus.Info("Processing existing unread mail")

	items, err := p.fetcher.FetchUnseen(ctx, p.limit)
	if err != nil {
		p.metrics.FetchFailures.Inc()
		logrus.Errorf("Backlog fetch failed: %v", err)
		return
	}

	for _, item := range items {
		p.metrics.MailsProcessed.Inc()

		result := p.extractor.Extract(ctx, item.Subject, item.Body)
		if !result.HasEvent {
			p.metrics.ExtractionRejects.Inc()
			logrus.Infof("No event detected in: %s", preview(item.Subject))
			continue
		}

		now := time.Now().In(p.loc)
		eventTime := result.Time
		if eventTime == "" {
			eventTime = now.Format("15:04")
		}

		start, err := time.ParseInLocation("2006-01-02 15:04", result.Date+" "+eventTime, p.loc)
		if err != nil {
			logrus.Errorf("Failed to compose event time for %q: %v", item.Subject, err)
			continue
		}

		if start.Before(now) {
			start = time.Date(now.Year(), start.Month(), start.Day(),
				start.Hour(), start.Minute(), 0, 0, p.loc)
		}

		p.dispatch(ctx, result.Title, start)
	}
}

// dispatch hands an accepted event to the calendar collaborator.
// Failures are logged and skip this item only.
func (p *Pipeline) dispatch(ctx context.Context, title string, start time.Time) {
	logrus.WithFields(logrus.Fields{
		"title": title,
		"start": start.Format("2006-01-02 15:04"),
	}).Info("Event detected")

	if err := p.creator.CreateEvent(ctx, title, start); err != nil {
		p.metrics.EventFailures.Inc()
		logrus.Errorf("Failed to create event for %q: %v", title, err)
		return
	}
	p.metrics.EventsCreated.Inc()
}

func preview(s string) string {
	if len(s) > 50 {
		return s[:50] + "..."
	}
	return s
}
