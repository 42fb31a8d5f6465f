package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/extract"
	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/gmail"
	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/metrics"
)

// promauto registers on the default registry, so one shared instance
// serves every test in this package
var testMetrics = metrics.NewMetrics()

type fakeFetcher struct {
	items []gmail.MailItem
	err   error
	calls int
}

func (f *fakeFetcher) FetchUnseen(ctx context.Context, limit int64) ([]gmail.MailItem, error) {
	f.calls++
	return f.items, f.err
}

type fakeExtractor struct {
	results map[string]extract.Result
}

func (f *fakeExtractor) Extract(ctx context.Context, subject, body string) extract.Result {
	return f.results[subject]
}

type fakeCreator struct {
	created []createdEvent
	fail    map[string]bool
}

type createdEvent struct {
	title string
	start time.Time
}

func (f *fakeCreator) CreateEvent(ctx context.Context, title string, start time.Time) error {
	if f.fail[title] {
		return errors.New("calendar unavailable")
	}
	f.created = append(f.created, createdEvent{title, start})
	return nil
}

func futureResult(title string) extract.Result {
	start := time.Now().AddDate(0, 0, 7)
	return extract.Result{
		HasEvent:        true,
		Title:           title,
		Date:            start.Format("2006-01-02"),
		Time:            "15:00",
		DurationMinutes: 60,
		Confidence:      3,
	}
}

func encodedPayload(t *testing.T) []byte {
	t.Helper()
	return []byte(base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"user@example.com"}`)))
}

func newTestPipeline(fetcher *fakeFetcher, extractor *fakeExtractor, creator *fakeCreator) *Pipeline {
	return New(fetcher, extractor, creator, testMetrics, time.UTC, 5)
}

func TestHandleNotificationDispatchesAcceptedMail(t *testing.T) {
	fetcher := &fakeFetcher{items: []gmail.MailItem{{ID: "m1", Subject: "standup"}}}
	extractor := &fakeExtractor{results: map[string]extract.Result{
		"standup": futureResult("standup"),
	}}
	creator := &fakeCreator{}

	acked := false
	pipe := newTestPipeline(fetcher, extractor, creator)
	pipe.HandleNotification(context.Background(), encodedPayload(t), func() { acked = true })

	assert.True(t, acked)
	require.Len(t, creator.created, 1)
	assert.Equal(t, "standup", creator.created[0].title)
	assert.Equal(t, 15, creator.created[0].start.Hour())
}

func TestHandleNotificationAcksDespiteDecodeFailure(t *testing.T) {
	fetcher := &fakeFetcher{}
	pipe := newTestPipeline(fetcher, &fakeExtractor{}, &fakeCreator{})

	acked := false
	pipe.HandleNotification(context.Background(), []byte("!!garbage!!"), func() { acked = true })

	assert.True(t, acked, "decode failure must not prevent the ack")
	assert.Equal(t, 1, fetcher.calls, "fetch proceeds without decoded fields")
}

func TestHandleNotificationDropsCycleOnFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("retries exhausted")}
	creator := &fakeCreator{}
	pipe := newTestPipeline(fetcher, &fakeExtractor{}, creator)

	acked := false
	pipe.HandleNotification(context.Background(), encodedPayload(t), func() { acked = true })

	assert.True(t, acked, "ack happens before fetch")
	assert.Empty(t, creator.created)
}

func TestHandleNotificationIsolatesPerItemFailures(t *testing.T) {
	fetcher := &fakeFetcher{items: []gmail.MailItem{
		{ID: "m1", Subject: "first"},
		{ID: "m2", Subject: "second"},
	}}
	extractor := &fakeExtractor{results: map[string]extract.Result{
		"first":  futureResult("first"),
		"second": futureResult("second"),
	}}
	creator := &fakeCreator{fail: map[string]bool{"first": true}}

	pipe := newTestPipeline(fetcher, extractor, creator)
	pipe.HandleNotification(context.Background(), encodedPayload(t), func() {})

	require.Len(t, creator.created, 1, "a dispatch failure must not abort the batch")
	assert.Equal(t, "second", creator.created[0].title)
}

func TestHandleNotificationSkipsRejectedMail(t *testing.T) {
	fetcher := &fakeFetcher{items: []gmail.MailItem{{ID: "m1", Subject: "newsletter"}}}
	extractor := &fakeExtractor{results: map[string]extract.Result{
		"newsletter": {HasEvent: false, Confidence: 1},
	}}
	creator := &fakeCreator{}

	pipe := newTestPipeline(fetcher, extractor, creator)
	pipe.HandleNotification(context.Background(), encodedPayload(t), func() {})

	assert.Empty(t, creator.created)
}

func TestHandleNotificationSkipsPastDatedResult(t *testing.T) {
	fetcher := &fakeFetcher{items: []gmail.MailItem{{ID: "m1", Subject: "old"}}}
	extractor := &fakeExtractor{results: map[string]extract.Result{
		"old": {HasEvent: true, Title: "old", Date: "2000-01-01", Time: "09:00"},
	}}
	creator := &fakeCreator{}

	pipe := newTestPipeline(fetcher, extractor, creator)
	pipe.HandleNotification(context.Background(), encodedPayload(t), func() {})

	assert.Empty(t, creator.created)
}

func TestProcessBacklogBumpsYearInsteadOfSkipping(t *testing.T) {
	// the backlog path predates the live path's past-date guard: it
	// moves a stale year forward rather than dropping the item
	fetcher := &fakeFetcher{items: []gmail.MailItem{{ID: "m1", Subject: "old"}}}
	extractor := &fakeExtractor{results: map[string]extract.Result{
		"old": {HasEvent: true, Title: "old", Date: "2000-03-01", Time: "09:00"},
	}}
	creator := &fakeCreator{}

	pipe := newTestPipeline(fetcher, extractor, creator)
	pipe.ProcessBacklog(context.Background())

	require.Len(t, creator.created, 1)
	assert.Equal(t, time.Now().Year(), creator.created[0].start.Year())
}

func TestProcessBacklogDefaultsMissingTimeToNow(t *testing.T) {
	start := time.Now().UTC().AddDate(0, 0, 7)
	fetcher := &fakeFetcher{items: []gmail.MailItem{{ID: "m1", Subject: "soon"}}}
	extractor := &fakeExtractor{results: map[string]extract.Result{
		"soon": {HasEvent: true, Title: "soon", Date: start.Format("2006-01-02")},
	}}
	creator := &fakeCreator{}

	pipe := newTestPipeline(fetcher, extractor, creator)
	pipe.ProcessBacklog(context.Background())

	require.Len(t, creator.created, 1)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 7),
		creator.created[0].start, 2*time.Minute,
		"missing time defaults to the current clock on the backlog path")
}
