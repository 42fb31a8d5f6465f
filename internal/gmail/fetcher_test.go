package gmail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/dedup"
)

// fakeMailService fails a scripted number of list calls, then succeeds
type fakeMailService struct {
	listErrs  []error
	listCalls int
	refreshes int
	ids       []string
	items     map[string]MailItem
}

func (f *fakeMailService) ListUnread(ctx context.Context, limit int64) ([]string, error) {
	f.listCalls++
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.ids, nil
}

func (f *fakeMailService) GetMessage(ctx context.Context, id string) (MailItem, error) {
	item, ok := f.items[id]
	if !ok {
		return MailItem{}, errors.New("no such message")
	}
	return item, nil
}

func (f *fakeMailService) Refresh(ctx context.Context) error {
	f.refreshes++
	return nil
}

func TestFetchUnseenSucceedsOnThirdAttempt(t *testing.T) {
	service := &fakeMailService{
		listErrs: []error{errors.New("boom"), errors.New("boom again"), nil},
		ids:      []string{"m1"},
		items:    map[string]MailItem{"m1": {ID: "m1", Subject: "hi", Body: "there"}},
	}
	fetcher := NewFetcher(service, dedup.NewMemoryStore(), 3, time.Millisecond)

	items, err := fetcher.FetchUnseen(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "m1", items[0].ID)
	assert.Equal(t, 3, service.listCalls)
	assert.Equal(t, 0, service.refreshes)
}

func TestFetchUnseenExhaustsRetries(t *testing.T) {
	service := &fakeMailService{
		listErrs: []error{errors.New("a"), errors.New("b"), errors.New("c")},
	}
	fetcher := NewFetcher(service, dedup.NewMemoryStore(), 3, time.Millisecond)

	items, err := fetcher.FetchUnseen(context.Background(), 5)
	require.Error(t, err)
	assert.Nil(t, items)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 3, fetchErr.Attempts)
	assert.Equal(t, FailureTransient, fetchErr.Kind)
}

func TestFetchUnseenCredentialErrorRefreshesWithoutBackoff(t *testing.T) {
	service := &fakeMailService{
		listErrs: []error{
			errors.New("SSL handshake failed: WRONG_VERSION_NUMBER"),
			errors.New("oauth2: token expired"),
			nil,
		},
		ids:   []string{"m1"},
		items: map[string]MailItem{"m1": {ID: "m1"}},
	}
	// a delay this large would blow the test deadline if consumed
	fetcher := NewFetcher(service, dedup.NewMemoryStore(), 3, time.Minute)

	started := time.Now()
	items, err := fetcher.FetchUnseen(context.Background(), 5)

	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 2, service.refreshes)
	assert.Less(t, time.Since(started), time.Second)
}

func TestFetchUnseenNeverReturnsSameIdTwice(t *testing.T) {
	service := &fakeMailService{
		ids: []string{"m1", "m2"},
		items: map[string]MailItem{
			"m1": {ID: "m1"},
			"m2": {ID: "m2"},
		},
	}
	store := dedup.NewMemoryStore()
	fetcher := NewFetcher(service, store, 3, time.Millisecond)

	first, err := fetcher.FetchUnseen(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	// the service keeps listing the same unread ids
	second, err := fetcher.FetchUnseen(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, 2, store.Count())
}

func TestFetchUnseenContextCancelledDuringBackoff(t *testing.T) {
	service := &fakeMailService{
		listErrs: []error{errors.New("a"), errors.New("b"), errors.New("c")},
	}
	fetcher := NewFetcher(service, dedup.NewMemoryStore(), 3, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := fetcher.FetchUnseen(ctx, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsCredentialError(t *testing.T) {
	assert.True(t, isCredentialError(errors.New("SSL: WRONG_VERSION_NUMBER")))
	assert.True(t, isCredentialError(errors.New("tls: handshake failure")))
	assert.True(t, isCredentialError(errors.New("oauth2: cannot fetch token: invalid_grant")))
	assert.False(t, isCredentialError(errors.New("rateLimitExceeded")))
	assert.False(t, isCredentialError(nil))
}
