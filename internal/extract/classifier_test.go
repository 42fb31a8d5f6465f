package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyUnavailableWhenNoClassifier(t *testing.T) {
	engine := NewEngine(nil, time.Second, time.UTC)
	assert.Nil(t, engine.Classify(context.Background(), "subject", "body"))
}

func TestClassifyPassesVerdictThrough(t *testing.T) {
	classifier := &fakeClassifier{verdict: &Verdict{HasEvent: true, Title: "subject"}}
	engine := NewEngine(classifier, time.Second, time.UTC)

	verdict := engine.Classify(context.Background(), "subject", "body")
	assert.NotNil(t, verdict)
	assert.True(t, verdict.HasEvent)
}

func TestClassifyTimeoutReadsAsUnavailable(t *testing.T) {
	classifier := &fakeClassifier{
		verdict: &Verdict{HasEvent: true},
		delay:   2 * time.Second,
	}
	engine := NewEngine(classifier, 50*time.Millisecond, time.UTC)

	started := time.Now()
	verdict := engine.Classify(context.Background(), "subject", "body")

	assert.Nil(t, verdict)
	assert.Less(t, time.Since(started), time.Second,
		"the caller's wait must end at the deadline, not the call's duration")
}

func TestClassifyErrorReadsAsUnavailable(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("model not loaded")}
	engine := NewEngine(classifier, time.Second, time.UTC)

	assert.Nil(t, engine.Classify(context.Background(), "subject", "body"))
}

func TestClassifyDeadlineCancelsUnderlyingCall(t *testing.T) {
	cancelled := make(chan struct{})
	classifier := classifierFunc(func(ctx context.Context, subject, body string) (*Verdict, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	})
	engine := NewEngine(classifier, 20*time.Millisecond, time.UTC)

	assert.Nil(t, engine.Classify(context.Background(), "subject", "body"))

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("deadline should propagate into the classifier call")
	}
}

// classifierFunc adapts a function to the Classifier interface
type classifierFunc func(ctx context.Context, subject, body string) (*Verdict, error)

func (f classifierFunc) Classify(ctx context.Context, subject, body string) (*Verdict, error) {
	return f(ctx, subject, body)
}
