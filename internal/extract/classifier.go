package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// Verdict is the classifier's answer for one mail item
type Verdict struct {
	HasEvent bool
	Title    string
}

// Classifier is an optional text-classification capability. Calls must
// honour the context: the engine enforces a hard deadline through it.
type Classifier interface {
	Classify(ctx context.Context, subject, body string) (*Verdict, error)
}

// Classify runs the classifier under the engine's deadline and never
// fails: errors and timeouts both read as "capability unavailable" and
// the engine proceeds regex-only. The deadline context is passed into
// the call itself so the underlying request is cancelled rather than
// merely abandoned.
func (e *Engine) Classify(ctx context.Context, subject, body string) *Verdict {
	if e.classifier == nil {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		verdict *Verdict
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		verdict, err := e.classifier.Classify(cctx, subject, body)
		done <- outcome{verdict, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			logrus.Warnf("Classifier error, proceeding without AI: %v", out.err)
			return nil
		}
		return out.verdict
	case <-cctx.Done():
		logrus.Warnf("Classifier exceeded %v budget, proceeding without AI", e.timeout)
		return nil
	}
}

// HTTPClassifier asks a local text-generation endpoint whether a mail
// describes a scheduled event. The prompt expects a YES/NO completion.
type HTTPClassifier struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewHTTPClassifier creates a classifier against a local endpoint.
// Returns nil when no endpoint is configured, which disables AI scoring.
func NewHTTPClassifier(endpoint, model string) *HTTPClassifier {
	if endpoint == "" {
		return nil
	}
	return &HTTPClassifier{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Classify posts the classification prompt and reads the YES/NO answer
func (c *HTTPClassifier) Classify(ctx context.Context, subject, body string) (*Verdict, error) {
	prompt := fmt.Sprintf(
		"Does this email describe a scheduled event, meeting, or appointment?\nSubject: %s\nBody: %s\n\nAnswer YES or NO:",
		subject, truncate(body, 200))

	payload, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return nil, fmt.Errorf("failed to encode classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var generated generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	hasEvent := strings.Contains(strings.ToLower(generated.Response), "yes")
	verdict := &Verdict{HasEvent: hasEvent}
	if hasEvent {
		verdict.Title = subject
	}
	return verdict, nil
}

var _ Classifier = (*HTTPClassifier)(nil)
