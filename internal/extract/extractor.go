package extract

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/sirupsen/logrus"
)

// Result is the engine's verdict on one mail item. Date and Time are
// formatted as "2006-01-02" and "15:04"; both are empty on rejection.
type Result struct {
	HasEvent        bool
	Title           string
	Date            string
	Time            string
	DurationMinutes int
	Confidence      int
}

// EventDuration is the fixed length of every created event
const EventDuration = 60 * time.Minute

const monthPattern = `(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)`

// Date recognizers in priority order: day-of-month, day-month,
// month-day, then relative. The first pattern that matches anywhere in
// subject+body wins and later patterns are not tried.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(\d{1,2}(?:st|nd|rd|th)?\s+of\s+` + monthPattern + `(?:\s+\d{4})?)\b`),
	regexp.MustCompile(`(?i)\b(\d{1,2}(?:st|nd|rd|th)?\s+` + monthPattern + `(?:\s+\d{4})?)\b`),
	regexp.MustCompile(`(?i)\b(` + monthPattern + `\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?)\b`),
	regexp.MustCompile(`(?i)\b(tomorrow|today)\b`),
}

// Time recognizers in priority order
var timePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:at|@)\s+(\d{1,2}(?::\d{2})?\s*(?:AM|PM))`),
	regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2}\s*(?:AM|PM))\b`),
	regexp.MustCompile(`(?i)\b(\d{1,2}\s*(?:AM|PM))\b`),
}

var dayFirstToken = regexp.MustCompile(`(?i)^(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthPattern + `)(?:,?\s+(\d{4}))?$`)
var monthFirstToken = regexp.MustCompile(`(?i)^(` + monthPattern + `)\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?$`)

// eventKeywords contribute +1 each when found in the subject or the
// first 300 characters of the body
var eventKeywords = []string{
	"meeting", "interview", "call", "tutorial", "class", "session",
	"appointment", "scheduled", "schedule", "felicitation", "event",
	"conference", "webinar", "workshop", "seminar", "exam", "test",
	"deadline", "night", "party", "celebration", "ceremony", "prep",
	"training", "orientation", "hackathon", "competition",
}

// Engine combines regex date/time recognition, keyword scoring and the
// optional bounded-time classifier into an accept/reject decision.
type Engine struct {
	classifier Classifier
	timeout    time.Duration
	loc        *time.Location

	// now is swapped in tests for deterministic today/tomorrow dates
	now func() time.Time
}

// NewEngine creates an extraction engine. A nil classifier means the
// engine runs regex-only.
func NewEngine(classifier Classifier, timeout time.Duration, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		classifier: classifier,
		timeout:    timeout,
		loc:        loc,
		now:        func() time.Time { return time.Now().In(loc) },
	}
}

// Extract decides whether a mail describes a scheduled event.
// Acceptance requires a recognized date that is not in the past and a
// confidence score of at least 2.
func (e *Engine) Extract(ctx context.Context, subject, body string) Result {
	combined := subject + "\n" + body

	dateToken := firstMatch(datePatterns, combined)
	if dateToken == "" {
		logrus.Debugf("No date found in %q", truncate(subject, 50))
	}
	timeToken := firstMatch(timePatterns, combined)

	var start time.Time
	dateParsed := false
	if dateToken != "" {
		parsed, err := e.compose(dateToken, timeToken)
		if err != nil {
			logrus.Warnf("Datetime parse failed for %q: %v", dateToken, err)
		} else {
			start = parsed
			dateParsed = true
		}
	}

	verdict := e.Classify(ctx, subject, body)

	score := 0
	if verdict != nil && verdict.HasEvent {
		score += 2
	}
	if dateParsed {
		score += 2
	}
	subjectLower := strings.ToLower(subject)
	bodyLower := strings.ToLower(truncate(body, 300))
	if containsAny(subjectLower, eventKeywords) {
		score++
	}
	if containsAny(bodyLower, eventKeywords) {
		score++
	}

	logrus.WithFields(logrus.Fields{
		"subject":    truncate(subject, 50),
		"confidence": score,
	}).Debug("Extraction scored")

	if score < 2 || !dateParsed {
		return Result{HasEvent: false, Confidence: score}
	}

	// date-only comparison: an event earlier today is still accepted
	if startDate(start) < startDate(e.now()) {
		logrus.Infof("Skipping past event (%s)", start.Format("2006-01-02"))
		return Result{HasEvent: false, Confidence: score}
	}

	return Result{
		HasEvent:        true,
		Title:           subject,
		Date:            start.Format("2006-01-02"),
		Time:            start.Format("15:04"),
		DurationMinutes: int(EventDuration.Minutes()),
		Confidence:      score,
	}
}

// compose resolves a date token plus optional time token into a concrete
// datetime. Relative tokens resolve against the current date; absolute
// tokens are normalized and parsed fuzzily with today 09:00 supplying
// the missing components. Years more than one away from the current year
// are parser mis-inferences and get clamped.
func (e *Engine) compose(dateToken, timeToken string) (time.Time, error) {
	now := e.now()
	hour, minute := 9, 0
	timeFound := false
	if h, m, ok := parseClockTime(timeToken); ok {
		hour, minute = h, m
		timeFound = true
	}

	switch strings.ToLower(dateToken) {
	case "today":
		return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, e.loc), nil
	case "tomorrow":
		tomorrow := now.AddDate(0, 0, 1)
		return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), hour, minute, 0, 0, e.loc), nil
	}

	composed, err := normalizeDateToken(dateToken, now.Year())
	if err != nil {
		return time.Time{}, err
	}

	parsed, err := dateparse.ParseIn(composed, e.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %q: %w", composed, err)
	}

	year := parsed.Year()
	if year < now.Year()-1 || year > now.Year()+1 {
		year = now.Year()
	}

	if !timeFound {
		logrus.Debug("No time specified, using default 09:00")
	}
	return time.Date(year, parsed.Month(), parsed.Day(), hour, minute, 0, 0, e.loc), nil
}

// normalizeDateToken rewrites a matched date token into "Month D, YYYY",
// stripping ordinal suffixes and filling the current year when absent
func normalizeDateToken(token string, currentYear int) (string, error) {
	var month, day, year string
	if m := dayFirstToken.FindStringSubmatch(token); m != nil {
		day, month, year = m[1], m[2], m[3]
	} else if m := monthFirstToken.FindStringSubmatch(token); m != nil {
		month, day, year = m[1], m[2], m[3]
	} else {
		return "", fmt.Errorf("unrecognized date token %q", token)
	}

	if year == "" {
		year = strconv.Itoa(currentYear)
	}
	return fmt.Sprintf("%s %s, %s", month, day, year), nil
}

// parseClockTime parses a matched time token like "3pm" or "3:15 PM"
func parseClockTime(token string) (hour, minute int, ok bool) {
	if token == "" {
		return 0, 0, false
	}
	compact := strings.ToUpper(strings.ReplaceAll(token, " ", ""))
	for _, layout := range []string{"3:04PM", "3PM"} {
		if t, err := time.Parse(layout, compact); err == nil {
			return t.Hour(), t.Minute(), true
		}
	}
	return 0, 0, false
}

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, pattern := range patterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func startDate(t time.Time) string {
	return t.Format("2006-01-02")
}
