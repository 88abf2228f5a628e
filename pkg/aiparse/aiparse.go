// Package aiparse asks a chat-completion endpoint to structure free-text
// reminder input. Every response is decoded strictly; anything that does not
// decode cleanly is reported as Malformed or Unavailable so the caller can fall
// back to the local extractor.
package aiparse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-deepseek/deepseek"
	"github.com/go-deepseek/deepseek/request"

	"github.com/cuemby/remindsync/pkg/extract"
	"github.com/cuemby/remindsync/pkg/types"
)

// Kind tags the outcome of an AI parse
type Kind int

const (
	// KindOK means the response decoded into a valid draft
	KindOK Kind = iota
	// KindMalformed means the endpoint answered but the body was unusable
	KindMalformed
	// KindUnavailable means the endpoint could not be reached in time
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindMalformed:
		return "malformed"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of Parser.Parse
type Result struct {
	Kind  Kind
	Draft extract.Draft
	Err   error
}

// Completer sends one prompt and returns the raw completion text
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Parser turns free text into drafts through a Completer
type Parser struct {
	completer Completer
}

// NewParser creates a parser backed by the given completer
func NewParser(c Completer) *Parser {
	return &Parser{completer: c}
}

// Parse asks the endpoint to structure text relative to now
func (p *Parser) Parse(ctx context.Context, text string, now time.Time) Result {
	body, err := p.completer.Complete(ctx, BuildPrompt(text, now))
	if err != nil {
		return Result{Kind: KindUnavailable, Err: err}
	}

	draft, err := Decode(body, now)
	if err != nil {
		return Result{Kind: KindMalformed, Err: err}
	}
	return Result{Kind: KindOK, Draft: draft}
}

// BuildPrompt renders the single instruction prompt sent to the endpoint
func BuildPrompt(text string, now time.Time) string {
	var b strings.Builder
	b.WriteString("You convert reminder requests into JSON.\n")
	fmt.Fprintf(&b, "Today is %s (%s). The current time is %s.\n",
		now.Format("2006-01-02"), now.Weekday(), now.Format("15:04"))
	b.WriteString("Reply with exactly one JSON object and nothing else, using these keys:\n")
	b.WriteString(`{"title": string, "date": "YYYY-MM-DD"|null, "time": "HH:mm"|null, ` +
		`"recurrence_type": "none"|"daily"|"weekly"|"custom", "recurrence_interval": integer, ` +
		`"recurrence_unit": "hour"|"day"|"week"|"month", "days_of_week": [weekday names]|null}` + "\n")
	b.WriteString("Resolve relative expressions against the current time. Use null for a date or time the request does not give. ")
	b.WriteString("The title must not contain the date or time.\n")
	fmt.Fprintf(&b, "Request: %s\n", text)
	return b.String()
}

// wireResult is the JSON object the endpoint is asked to return
type wireResult struct {
	Title              *string `json:"title"`
	Date               *string `json:"date"`
	Time               *string `json:"time"`
	RecurrenceType     *string `json:"recurrence_type"`
	RecurrenceInterval *int    `json:"recurrence_interval"`
	RecurrenceUnit     *string `json:"recurrence_unit"`
	DaysOfWeek         []weekday `json:"days_of_week"`
}

// weekday accepts a day number (1=Sunday..7=Saturday) or a weekday name
type weekday int

func (w *weekday) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*w = weekday(n)
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("days_of_week entry %s is neither a number nor a name", data)
	}
	d, ok := extract.WeekdayNumber(name)
	if !ok {
		return fmt.Errorf("unknown weekday %q", name)
	}
	*w = weekday(d)
	return nil
}

// ErrMalformed is wrapped by every Decode failure
var ErrMalformed = errors.New("malformed AI response")

// Decode strictly converts a completion body into a draft in now's location
func Decode(body string, now time.Time) (extract.Draft, error) {
	body = stripFences(body)

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()

	var w wireResult
	if err := dec.Decode(&w); err != nil {
		return extract.Draft{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if dec.More() {
		return extract.Draft{}, fmt.Errorf("%w: trailing data", ErrMalformed)
	}

	if w.Title == nil || strings.TrimSpace(*w.Title) == "" {
		return extract.Draft{}, fmt.Errorf("%w: missing title", ErrMalformed)
	}
	if w.RecurrenceType == nil {
		return extract.Draft{}, fmt.Errorf("%w: missing recurrence_type", ErrMalformed)
	}

	d := extract.Draft{
		Title:  types.TruncateTitle(strings.TrimSpace(*w.Title)),
		Source: extract.SourceAI,
	}
	if w.Date != nil {
		day, err := time.ParseInLocation("2006-01-02", *w.Date, now.Location())
		if err != nil {
			return extract.Draft{}, fmt.Errorf("%w: date: %v", ErrMalformed, err)
		}
		date := extract.DateOf(day)
		d.Date = &date
	}
	if w.Time != nil {
		clock, err := time.Parse("15:04", *w.Time)
		if err != nil {
			return extract.Draft{}, fmt.Errorf("%w: time: %v", ErrMalformed, err)
		}
		d.Time = &extract.Clock{Hour: clock.Hour(), Minute: clock.Minute()}
	}

	rule, err := decodeRule(w)
	if err != nil {
		return extract.Draft{}, err
	}
	d.Recurrence = rule
	d.At = d.Compose(now)
	return d, nil
}

func decodeRule(w wireResult) (*types.RecurrenceRule, error) {
	rt := types.RecurrenceType(strings.ToLower(*w.RecurrenceType))
	switch rt {
	case types.RecurrenceNone, "":
		return nil, nil
	case types.RecurrenceDaily, types.RecurrenceWeekly, types.RecurrenceCustom:
	default:
		return nil, fmt.Errorf("%w: unknown recurrence_type %q", ErrMalformed, *w.RecurrenceType)
	}

	rule := &types.RecurrenceRule{Type: rt, Interval: 1}
	if w.RecurrenceInterval != nil {
		rule.Interval = *w.RecurrenceInterval
	}
	rule.Interval = rule.EffectiveInterval()

	switch rt {
	case types.RecurrenceDaily:
		rule.Unit = types.UnitDay
	case types.RecurrenceWeekly:
		rule.Unit = types.UnitWeek
	case types.RecurrenceCustom:
		if w.RecurrenceUnit == nil {
			return nil, fmt.Errorf("%w: custom recurrence without recurrence_unit", ErrMalformed)
		}
		switch u := types.RecurrenceUnit(strings.ToLower(*w.RecurrenceUnit)); u {
		case types.UnitHour, types.UnitDay, types.UnitWeek, types.UnitMonth:
			rule.Unit = u
		default:
			return nil, fmt.Errorf("%w: unknown recurrence_unit %q", ErrMalformed, *w.RecurrenceUnit)
		}
	}

	for _, d := range w.DaysOfWeek {
		if d < 1 || d > 7 {
			return nil, fmt.Errorf("%w: day of week %d out of range", ErrMalformed, d)
		}
		rule.DaysOfWeek = append(rule.DaysOfWeek, int(d))
	}
	return rule, nil
}

// stripFences removes a surrounding markdown code fence, if any
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// DeepSeek is a Completer backed by the DeepSeek chat completions API
type DeepSeek struct {
	client deepseek.Client
	model  string
}

// NewDeepSeek creates a DeepSeek completer
func NewDeepSeek(apiKey, model string) (*DeepSeek, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := deepseek.NewClient(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create DeepSeek client: %w", err)
	}
	if model == "" {
		model = "deepseek-chat"
	}

	return &DeepSeek{client: client, model: model}, nil
}

// Complete implements Completer
func (d *DeepSeek) Complete(ctx context.Context, prompt string) (string, error) {
	req := &request.ChatCompletionsRequest{
		Model: d.model,
		Messages: []*request.Message{
			{Role: "user", Content: prompt},
		},
		Stream: false,
	}

	resp, err := d.client.CallChatCompletionsChat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("DeepSeek API request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("DeepSeek API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
