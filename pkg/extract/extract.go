package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/cuemby/remindsync/pkg/timeexpr"
	"github.com/cuemby/remindsync/pkg/types"
)

// Source records which parser produced a draft
type Source string

const (
	SourceLocal Source = "local"
	SourceAI    Source = "ai"
)

// fallbackTitleLength is how much raw input becomes the title when
// nothing survives stop-word removal
const fallbackTitleLength = 50

// Date is a calendar date without a clock
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in its own location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Clock is a time of day
type Clock struct {
	Hour   int
	Minute int
}

// Draft is the structured result of parsing free text
type Draft struct {
	Title      string
	Date       *Date
	Time       *Clock
	Recurrence *types.RecurrenceRule
	At         time.Time
	Source     Source
}

var (
	clockPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2})\s*([ap])\.?m\.?(?:\s|$|[,.!?])`),
		regexp.MustCompile(`(?i)\b(\d{1,2})\s*([ap])\.?m\.?(?:\s|$|[,.!?])`),
		regexp.MustCompile(`\b((?:[01]?\d|2[0-3]):[0-5]\d)\b`),
	}

	clockLayouts = []string{"3:04 PM", "3:04PM", "3 PM", "3PM", "15:04"}

	weekdayPattern = regexp.MustCompile(`(?i)\b(sunday|monday|tuesday|wednesday|thursday|friday|saturday|sun|mon|tues|tue|wed|thurs|thur|thu|fri|sat)\b`)

	everyWeekdaysPattern = regexp.MustCompile(`(?i)\bevery\s+((?:sunday|monday|tuesday|wednesday|thursday|friday|saturday|sun|mon|tues|tue|wed|thurs|thur|thu|fri|sat)s?(?:\s*(?:,|&|\band\b)?\s*(?:sunday|monday|tuesday|wednesday|thursday|friday|saturday|sun|mon|tues|tue|wed|thurs|thur|thu|fri|sat)s?\b)*)`)

	everyIntervalPattern = regexp.MustCompile(`(?i)\bevery\s+(\d+|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|other)\s+(hours?|days?|weeks?|months?)\b`)

	dailyPattern   = regexp.MustCompile(`(?i)\b(?:every\s+day|daily|everyday)\b|每天|每日`)
	weeklyPattern  = regexp.MustCompile(`(?i)\b(?:every\s+week|weekly)\b|每周|每星期`)
	hourlyPattern  = regexp.MustCompile(`(?i)\b(?:every\s+hour|hourly)\b`)
	monthlyPattern = regexp.MustCompile(`(?i)\b(?:every\s+month|monthly)\b|每月`)

	tomorrowPattern = regexp.MustCompile(`(?i)\btomorrow\b|明天`)
	todayPattern    = regexp.MustCompile(`(?i)\b(?:today|tonight)\b|今天`)
	nextWeekPattern = regexp.MustCompile(`(?i)\bnext\s+week\b|下周`)

	numericTimeToken = regexp.MustCompile(`^\d{1,2}(?:[:.]\d{2})?(?:am|pm|a|p)?$`)
)

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// WeekdayNumber maps a weekday name or abbreviation to 1=Sunday..7=Saturday
func WeekdayNumber(name string) (int, bool) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, false
	}
	return types.WeekdayNumber(wd), true
}

var intervalWords = map[string]int{
	"other": 2, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

var stopWords = map[string]bool{}

func init() {
	for _, w := range []string{
		// connectives
		"remind", "me", "to", "at", "on", "in", "after", "by", "from", "until", "for",
		"the", "a", "an", "and", "or", "of", "please", "pls",
		// dates
		"today", "tonight", "tomorrow", "next", "this", "later", "now",
		// units
		"second", "seconds", "sec", "secs", "minute", "minutes", "min", "mins",
		"hour", "hours", "hr", "hrs", "day", "days", "week", "weeks", "month", "months",
		// recurrence
		"every", "each", "daily", "weekly", "hourly", "monthly", "everyday", "other",
		// clock
		"am", "pm", "a.m", "p.m", "oclock",
		"提醒我", "今天", "明天", "下周", "每天", "每日", "每周", "每月",
	} {
		stopWords[w] = true
	}
	for name := range weekdayNames {
		stopWords[name] = true
		stopWords[name+"s"] = true
	}
}

// ParseLocally extracts a draft from free text. It never fails: text with no
// temporal content yields a draft due one hour from now.
func ParseLocally(text string, now time.Time) Draft {
	if m, ok := timeexpr.Parse(text, now); ok {
		inner := ParseLocally(m.Cleaned, now)
		date := DateOf(m.Target)
		clock := Clock{Hour: m.Target.Hour(), Minute: m.Target.Minute()}
		d := Draft{
			Title:      inner.Title,
			Date:       &date,
			Time:       &clock,
			Recurrence: inner.Recurrence,
			At:         m.Target,
			Source:     SourceLocal,
		}
		if d.Title == "" {
			d.Title = fallbackTitle(text)
		}
		return d
	}

	d := Draft{
		Time:       extractClock(text),
		Date:       extractDate(text, now),
		Recurrence: extractRecurrence(text),
		Title:      extractTitle(text),
		Source:     SourceLocal,
	}
	if d.Title == "" {
		d.Title = fallbackTitle(text)
	}
	d.At = d.Compose(now)
	return d
}

// Compose resolves the draft's date and time into one instant in now's location.
func (d Draft) Compose(now time.Time) time.Time {
	loc := now.Location()
	switch {
	case d.Date == nil && d.Time == nil:
		return now.Add(time.Hour).Truncate(time.Minute)
	case d.Date == nil:
		at := time.Date(now.Year(), now.Month(), now.Day(), d.Time.Hour, d.Time.Minute, 0, 0, loc)
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		return at
	case d.Time == nil:
		return time.Date(d.Date.Year, d.Date.Month, d.Date.Day, 9, 0, 0, 0, loc)
	default:
		return time.Date(d.Date.Year, d.Date.Month, d.Date.Day, d.Time.Hour, d.Time.Minute, 0, 0, loc)
	}
}

// ToReminder turns a draft into a new active reminder
func ToReminder(d Draft, raw string, now time.Time) *types.Reminder {
	at := d.At
	if at.IsZero() {
		at = d.Compose(now)
	}
	title := d.Title
	if title == "" {
		title = fallbackTitle(raw)
	}
	return types.NewReminder(title, raw, at, d.Recurrence, now)
}

func extractClock(text string) *Clock {
	for _, re := range clockPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := m[1]
		if len(m) > 2 {
			candidate += " " + strings.ToUpper(m[2]) + "M"
		}
		if c, ok := parseClock(candidate); ok {
			return c
		}
	}
	return nil
}

func parseClock(s string) (*Clock, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return &Clock{Hour: t.Hour(), Minute: t.Minute()}, true
		}
	}
	return nil, false
}

func extractDate(text string, now time.Time) *Date {
	var day time.Time
	switch {
	case tomorrowPattern.MatchString(text):
		day = now.AddDate(0, 0, 1)
	case todayPattern.MatchString(text):
		day = now
	case nextWeekPattern.MatchString(text):
		day = now.AddDate(0, 0, 7)
	default:
		m := weekdayPattern.FindStringSubmatch(text)
		if m == nil {
			return nil
		}
		target := weekdayNames[strings.ToLower(m[1])]
		ahead := int(target) - int(now.Weekday())
		if ahead <= 0 {
			ahead += 7
		}
		day = now.AddDate(0, 0, ahead)
	}
	d := DateOf(day)
	return &d
}

func extractRecurrence(text string) *types.RecurrenceRule {
	switch {
	case dailyPattern.MatchString(text):
		return &types.RecurrenceRule{Type: types.RecurrenceDaily, Interval: 1, Unit: types.UnitDay}
	case weeklyPattern.MatchString(text):
		return &types.RecurrenceRule{Type: types.RecurrenceWeekly, Interval: 1, Unit: types.UnitWeek}
	}

	if m := everyWeekdaysPattern.FindStringSubmatch(text); m != nil {
		days := weekdaysIn(m[1])
		if len(days) > 0 {
			return &types.RecurrenceRule{Type: types.RecurrenceWeekly, Interval: 1, Unit: types.UnitWeek, DaysOfWeek: days}
		}
	}

	if m := everyIntervalPattern.FindStringSubmatch(text); m != nil {
		n, ok := intervalWords[strings.ToLower(m[1])]
		if !ok {
			n, _ = strconv.Atoi(m[1])
		}
		if n < 1 {
			n = 1
		}
		return &types.RecurrenceRule{Type: types.RecurrenceCustom, Interval: n, Unit: intervalUnit(m[2])}
	}

	switch {
	case hourlyPattern.MatchString(text):
		return &types.RecurrenceRule{Type: types.RecurrenceCustom, Interval: 1, Unit: types.UnitHour}
	case monthlyPattern.MatchString(text):
		return &types.RecurrenceRule{Type: types.RecurrenceCustom, Interval: 1, Unit: types.UnitMonth}
	}
	return nil
}

func weekdaysIn(s string) []int {
	seen := make(map[int]bool)
	var days []int
	for _, m := range weekdayPattern.FindAllStringSubmatch(strings.ReplaceAll(strings.ToLower(s), "days", "day"), -1) {
		wd, ok := weekdayNames[m[1]]
		if !ok {
			continue
		}
		n := types.WeekdayNumber(wd)
		if !seen[n] {
			seen[n] = true
			days = append(days, n)
		}
	}
	sort.Ints(days)
	return days
}

func intervalUnit(s string) types.RecurrenceUnit {
	switch strings.TrimSuffix(strings.ToLower(s), "s") {
	case "hour":
		return types.UnitHour
	case "week":
		return types.UnitWeek
	case "month":
		return types.UnitMonth
	default:
		return types.UnitDay
	}
}

func extractTitle(text string) string {
	var kept []string
	for _, tok := range strings.Fields(text) {
		clean := strings.TrimFunc(tok, isPunct)
		clean = strings.ReplaceAll(clean, "'", "")
		norm := strings.ToLower(clean)
		if norm == "" || stopWords[norm] || numericTimeToken.MatchString(norm) {
			continue
		}
		kept = append(kept, capitalize(norm))
	}
	return types.TruncateTitle(strings.Join(kept, " "))
}

func isPunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func fallbackTitle(raw string) string {
	raw = strings.TrimSpace(raw)
	if utf8.RuneCountInString(raw) > fallbackTitleLength {
		raw = strings.TrimSpace(string([]rune(raw)[:fallbackTitleLength]))
	}
	return types.TruncateTitle(capitalize(raw))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
