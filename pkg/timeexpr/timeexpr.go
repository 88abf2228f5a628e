package timeexpr

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Unit is a duration unit recognized in relative expressions
type Unit string

const (
	Second Unit = "second"
	Minute Unit = "minute"
	Hour   Unit = "hour"
	Day    Unit = "day"
	Week   Unit = "week"
)

// Seconds returns the unit multiplier in seconds
func (u Unit) Seconds() int64 {
	switch u {
	case Second:
		return 1
	case Minute:
		return 60
	case Hour:
		return 3600
	case Day:
		return 86400
	case Week:
		return 604800
	default:
		return 0
	}
}

// Match is a relative time expression found in free text
type Match struct {
	// Cleaned is the input with the expression removed and whitespace collapsed
	Cleaned string
	// Target is now plus the parsed duration
	Target time.Time
	Amount float64
	Unit   Unit
	// Span is the byte range of the expression in the input
	Span [2]int
}

// Duration returns the parsed offset from now
func (m Match) Duration() time.Duration {
	return time.Duration(int64(m.Amount*float64(m.Unit.Seconds()))) * time.Second
}

const (
	englishWordAmount = `(?:seventeen|thirteen|fourteen|fifteen|sixteen|eighteen|nineteen|eleven|twelve|` +
		`(?:twenty|thirty|forty|fifty|sixty|seventy|eighty|ninety)(?:[-\s](?:one|two|three|four|five|six|seven|eight|nine)\b)?|` +
		`one|two|three|four|five|six|seven|eight|nine|ten)`
	englishAmount = `(\d+(?:\.\d+)?|(?:a\s+)?couple(?:\s+of)?|` + englishWordAmount + `|half|quarter|an?)`
	englishUnit   = `(seconds?|secs?|s|minutes?|mins?|m|hours?|hrs?|h|days?|d|weeks?|wks?|w)`

	chineseAmount = `(\d+(?:\.\d+)?|[零一二两三四五六七八九十]+|半)`
	chineseUnit   = `(秒钟|秒|分钟|分|个小时|小时|个钟头|钟头|天|日|个星期|个礼拜|星期|礼拜|周)`
)

// pattern is one entry of the prioritized pattern table
type pattern struct {
	name    string
	re      *regexp.Regexp
	extract func(text string, loc []int) (float64, Unit, bool)
}

var (
	patterns = []pattern{
		{
			name:    "after-in",
			re:      regexp.MustCompile(`(?i)\b(?:after|in)\s+` + englishAmount + `\s*` + englishUnit + `\b`),
			extract: amountUnit(parseEnglishAmount, parseEnglishUnit),
		},
		{
			name:    "later",
			re:      regexp.MustCompile(`(?i)\b` + englishAmount + `\s*` + englishUnit + `\s+(?:later|from\s+now)\b`),
			extract: amountUnit(parseEnglishAmount, parseEnglishUnit),
		},
		{
			name: "fraction-hour",
			re:   regexp.MustCompile(`(?i)\bin\s+(?:(half)\s+an?\s+hour|(?:a\s+)?(quarter)\s+(?:of\s+)?(?:an\s+)?hour)\b`),
			extract: func(text string, loc []int) (float64, Unit, bool) {
				if loc[2] >= 0 {
					return 0.5, Hour, true
				}
				return 0.25, Hour, true
			},
		},
		{
			name:    "chinese",
			re:      regexp.MustCompile(chineseAmount + `\s*` + chineseUnit + `\s*(?:之后|以后|后)`),
			extract: amountUnit(parseChineseAmount, parseChineseUnit),
		},
	}

	compactPattern = pattern{
		name:    "compact",
		re:      regexp.MustCompile(`(?i)\b(?:in|after)(\d+(?:\.\d+)?)` + englishUnit + `\b`),
		extract: amountUnit(parseEnglishAmount, parseEnglishUnit),
	}
)

func amountUnit(amount func(string) (float64, bool), unit func(string) (Unit, bool)) func(string, []int) (float64, Unit, bool) {
	return func(text string, loc []int) (float64, Unit, bool) {
		a, ok := amount(text[loc[2]:loc[3]])
		if !ok {
			return 0, "", false
		}
		u, ok := unit(text[loc[4]:loc[5]])
		if !ok {
			return 0, "", false
		}
		return a, u, true
	}
}

// Parse finds the first relative time expression in text and resolves it
// against now. Patterns are tried in fixed priority order; within a pattern
// the leftmost match wins. The compact form ("in10min") is only tried when no
// other pattern matched.
func Parse(text string, now time.Time) (Match, bool) {
	for _, p := range patterns {
		if m, ok := try(p, text, now); ok {
			return m, true
		}
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "in") || strings.Contains(lower, "after") {
		if m, ok := try(compactPattern, text, now); ok {
			return m, true
		}
	}
	return Match{}, false
}

func try(p pattern, text string, now time.Time) (Match, bool) {
	for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
		amount, unit, ok := p.extract(text, loc)
		if !ok || amount <= 0 {
			continue
		}
		m := Match{
			Amount: amount,
			Unit:   unit,
			Span:   [2]int{loc[0], loc[1]},
		}
		m.Target = now.Add(m.Duration())
		m.Cleaned = collapse(text[:loc[0]] + " " + text[loc[1]:])
		return m, true
	}
	return Match{}, false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var englishNumbers = map[string]float64{
	"a": 1, "an": 1, "half": 0.5, "quarter": 0.25,
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

func parseEnglishAmount(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if strings.Contains(s, "couple") {
		return 2, true
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == ' ' || r == '\t' })
	total := 0.0
	for _, p := range parts {
		v, ok := englishNumbers[p]
		if !ok {
			return 0, false
		}
		total += v
	}
	return total, len(parts) > 0
}

func parseEnglishUnit(s string) (Unit, bool) {
	s = strings.ToLower(s)
	switch {
	case s == "s" || strings.HasPrefix(s, "sec"):
		return Second, true
	case s == "m" || strings.HasPrefix(s, "min"):
		return Minute, true
	case s == "h" || strings.HasPrefix(s, "hour") || strings.HasPrefix(s, "hr"):
		return Hour, true
	case s == "d" || strings.HasPrefix(s, "day"):
		return Day, true
	case s == "w" || strings.HasPrefix(s, "week") || strings.HasPrefix(s, "wk"):
		return Week, true
	}
	return "", false
}

var chineseDigits = map[rune]int{
	'零': 0, '一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

// parseChineseAmount handles Arabic digits, 半, single numerals and tens
// compounds such as 十三 (13), 二十 (20) and 二十五 (25).
func parseChineseAmount(s string) (float64, bool) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if s == "半" {
		return 0.5, true
	}

	runes := []rune(s)
	if idx := indexRune(runes, '十'); idx >= 0 {
		tens := 1
		if idx > 0 {
			if idx != 1 {
				return 0, false
			}
			d, ok := chineseDigits[runes[0]]
			if !ok {
				return 0, false
			}
			tens = d
		}
		ones := 0
		switch rest := runes[idx+1:]; len(rest) {
		case 0:
		case 1:
			d, ok := chineseDigits[rest[0]]
			if !ok {
				return 0, false
			}
			ones = d
		default:
			return 0, false
		}
		return float64(tens*10 + ones), true
	}

	// Positional digits, e.g. 二五 = 25
	total := 0
	for _, r := range runes {
		d, ok := chineseDigits[r]
		if !ok {
			return 0, false
		}
		total = total*10 + d
	}
	return float64(total), len(runes) > 0
}

func indexRune(runes []rune, target rune) int {
	for i, r := range runes {
		if r == target {
			return i
		}
	}
	return -1
}

func parseChineseUnit(s string) (Unit, bool) {
	switch s {
	case "秒", "秒钟":
		return Second, true
	case "分", "分钟":
		return Minute, true
	case "小时", "个小时", "钟头", "个钟头":
		return Hour, true
	case "天", "日":
		return Day, true
	case "周", "星期", "个星期", "礼拜", "个礼拜":
		return Week, true
	}
	return "", false
}
