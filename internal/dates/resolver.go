// Package dates turns relative date phrases into calendar dates.
//
// Resolution is pure: callers always supply the reference instant and time
// zone, and the same inputs always produce the same answer. Bare weekday
// names are never resolved silently; they come back ambiguous with two
// candidates so the user can pick one.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"alcyxob/run-coach/internal/domain"

	"cloud.google.com/go/civil"
)

// Resolution is the outcome of resolving a single phrase.
type Resolution struct {
	Phrase string `json:"phrase"`
	// Byte span of Phrase inside the annotated message, -1 when resolved standalone.
	Start int `json:"start"`
	End   int `json:"end"`

	Date       civil.Date   `json:"date"` // Zero when Ambiguous
	Ambiguous  bool         `json:"ambiguous"`
	Candidates []civil.Date `json:"candidates,omitempty"`
}

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

const weekdayAlt = `monday|tuesday|wednesday|thursday|friday|saturday|sunday`

// Longer alternatives come first so "day after tomorrow" wins over "tomorrow".
var phrasePattern = `(?:day after tomorrow|day before yesterday|today|tonight|tomorrow|yesterday` +
	`|in\s+\d{1,3}\s+days?|\d{1,3}\s+days?\s+ago` +
	`|(?:(?:next|coming|last|this)\s+)?(?:` + weekdayAlt + `)` +
	`|\d{4}-\d{2}-\d{2})`

var (
	scanRe   = regexp.MustCompile(`(?i)\b` + phrasePattern + `\b`)
	inDaysRe = regexp.MustCompile(`^in\s+(\d{1,3})\s+days?$`)
	agoRe    = regexp.MustCompile(`^(\d{1,3})\s+days?\s+ago$`)
	isoRe    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// Today returns the calendar date of ref in loc. A nil loc means UTC.
func Today(ref time.Time, loc *time.Location) civil.Date {
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(ref.In(loc))
}

// Resolve resolves phrase relative to ref observed in loc.
// ok is false when the phrase is not recognised.
func Resolve(phrase string, ref time.Time, loc *time.Location) (Resolution, bool) {
	return ResolveOn(phrase, Today(ref, loc))
}

// ResolveOn resolves phrase relative to the calendar date today.
func ResolveOn(phrase string, today civil.Date) (Resolution, bool) {
	norm := strings.ToLower(spaceRe.ReplaceAllString(strings.TrimSpace(phrase), " "))
	res := Resolution{Phrase: phrase, Start: -1, End: -1}

	switch norm {
	case "today", "tonight":
		res.Date = today
		return res, true
	case "tomorrow":
		res.Date = today.AddDays(1)
		return res, true
	case "yesterday":
		res.Date = today.AddDays(-1)
		return res, true
	case "day after tomorrow":
		res.Date = today.AddDays(2)
		return res, true
	case "day before yesterday":
		res.Date = today.AddDays(-2)
		return res, true
	}

	if m := inDaysRe.FindStringSubmatch(norm); m != nil {
		n, _ := strconv.Atoi(m[1])
		res.Date = today.AddDays(n)
		return res, true
	}
	if m := agoRe.FindStringSubmatch(norm); m != nil {
		n, _ := strconv.Atoi(m[1])
		res.Date = today.AddDays(-n)
		return res, true
	}
	if isoRe.MatchString(norm) {
		d, err := civil.ParseDate(norm)
		if err != nil {
			return Resolution{}, false
		}
		res.Date = d
		return res, true
	}

	qualifier, name := "", norm
	if i := strings.IndexByte(norm, ' '); i > 0 {
		qualifier, name = norm[:i], norm[i+1:]
	}
	wd, ok := weekdays[name]
	if !ok {
		return Resolution{}, false
	}

	switch qualifier {
	case "next", "coming":
		res.Date = today.AddDays(daysUntil(weekdayOf(today), wd))
	case "last":
		res.Date = today.AddDays(-daysSince(weekdayOf(today), wd))
	case "this":
		res.Date = MondayOf(today).AddDays(mondayIndex(wd))
	case "":
		first := today.AddDays(daysUntil(weekdayOf(today), wd))
		res.Ambiguous = true
		res.Candidates = []civil.Date{first, first.AddDays(7)}
	default:
		return Resolution{}, false
	}
	return res, true
}

// Annotate finds every recognised phrase in message, in order of appearance.
// Unrecognised text is left alone.
func Annotate(message string, ref time.Time, loc *time.Location) []Resolution {
	return AnnotateOn(message, Today(ref, loc))
}

// AnnotateOn is Annotate relative to the calendar date today.
func AnnotateOn(message string, today civil.Date) []Resolution {
	var out []Resolution
	for _, span := range scanRe.FindAllStringIndex(message, -1) {
		res, ok := ResolveOn(message[span[0]:span[1]], today)
		if !ok {
			continue
		}
		res.Start, res.End = span[0], span[1]
		out = append(out, res)
	}
	return out
}

// FirstAmbiguous returns the first ambiguous resolution, if any.
func FirstAmbiguous(rs []Resolution) (Resolution, bool) {
	for _, r := range rs {
		if r.Ambiguous {
			return r, true
		}
	}
	return Resolution{}, false
}

// Substitute replaces the phrase of r inside message with the ISO form of d.
// When the recorded span does not match, the first case-insensitive
// occurrence of the phrase is replaced instead.
func Substitute(message string, r Resolution, d civil.Date) string {
	if r.Start >= 0 && r.End <= len(message) && r.Start < r.End &&
		strings.EqualFold(message[r.Start:r.End], r.Phrase) {
		return message[:r.Start] + d.String() + message[r.End:]
	}
	if r.Phrase == "" {
		return message
	}
	idx := strings.Index(strings.ToLower(message), strings.ToLower(r.Phrase))
	if idx < 0 {
		return message
	}
	return message[:idx] + d.String() + message[idx+len(r.Phrase):]
}

// Options turns the candidates of an ambiguous resolution into clarification options.
func Options(r Resolution) []domain.ClarificationOption {
	opts := make([]domain.ClarificationOption, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		opts = append(opts, domain.ClarificationOption{ISODate: c.String(), Label: Label(c)})
	}
	return opts
}

// Question phrases the clarification prompt for an ambiguous resolution.
func Question(r Resolution) string {
	return fmt.Sprintf("Which %q do you mean?", strings.TrimSpace(r.Phrase))
}

// Label renders d for humans, e.g. "Friday, June 14".
func Label(d civil.Date) string {
	return d.In(time.UTC).Format("Monday, January 2")
}

// MondayOf returns the Monday on or before d.
func MondayOf(d civil.Date) civil.Date {
	return d.AddDays(-mondayIndex(weekdayOf(d)))
}

// WeekdayIndex returns the weekday of d with Monday=0 ... Sunday=6.
func WeekdayIndex(d civil.Date) int {
	return mondayIndex(weekdayOf(d))
}

func weekdayOf(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// daysUntil counts days forward from "from" to the next "to", never 0.
func daysUntil(from, to time.Weekday) int {
	n := (int(to) - int(from) + 7) % 7
	if n == 0 {
		return 7
	}
	return n
}

// daysSince counts days back from "from" to the previous "to", never 0.
func daysSince(from, to time.Weekday) int {
	n := (int(from) - int(to) + 7) % 7
	if n == 0 {
		return 7
	}
	return n
}
