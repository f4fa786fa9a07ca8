package utils // package utils provides helper functions for durations, tokens and hashing

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultVisitDuration is returned whenever the operator-entered duration
// text matches no recognized unit.  The permissive fallback is a deliberate
// tradeoff favoring availability over strictness: a homeowner typing
// "soon" or "a while" still gets a usable authorization instead of an
// error, at the cost of silently masking typos.  Anything stricter belongs
// in the UI layer, which can validate before calling the issuer.
const DefaultVisitDuration = 30 * time.Minute

// numericToken matches the first integer or decimal token in a string.
var numericToken = regexp.MustCompile(`\d+(\.\d+)?`)

// colonForm matches an H:MM style duration such as "1:30" or "0:45".
var colonForm = regexp.MustCompile(`(\d+):(\d{1,2})`)

// ParseVisitDuration converts human-entered duration text ("1 hour",
// "30 mins", "1:30") into a time.Duration.  It never fails: input that
// matches no recognized unit yields DefaultVisitDuration.
//
// Recognized forms, case-insensitive:
//   - H:MM colon form ("1:30" -> 1h30m)
//   - a numeric token followed anywhere by an hour unit (hour, hr, h)
//   - a numeric token followed anywhere by a minute unit (min, m)
//
// Numeric extraction takes the first integer or decimal token; "1.5 hours"
// is ninety minutes.  A bare number with no unit falls back to the default.
func ParseVisitDuration(input string) time.Duration {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return DefaultVisitDuration
	}

	// Colon form takes precedence: "1:30" means one hour thirty minutes.
	if m := colonForm.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		return time.Duration(hours)*time.Hour + time.Duration(mins)*time.Minute
	}

	tok := numericToken.FindString(s)
	if tok == "" {
		return DefaultVisitDuration
	}
	n, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return DefaultVisitDuration
	}

	// Unit detection by substring.  "hour", "hr" and "h" all contain "h";
	// "min", "mins" and "m" all contain "m".  Hours are checked first so
	// that "1 hour" is not misread via its trailing "r".
	switch {
	case strings.Contains(s, "h"):
		return time.Duration(n * float64(time.Hour))
	case strings.Contains(s, "m"):
		return time.Duration(n * float64(time.Minute))
	default:
		return DefaultVisitDuration
	}
}

// EndOfDay returns 23:59:59 of the same calendar day as now, in now's
// location.  Tokens are unusable after this instant regardless of any
// other state.
func EndOfDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, now.Location())
}
