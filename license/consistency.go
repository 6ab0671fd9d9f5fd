/*
consistency.go - Does a certificate belong to its request?

PURPOSE:
  Decides whether extracted certificate text plausibly belongs to a request:
  it must carry a date inside the requested interval and name the employee.
  Both predicates must hold.

DATE PREDICATE:
  The first substring shaped DD-MM-YYYY or DD/MM/YYYY is parsed and must lie
  in [start, end]. Later dates are ignored, so a document whose first date
  is the issue date can fail even when the event date is in range.

IDENTITY PREDICATE:
  Numeric terms (the national ID) are matched as whole tokens against the
  raw text. Alphabetic terms (first and last name) are normalized the same
  way as the text (case fold, diacritics and punctuation stripped, spaces
  collapsed) and matched as substrings. An empty term never matches.

EXEMPT CATEGORIES:
  Child's marriage, family assistance, bereavement A/B and relocation
  documents are issued for someone else or carry no relevant date.

SEE ALSO:
  - extractor.go: Produces the text checked here
*/
package license

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/warp/license-engine/generic"
)

var datePattern = regexp.MustCompile(`(\d{2})[-/](\d{2})[-/](\d{4})`)

// DefaultExemptCategories are never checked for consistency.
var DefaultExemptCategories = []Category{
	CategoryChildMarriage,
	CategoryFamilyAssistance,
	CategoryBereavementA,
	CategoryBereavementB,
	CategoryRelocation,
}

// Mismatch reasons reported by Check.
const (
	MismatchNoText      = "no_text"
	MismatchNoDate      = "no_date"
	MismatchInvalidDate = "invalid_date"
	MismatchDateOutside = "date_out_of_range"
	MismatchIdentity    = "identity_mismatch"
)

// Verdict is the outcome of Check. Reason is empty when Consistent.
type Verdict struct {
	Consistent bool
	Reason     string
	FoundDate  *generic.TimePoint
}

type ConsistencyChecker struct {
	exempt map[Category]bool
}

func NewConsistencyChecker(exempt ...Category) *ConsistencyChecker {
	if len(exempt) == 0 {
		exempt = DefaultExemptCategories
	}
	c := &ConsistencyChecker{exempt: make(map[Category]bool, len(exempt))}
	for _, cat := range exempt {
		c.exempt[cat] = true
	}
	return c
}

// Exempt reports whether documents of this category skip the check.
func (c *ConsistencyChecker) Exempt(cat Category) bool { return c.exempt[cat] }

// IsConsistent is Check reduced to a boolean.
func (c *ConsistencyChecker) IsConsistent(text string, emp Employee, interval generic.Period) bool {
	return c.Check(text, emp, interval).Consistent
}

// Check evaluates both predicates and reports the first that fails.
func (c *ConsistencyChecker) Check(text string, emp Employee, interval generic.Period) Verdict {
	if strings.TrimSpace(text) == "" {
		return Verdict{Reason: MismatchNoText}
	}

	found, reason := firstDate(text)
	if reason != "" {
		return Verdict{Reason: reason}
	}
	if !interval.Contains(found) {
		return Verdict{Reason: MismatchDateOutside, FoundDate: &found}
	}

	if !containsIdentity(text, []string{emp.FirstName, emp.LastName, emp.NationalID}) {
		return Verdict{Reason: MismatchIdentity, FoundDate: &found}
	}
	return Verdict{Consistent: true, FoundDate: &found}
}

func firstDate(text string) (generic.TimePoint, string) {
	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return generic.TimePoint{}, MismatchNoDate
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	// time.Date normalizes 31/02 into March; reject instead.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return generic.TimePoint{}, MismatchInvalidDate
	}
	return generic.DateOf(t), ""
}

func containsIdentity(raw string, terms []string) bool {
	normalized := Normalize(raw)
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			return false
		}
		if isDigits(term) {
			re := regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `\b`)
			if !re.MatchString(raw) {
				return false
			}
			continue
		}
		nt := Normalize(term)
		if nt == "" || !strings.Contains(normalized, nt) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// =============================================================================
// TEXT NORMALIZATION
// =============================================================================

// Normalize folds case, strips diacritics and punctuation, and collapses
// whitespace. "  Ana  PÉREZ, D.N.I." becomes "ana perez dni".
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	space := false
	for _, r := range strings.ToLower(stripped) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}
