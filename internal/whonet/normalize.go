package whonet

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Column roles the normalizer acts on. Columns missing from a file are
// silently skipped; a partial export still normalizes what it has.
const (
	colSex       = "SEX"
	colSpecNum   = "SPEC_NUM"
	colSpecDate  = "SPEC_DATE"
	colDateAdmis = "DATE_ADMIS"
	colOrganism  = "ORGANISM"
)

// Input date layouts tried in order. The primary layout is the lab
// system's export format; the secondary shows up in older exports.
var inputDateLayouts = []string{
	"2/1/2006 3:04:05 PM",
	"02/01/2006 15:04",
}

// OutputDateLayout is the canonical date form written back to the grid.
const OutputDateLayout = "2006-01-02"

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalizer performs in-place cleanup of a Grid: sex code expansion,
// specimen-number uniqueification, date reformatting and organism text
// cleanup. One Normalizer covers one import run; the specimen seen-set
// spans every row of the run.
type Normalizer struct {
	seenSpecimens map[string]struct{}
	now           func() time.Time
	log           *slog.Logger
}

// NewNormalizer returns a Normalizer for a single run.
func NewNormalizer(log *slog.Logger) *Normalizer {
	return &Normalizer{
		seenSpecimens: make(map[string]struct{}),
		now:           time.Now,
		log:           log,
	}
}

// Normalize mutates the grid in place. A malformed row degrades that
// row's normalization only; Normalize never fails the file.
func (n *Normalizer) Normalize(g *Grid) {
	sexIdx := g.ColumnIndex(colSex)
	specNumIdx := g.ColumnIndex(colSpecNum)
	specDateIdx := g.ColumnIndex(colSpecDate)
	admisIdx := g.ColumnIndex(colDateAdmis)
	organismIdx := g.ColumnIndex(colOrganism)

	currentYear := strconv.Itoa(n.now().Year())

	for row := 0; row < g.Rows(); row++ {
		if g.RowEmpty(row) {
			continue
		}

		if sexIdx >= 0 {
			g.SetCell(row, sexIdx, NormalizeSex(g.Cell(row, sexIdx)))
		}

		if specNumIdx >= 0 {
			g.SetCell(row, specNumIdx, n.uniqueSpecimenNumber(g.Cell(row, specNumIdx), currentYear))
		}

		for _, dateIdx := range []int{specDateIdx, admisIdx} {
			if dateIdx < 0 {
				continue
			}
			raw := g.Cell(row, dateIdx)
			if raw == "" {
				continue
			}
			formatted, ok := ReformatDate(raw)
			if !ok {
				n.log.Warn("unparsable date left as-is", "row", row, "value", raw)
				continue
			}
			g.SetCell(row, dateIdx, formatted)
		}

		if organismIdx >= 0 {
			g.SetCell(row, organismIdx, NormalizeOrganism(g.Cell(row, organismIdx)))
		}
	}
}

// NormalizeSex expands single-letter sex codes. Anything that is not
// m/f (any case) becomes "Other", so a normalized cell is always one of
// Male, Female, Other.
func NormalizeSex(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "m":
		return "Male"
	case "f":
		return "Female"
	default:
		return "Other"
	}
}

// uniqueSpecimenNumber enforces run-level uniqueness of specimen
// numbers. The first occurrence of a raw number gets the current year
// appended and the raw value recorded as seen; later occurrences of
// the same raw number are replaced with a freshly generated opaque
// code, so a repeat keeps no link back to the original number. Blank
// numbers always get a fresh code with the year appended.
func (n *Normalizer) uniqueSpecimenNumber(raw, currentYear string) string {
	if raw == "" {
		return uuid.NewString() + currentYear
	}
	if _, dup := n.seenSpecimens[raw]; dup {
		return uuid.NewString()
	}
	n.seenSpecimens[raw] = struct{}{}
	return raw + currentYear
}

// ReformatDate parses value against the known input layouts and
// returns it in YYYY-MM-DD form. ok is false when no layout matches;
// callers keep the original value in that case.
func ReformatDate(value string) (string, bool) {
	v := strings.TrimSpace(value)
	for _, layout := range inputDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(OutputDateLayout), true
		}
	}
	return value, false
}

// NormalizeOrganism collapses whitespace and strips diacritics so
// organism names compare cleanly against catalog option labels.
func NormalizeOrganism(value string) string {
	v := whitespaceRe.ReplaceAllString(strings.TrimSpace(value), " ")
	if v == "" {
		return v
	}

	decomposed := norm.NFD.String(v)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
