package citations

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Letter identifier shapes seen across five decades of scans. The
// prefix letter distinguishes advice letters (A), informal assistance
// (I), and opinions (M).
var (
	reVariantStd    = regexp.MustCompile(`^([AIM])-(\d{2})-(\d{3,4})$`)
	reVariantBare   = regexp.MustCompile(`^(\d{2})-(\d{3,4})$`)
	reVariantFused  = regexp.MustCompile(`^(\d{2})(\d{3,4})$`)
	reVariantInfix  = regexp.MustCompile(`^(\d{2})([AIM])(\d{3,4})$`)
	reVariantSuffix = regexp.MustCompile(`^(\d{2})-(\d{3,4})-`)

	reFileNo = regexp.MustCompile(`(?i)(?:Our\s+)?File\s+No\.?\s*([AIM]?)\s*-?\s*(\d{2})\s*-?\s*(\d{3,4})`)
	reIDYear = regexp.MustCompile(`(\d{2})-(\d{3,4})`)
)

const prefixes = "AIM"

// recoverScanLimit bounds how far into the text the identifier
// recovery regex looks; File No. headers sit on the first page.
const recoverScanLimit = 3000

// SelfIDVariants expands a letter identifier into every form it might
// appear under in its own text, so self-references are not recorded as
// prior-decision citations. The identifier itself is always included.
func SelfIDVariants(letterID string) map[string]struct{} {
	id := strings.ToUpper(strings.TrimSpace(letterID))
	variants := map[string]struct{}{id: {}}
	add := func(v string) { variants[v] = struct{}{} }

	if m := reVariantStd.FindStringSubmatch(id); m != nil {
		prefix, yy, nnn := m[1], m[2], m[3]
		add(yy + "-" + nnn)
		add(yy + nnn)
		add(prefix + yy + nnn)
		return variants
	}
	if m := reVariantBare.FindStringSubmatch(id); m != nil {
		yy, nnn := m[1], m[2]
		add(yy + nnn)
		for _, p := range prefixes {
			add(string(p) + "-" + yy + "-" + nnn)
		}
		return variants
	}
	if m := reVariantFused.FindStringSubmatch(id); m != nil {
		yy, nnn := m[1], m[2]
		add(yy + "-" + nnn)
		for _, p := range prefixes {
			add(string(p) + "-" + yy + "-" + nnn)
		}
		return variants
	}
	if m := reVariantInfix.FindStringSubmatch(id); m != nil {
		yy, prefix, nnn := m[1], m[2], m[3]
		add(prefix + "-" + yy + "-" + nnn)
		add(yy + "-" + nnn)
		add(yy + nnn)
		return variants
	}
	if m := reVariantSuffix.FindStringSubmatch(id); m != nil {
		yy, nnn := m[1], m[2]
		add(yy + "-" + nnn)
		for _, p := range prefixes {
			add(string(p) + "-" + yy + "-" + nnn)
		}
	}
	return variants
}

// FilterSelfCitations drops prior-decision entries that are really the
// document referring to itself under any identifier variant.
func FilterSelfCitations(priors []string, letterID string) []string {
	variants := SelfIDVariants(letterID)
	out := make([]string, 0, len(priors))
	for _, p := range priors {
		if _, self := variants[strings.ToUpper(p)]; self {
			continue
		}
		out = append(out, p)
	}
	return out
}

// FilterCoRecipients drops same-year identifiers whose sequence number
// sits within window of the document's own. Letters sent to multiple
// recipients on the same matter get consecutive file numbers, and each
// copy lists its siblings in the header rather than citing them.
func FilterCoRecipients(priors []string, letterID string, window int) []string {
	if window <= 0 {
		return priors
	}
	ownYY, ownNum, ok := idYearNumber(letterID)
	if !ok {
		return priors
	}
	out := make([]string, 0, len(priors))
	for _, p := range priors {
		yy, num, ok := idYearNumber(p)
		if ok && yy == ownYY && abs(num-ownNum) <= window {
			continue
		}
		out = append(out, p)
	}
	return out
}

func idYearNumber(id string) (yy string, num int, ok bool) {
	m := reIDYear.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(id)))
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], n, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// RecoverID scans the opening of a document's text for a File No.
// header and reconstructs the standard identifier. Returns empty when
// no header is found.
func RecoverID(text string) string {
	if len(text) > recoverScanLimit {
		text = text[:recoverScanLimit]
	}
	m := reFileNo.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	prefix := strings.ToUpper(m[1])
	if prefix == "" {
		prefix = "A"
	}
	return fmt.Sprintf("%s-%s-%s", prefix, m[2], m[3])
}

// PlaceholderID builds a synthetic identifier for documents where no
// file number could be recovered. The database id keeps it unique.
func PlaceholderID(year, docID int) string {
	return fmt.Sprintf("UNK-%02d-%05d", year%100, docID)
}

// Century expands a two-digit identifier year to a full year. The
// corpus runs from the mid 1970s through the present, so a two-digit
// year at or below the current one belongs to this century.
func Century(yy int) int {
	if yy <= time.Now().Year()%100 {
		return 2000 + yy
	}
	return 1900 + yy
}
