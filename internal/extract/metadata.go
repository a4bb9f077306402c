package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/civic-archive/fppc-cli/internal/citations"
	"github.com/civic-archive/fppc-cli/internal/model"
)

// Scan windows. Letter metadata lives on the first page; scanning
// further picks up dates and names quoted inside the analysis body.
const (
	dateScanChars      = 2000
	requestorScanChars = 3000
	docTypeScanChars   = 5000
)

// minLetterYear is the lower plausible letter-date bound. The
// commission started issuing advice letters in the mid 1970s; the
// upper bound tracks the current year.
const minLetterYear = 1975

func maxLetterYear() int { return time.Now().Year() }

// monthNames matches month words including the OCR confusions seen in
// the corpus: I or L standing in for J, rn read as m, l read as i.
const monthNames = `January|Ianuary|Lanuary|Januarv|February|Februarv|Febniary|March|Iarch|Inarch|April|Aprii|Apnl|May|Mav|June|Iune|Lune|July|Iuly|Luly|Idy|htly|Julv|Jidy|Juiy|August|Augusl|Augusi|September|Septeinber|Septernber|October|Octoher|November|Noveinber|Novernber|December|Deceinber|Decernber`

// datePatterns are tried in order. The first tolerates OCR-garbled
// year digits, the second requires a clean four-digit year, the third
// handles slash dates with two-digit years.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(` + monthNames + `)\s*(\d{1,2})[,.\s]\s*(\d{4}|[Ll0-9Oo]{4})`),
	regexp.MustCompile(`(?i)(` + monthNames + `)\s*(\d{1,2}),?\s*(\d{4})`),
	regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{2,4})`),
}

var monthNums = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4,
	"may": 5, "june": 6, "july": 7, "august": 8,
	"september": 9, "october": 10, "november": 11, "december": 12,
}

var ocrMonthNums = map[string]int{
	"ianuary": 1, "lanuary": 1, "januarv": 1,
	"februarv": 2, "febniary": 2,
	"iarch": 3, "inarch": 3,
	"aprii": 4, "apnl": 4,
	"mav": 5,
	"iune": 6, "lune": 6,
	"iuly": 7, "luly": 7, "idy": 7, "htly": 7, "julv": 7, "jidy": 7, "juiy": 7,
	"augusl": 8, "augusi": 8,
	"septeinber": 9, "septernber": 9,
	"octoher": 10,
	"noveinber": 11, "novernber": 11,
	"deceinber": 12, "decernber": 12,
}

func monthNumber(name string) int {
	key := strings.ToLower(name)
	if n, ok := monthNums[key]; ok {
		return n
	}
	if n, ok := ocrMonthNums[key]; ok {
		return n
	}
	return 1
}

// fixOCRYear repairs letters that OCR substitutes for year digits.
func fixOCRYear(raw string) string {
	r := strings.NewReplacer("L", "1", "l", "1", "O", "0", "o", "0", " ", "", "-", "")
	return r.Replace(raw)
}

// expandYear widens a two-digit year around the corpus's span.
func expandYear(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	if len(raw) <= 2 {
		return citations.Century(n)
	}
	return n
}

// ParseLetterDate finds the letter date near the top of the document
// and returns it as YYYY-MM-DD, or empty when no plausible date parses.
func ParseLetterDate(text string) string {
	head := text
	if len(head) > dateScanChars {
		head = head[:dateScanChars]
	}

	for i, re := range datePatterns {
		m := re.FindStringSubmatch(head)
		if m == nil {
			continue
		}

		var year, month, day int
		switch i {
		case 0, 1:
			month = monthNumber(m[1])
			day, _ = strconv.Atoi(m[2])
			yr := m[3]
			if i == 0 {
				yr = fixOCRYear(yr)
			}
			year, _ = strconv.Atoi(yr)
		default:
			month, _ = strconv.Atoi(m[1])
			day, _ = strconv.Atoi(m[2])
			year = expandYear(m[3])
		}

		if year < minLetterYear || year > maxLetterYear() {
			continue
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	}
	return ""
}

var reSalutation = regexp.MustCompile(`Dear\s+(?:Mr\.|Ms\.|Mrs\.|Dr\.)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:City|County|District)\s+(?:Attorney|Counsel)`),
	regexp.MustCompile(`(?i)(?:General|Chief)\s+Counsel`),
	regexp.MustCompile(`(?i)(?:Assistant|Deputy)\s+(?:City|County)\s+(?:Attorney|Manager)`),
}

// ParseRequestor pulls the salutation name and any professional title
// from the letterhead region. Either return value may be empty.
func ParseRequestor(text string) (name, title string) {
	head := text
	if len(head) > requestorScanChars {
		head = head[:requestorScanChars]
	}
	if m := reSalutation.FindStringSubmatch(head); m != nil {
		name = m[1]
	}
	for _, re := range titlePatterns {
		if t := re.FindString(head); t != "" {
			title = t
			break
		}
	}
	return name, title
}

// withdrawalPatterns mark letters that close a request rather than
// answer it. Matched against uppercased text.
var withdrawalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`WITHDRAW(?:N|AL|ING)\s+(?:YOUR|THE|THIS)\s+REQUEST`),
	regexp.MustCompile(`DECLINE\s+TO\s+(?:ISSUE|PROVIDE)`),
	regexp.MustCompile(`REQUEST\s+(?:HAS\s+BEEN|IS)\s+WITHDRAW`),
	regexp.MustCompile(`WITHDRAWAL\s+OF\s+(?:YOUR\s+)?REQUEST`),
}

// DetectDocumentType classifies a letter from withdrawal language, the
// identifier prefix, and finally content markers, in that order.
func DetectDocumentType(letterID, text string) model.DocumentType {
	head := text
	if len(head) > docTypeScanChars {
		head = head[:docTypeScanChars]
	}
	upper := strings.ToUpper(head)

	for _, re := range withdrawalPatterns {
		if re.MatchString(upper) {
			return model.DocTypeCorrespondence
		}
	}

	switch {
	case strings.HasPrefix(letterID, "A-"):
		return model.DocTypeAdviceLetter
	case strings.HasPrefix(letterID, "I-"):
		return model.DocTypeInformalAdvice
	case strings.HasPrefix(letterID, "M-"):
		return model.DocTypeOpinion
	}

	if strings.Contains(upper, "INFORMAL ASSISTANCE") {
		return model.DocTypeInformalAdvice
	}
	if strings.Contains(upper, "FORMAL OPINION") {
		return model.DocTypeOpinion
	}
	return model.DocTypeAdviceLetter
}

var reIDYear = regexp.MustCompile(`^[A-Z]-?(\d{2})-`)

// YearFromID derives a four-digit year from a standard letter
// identifier, 0 when the identifier does not carry one.
func YearFromID(id string) int {
	m := reIDYear.FindStringSubmatch(id)
	if m == nil {
		return 0
	}
	yy, _ := strconv.Atoi(m[1])
	return citations.Century(yy)
}
