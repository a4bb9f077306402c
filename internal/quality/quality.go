// Package quality scores extracted text on a 0.0-1.0 readability scale.
//
// Five components, all positive, weights sum to 1.0: density (words per
// page), character cleanliness (alpha ratio), structural word validity,
// dictionary validity (the dominant signal, since it is the only one
// that catches plausible-looking character substitutions), and presence
// of expected document patterns. A density gate scales the whole score
// down when almost no text came out, so a near-empty page cannot score
// well on the other axes.
package quality

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/civic-archive/fppc-cli/internal/config"
)

// Component weights, sum to 1.0.
const (
	weightDensity     = 0.15
	weightCharQuality = 0.15
	weightWordQuality = 0.15
	weightDict        = 0.40
	weightContent     = 0.15
)

// Metrics is the detailed scoring breakdown for one extraction. The
// FinalScore is what gets persisted; the rest is diagnostic.
type Metrics struct {
	TotalChars   int
	TotalWords   int
	PageCount    int
	WordsPerPage float64
	AlphaRatio   float64

	DensityScore     float64
	CharQualityScore float64
	WordQualityScore float64
	DictScore        float64
	ContentScore     float64

	FinalScore float64

	HasDatePattern    bool
	HasAgencyMention  bool
	HasSectionHeaders bool
	GarbageWordCount  int
	NonLatinWordCount int
	DictMissRatio     float64
}

// Scorer computes quality metrics. It is safe for concurrent use.
type Scorer struct {
	cfg  config.QualityConfig
	dict map[string]struct{}
}

// NewScorer builds a Scorer, loading the reference dictionary from the
// configured path, the system dictionary, or the bundled fallback list.
func NewScorer(cfg config.QualityConfig) *Scorer {
	return &Scorer{cfg: cfg, dict: loadDictionary(cfg.DictionaryPath)}
}

// NewScorerWithDictionary builds a Scorer over an explicit word list.
func NewScorerWithDictionary(cfg config.QualityConfig, words []string) *Scorer {
	dict := make(map[string]struct{}, len(words))
	for _, w := range words {
		dict[strings.ToLower(w)] = struct{}{}
	}
	return &Scorer{cfg: cfg, dict: dict}
}

type point struct{ x, y float64 }

// piecewiseLinear interpolates through a series of (x, y) points,
// clamping to the first and last y outside their range.
func piecewiseLinear(x float64, pts []point) float64 {
	if x <= pts[0].x {
		return pts[0].y
	}
	if x >= pts[len(pts)-1].x {
		return pts[len(pts)-1].y
	}
	for i := 0; i < len(pts)-1; i++ {
		p0, p1 := pts[i], pts[i+1]
		if x >= p0.x && x <= p1.x {
			t := (x - p0.x) / (p1.x - p0.x)
			return p0.y + t*(p1.y-p0.y)
		}
	}
	return pts[len(pts)-1].y
}

// Anything outside the Latin/ASCII range in an English legal document
// is almost certainly OCR garbage.
var reNonLatin = regexp.MustCompile(`[\x{0400}-\x{04FF}\x{3000}-\x{9FFF}\x{F900}-\x{FAFF}\x{AC00}-\x{D7AF}\x{0600}-\x{06FF}\x{0900}-\x{097F}\x{FF00}-\x{FFEF}\x{3040}-\x{309F}\x{30A0}-\x{30FF}]`)

var (
	reConsonantCluster = regexp.MustCompile(`[bcdfghjklmnpqrstvwxz]{5,}`)
	reHasVowel         = regexp.MustCompile(`[aeiouyAEIOUY]`)
)

var (
	reDates = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
	}
	reAgency = []*regexp.Regexp{
		regexp.MustCompile(`\bFPPC\b`),
		regexp.MustCompile(`FAIR\s+POLITICAL\s+PRACTICES\s+COMMISSION`),
		regexp.MustCompile(`POLITICAL\s+REFORM\s+ACT`),
	}
	reHeaders = []*regexp.Regexp{
		regexp.MustCompile(`\bQUESTION\b`),
		regexp.MustCompile(`\bCONCLUSION\b`),
		regexp.MustCompile(`\bFACTS\b`),
		regexp.MustCompile(`\bANALYSIS\b`),
		regexp.MustCompile(`\bSHORT\s+ANSWER\b`),
	}
)

const wordPunct = `.,;:!?()[]{}"'-/`

// Score computes quality metrics for extracted text. Fails closed:
// empty text or a non-positive page count scores exactly 0.0.
func (s *Scorer) Score(text string, pageCount int) Metrics {
	if text == "" || pageCount <= 0 {
		return Metrics{PageCount: pageCount, DictMissRatio: 1.0}
	}

	words := strings.Fields(text)
	m := Metrics{
		TotalChars:   len(text),
		TotalWords:   len(words),
		PageCount:    pageCount,
		WordsPerPage: float64(len(words)) / float64(pageCount),
	}

	m.DensityScore = densityScore(m.WordsPerPage)
	m.CharQualityScore, m.AlphaRatio = charQualityScore(text)
	m.WordQualityScore, m.GarbageWordCount, m.NonLatinWordCount = wordQualityScore(words)
	m.DictScore, m.DictMissRatio = s.dictScore(words)
	m.ContentScore, m.HasDatePattern, m.HasAgencyMention, m.HasSectionHeaders = contentScore(text)

	final := weightDensity*m.DensityScore +
		weightCharQuality*m.CharQualityScore +
		weightWordQuality*m.WordQualityScore +
		weightDict*m.DictScore +
		weightContent*m.ContentScore

	// Density gate: almost no text means the document is not usable no
	// matter how clean the few words happen to be.
	gate := s.cfg.DensityGateBelow
	if gate <= 0 {
		gate = 0.20
	}
	if m.DensityScore < gate {
		final *= m.DensityScore / gate
	}

	m.FinalScore = clamp01(final)
	return m
}

// ShouldEscalate decides whether the document needs a stronger engine
// than the text layer. Conservative: false positives (an unnecessary
// OCR pass) are preferred over missed bad extractions.
func (s *Scorer) ShouldEscalate(year int, m Metrics) bool {
	if year > 0 && year < s.cfg.EscalateYear {
		return true
	}
	if m.FinalScore < s.cfg.EscalateBelow {
		return true
	}
	if m.WordsPerPage < s.cfg.MinWordsPerPage {
		return true
	}
	if m.AlphaRatio < s.cfg.MinAlphaRatio {
		return true
	}
	if m.GarbageWordCount > s.cfg.MaxGarbageWords {
		return true
	}
	return false
}

// FPPC letters typically run 200-500 words per page; both very low and
// very high counts are suspicious.
func densityScore(wordsPerPage float64) float64 {
	return piecewiseLinear(wordsPerPage, []point{
		{0, 0.0},
		{20, 0.05},
		{50, 0.30},
		{100, 0.60},
		{200, 0.95},
		{600, 1.0},
		{800, 0.85},
		{1200, 0.60},
	})
}

func charQualityScore(text string) (score, alphaRatio float64) {
	var alpha, printable int
	for _, r := range text {
		if unicode.IsLetter(r) {
			alpha++
		}
		if unicode.IsPrint(r) && !unicode.IsSpace(r) {
			printable++
		}
	}
	if printable == 0 {
		return 0, 0
	}
	alphaRatio = float64(alpha) / float64(printable)

	score = piecewiseLinear(alphaRatio, []point{
		{0.30, 0.0},
		{0.50, 0.15},
		{0.65, 0.40},
		{0.75, 0.65},
		{0.85, 0.90},
		{0.93, 1.0},
	})
	return score, alphaRatio
}

func wordQualityScore(words []string) (score float64, garbage, nonLatin int) {
	if len(words) == 0 {
		return 0, 0, 0
	}

	for _, word := range words {
		clean := strings.Trim(word, wordPunct)
		if clean == "" || len(clean) <= 2 {
			continue
		}

		switch {
		case reNonLatin.MatchString(clean):
			garbage++
			nonLatin++
		case len(clean) > 25 && !isURLLike(clean):
			garbage++
		case len(clean) >= 3 && !reHasVowel.MatchString(clean) && !isNumeric(clean, "-."):
			garbage++
		case hasRepeatedRun(clean, 4):
			garbage++
		case reConsonantCluster.MatchString(strings.ToLower(clean)):
			garbage++
		}
	}

	validRatio := 1.0 - float64(garbage)/float64(len(words))
	score = piecewiseLinear(validRatio, []point{
		{0.50, 0.0},
		{0.70, 0.20},
		{0.85, 0.50},
		{0.93, 0.75},
		{0.97, 0.90},
		{1.0, 1.0},
	})
	return score, garbage, nonLatin
}

// dictScore samples up to 200 words evenly across the document and
// checks them against the reference dictionary. Legal documents
// legitimately miss on 10-15% of words (proper nouns, legal terms), so
// the curve tolerates that before degrading.
func (s *Scorer) dictScore(words []string) (score, missRatio float64) {
	if len(s.dict) == 0 {
		return 1.0, 0.0
	}
	if len(words) < 10 {
		return 0.5, 0.5
	}

	const maxSample = 200
	sample := words
	if len(words) > maxSample {
		sample = make([]string, 0, maxSample)
		step := float64(len(words)) / maxSample
		for i := 0; i < maxSample; i++ {
			sample = append(sample, words[int(float64(i)*step)])
		}
	}

	var checked, misses int
	for _, word := range sample {
		clean := strings.ToLower(strings.Trim(word, wordPunct))
		if clean == "" || len(clean) <= 2 {
			continue
		}
		if isNumeric(clean, "-.,") {
			continue
		}
		if strings.ContainsAny(clean, "@#$%&*=+<>") {
			continue
		}
		checked++
		if _, ok := s.dict[clean]; !ok {
			misses++
		}
	}
	if checked == 0 {
		return 0.5, 0.5
	}

	missRatio = float64(misses) / float64(checked)
	score = piecewiseLinear(1.0-missRatio, []point{
		{0.40, 0.0},
		{0.55, 0.15},
		{0.65, 0.35},
		{0.75, 0.60},
		{0.85, 0.80},
		{0.92, 0.95},
		{1.0, 1.0},
	})
	return score, missRatio
}

// contentScore confirms the text looks like an actual advice letter
// rather than readable noise: dates, agency mentions, section headers.
func contentScore(text string) (score float64, hasDate, hasAgency, hasHeaders bool) {
	upper := strings.ToUpper(text)

	for _, re := range reDates {
		if re.MatchString(text) {
			hasDate = true
			break
		}
	}
	for _, re := range reAgency {
		if re.MatchString(upper) {
			hasAgency = true
			break
		}
	}
	var headerCount int
	for _, re := range reHeaders {
		if re.MatchString(upper) {
			headerCount++
		}
	}
	hasHeaders = headerCount >= 2

	if hasDate {
		score += 0.33
	}
	if hasAgency {
		score += 0.34
	}
	if hasHeaders {
		score += 0.33
	}
	return score, hasDate, hasAgency, hasHeaders
}

func isURLLike(s string) bool {
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.") ||
		strings.Contains(s, "@")
}

// isNumeric reports whether s is all digits once the given separator
// characters are stripped.
func isNumeric(s, separators string) bool {
	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(separators, r) {
			return -1
		}
		return r
	}, s)
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hasRepeatedRun(s string, n int) bool {
	run := 1
	var prev rune
	for i, r := range s {
		if i > 0 && r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
		prev = r
	}
	return false
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
