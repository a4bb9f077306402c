package sections

import (
	"regexp"

	"github.com/civic-archive/fppc-cli/internal/model"
)

// headerPattern pairs a compiled pattern with the section type it
// recognizes and the format era it belongs to. Patterns are evaluated
// in order, most specific first; only the first pattern to match per
// section type wins.
type headerPattern struct {
	re  *regexp.Regexp
	typ model.SectionType
	era string
}

func hp(expr string, typ model.SectionType, era string) headerPattern {
	return headerPattern{re: regexp.MustCompile(`(?im)` + expr), typ: typ, era: era}
}

// Letter formats evolved over the decades: clean own-line headers in
// modern documents, "QUESTIONS PRESENTED" and "SHORT ANSWER" variants
// in the 1990s, "DISCUSSION" for analysis in the 1980s. The OCR block
// tolerates character substitution and inserted spaces seen in scans.
var headerPatterns = []headerPattern{
	// Modern format, header on its own line
	hp(`^[ \t]{0,4}QUESTIONS?\s*$`, model.SectionQuestion, "modern"),
	hp(`^[ \t]{0,4}CONCLUSIONS?\s*$`, model.SectionConclusion, "modern"),
	hp(`^[ \t]{0,4}FACTS(?:\s+AS\s+PRESENTED(?:\s+BY\s+REQUESTER)?)?\s*$`, model.SectionFacts, "modern"),
	hp(`^[ \t]{0,4}ANALYSIS\s*$`, model.SectionAnalysis, "modern"),

	// Modern with colon
	hp(`^[ \t]{0,4}QUESTIONS?\s*:`, model.SectionQuestion, "modern"),
	hp(`^[ \t]{0,4}CONCLUSIONS?\s*:`, model.SectionConclusion, "modern"),
	hp(`^[ \t]{0,4}FACTS\s*:`, model.SectionFacts, "modern"),
	hp(`^[ \t]{0,4}ANALYSIS\s*:`, model.SectionAnalysis, "modern"),

	// Numbered format
	hp(`^[ \t]{0,4}QUESTIONS?\s+1\s*[:.\n]`, model.SectionQuestion, "numbered"),
	hp(`^[ \t]{0,4}(?:CONCLUSIONS?|ANSWERS?)\s+1\s*[:.\n]`, model.SectionConclusion, "numbered"),

	// Older format variants
	hp(`^[ \t]{0,4}QUESTIONS?\s+PRESENTED\s*[:\n]?`, model.SectionQuestion, "old"),
	hp(`^[ \t]{0,4}ISSUES?\s+PRESENTED\s*[:\n]?`, model.SectionQuestion, "old"),
	hp(`^[ \t]{0,4}SHORT\s+ANSWERS?\s*[:\n]?`, model.SectionConclusion, "old"),
	hp(`^[ \t]{0,4}SUMMARY(?:\s+OF\s+CONCLUSIONS?)?\s*[:\n]?`, model.SectionConclusion, "old"),
	hp(`^[ \t]{0,4}DISCUSSION\s*[:\n]?`, model.SectionAnalysis, "old"),
	hp(`^[ \t]{0,4}BACKGROUND\s*[:\n]?`, model.SectionFacts, "old"),
	hp(`^[ \t]{0,4}STATEMENT\s+OF\s+FACTS?\s*[:\n]?`, model.SectionFacts, "old"),
	hp(`^[ \t]{0,4}FACTUAL\s+BACKGROUND\s*[:\n]?`, model.SectionFacts, "old"),
	hp(`^[ \t]{0,4}LEGAL\s+ANALYSIS\s*[:\n]?`, model.SectionAnalysis, "old"),

	// OCR-tolerant patterns, checked after the clean forms
	hp(`^[ \t]{0,4}[OQ]UESTIONS?\s*[:\n]?$`, model.SectionQuestion, "ocr"),
	hp(`^[ \t]{0,4}Q\s*U\s*E\s*S\s*T\s*I\s*O\s*N`, model.SectionQuestion, "ocr"),
	hp(`^[ \t]{0,4}C\s*O\s*N\s*C\s*L\s*U\s*S\s*I\s*O\s*N`, model.SectionConclusion, "ocr"),
	hp(`^[ \t]{0,4}A\s*N\s*A\s*L\s*Y\s*S\s*I\s*S`, model.SectionAnalysis, "ocr"),
	hp(`^[ \t]{0,4}QUESTTONS?\s*[:\n]?$`, model.SectionQuestion, "ocr"),
	hp(`^[ \t]{0,4}ANALYSTS\s*[:\n]?$`, model.SectionAnalysis, "ocr"),
	hp(`^[ \t]{0,4}[rF]ACTS\s*[:\n]?$`, model.SectionFacts, "ocr"),
	hp(`^[ \t]{0,4}CONCLUSIONS?\s+AND\s+ANALYSIS\s*[:\n]?$`, model.SectionConclusion, "ocr"),
	hp(`^[ \t]{0,4}QT\.?J?E?S?T?[TI]?ON`, model.SectionQuestion, "ocr"),
	hp(`^[ \t]{0,4}[OQ]UE?STI?\s+ON`, model.SectionQuestion, "ocr"),
	hp(`^[ \t]{0,4}[OQ]UESTTON`, model.SectionQuestion, "ocr"),
	hp(`^[ \t]{0,4}CONCLUS[fI]?ONS?\s*[:\n]?$`, model.SectionConclusion, "ocr"),
	hp(`^[ \t]{0,4}CONCLU\s*S\s*IONS?\s*[:\n]?$`, model.SectionConclusion, "ocr"),
	hp(`^[ \t]{0,4}FACT\s+S\b`, model.SectionFacts, "ocr"),
	hp(`^[ \t]{0,4}A[I}\]\\NM]+[LA]*[LY]+S[IT1]S\s*[:\n]?$`, model.SectionAnalysis, "ocr"),
	hp(`^[ \t]{0,4}ANA\s*LYSIS\s*[:\n]?$`, model.SectionAnalysis, "ocr"),
	hp(`^[ \t]{0,4}ANALYS[NI][SNI]?\s*[:\n]?$`, model.SectionAnalysis, "ocr"),
	hp("^[ \\t]{0,4}F['`\u2019]?\\s*ACTS\\s*[:\\n]?$", model.SectionFacts, "ocr"),

	// Roman-numeral prefixed headers: "I. QUESTION", "IV. ANALYSIS"
	hp(`^[ \t]{0,4}(?:I{1,4}|IV|V|VI{0,3})\.?\s+QUESTIONS?\s*[:\n]?$`, model.SectionQuestion, "numbered"),
	hp(`^[ \t]{0,4}(?:I{1,4}|IV|V|VI{0,3})\.?\s+(?:CONCLUSIONS?|SHORT\s+ANSWERS?)\s*[:\n]?$`, model.SectionConclusion, "numbered"),
	hp(`^[ \t]{0,4}(?:I{1,4}|IV|V|VI{0,3})\.?\s+FACTS?\s*[:\n]?$`, model.SectionFacts, "numbered"),
	hp(`^[ \t]{0,4}(?:I{1,4}|IV|V|VI{0,3})\.?\s+(?:ANALYSIS|DISCUSSION)\s*[:\n]?$`, model.SectionAnalysis, "numbered"),
}

// Markers for the end of document content, before the signature block.
var documentEndPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\n[ \t]*Sincerely,`),
	regexp.MustCompile(`(?i)\n[ \t]*Very truly yours,`),
	regexp.MustCompile(`(?i)\n[ \t]*Respectfully,`),
	regexp.MustCompile(`(?i)\n[ \t]*Respectfully submitted,`),
	regexp.MustCompile(`(?i)\n[ \t]*General Counsel`),
	regexp.MustCompile(`(?i)\n[ \t]*Chief Counsel`),
	regexp.MustCompile(`(?i)\n[ \t]*\*\s*\*\s*\*[ \t]*\n`),
	regexp.MustCompile(`(?i)\n[ \t]*[Ss]incerely\s*[,.]`),
	regexp.MustCompile(`(?i)\n[ \t]*[Ss]incere[1l]y\s*[,.]`),
	regexp.MustCompile(`(?i)\n[ \t]*If you have (?:any )?(?:other |further |additional )?questions`),
	regexp.MustCompile(`(?i)\n[ \t]*(?:However,?\s+)?[Ss]hould you have (?:any )?(?:other |further |additional )?questions`),
	regexp.MustCompile(`(?i)\n[ \t]*If I can be of (?:any )?further (?:assistance|help)`),
	regexp.MustCompile(`(?i)\n[ \t]*Please do not hesitate to (?:contact|call)`),
	regexp.MustCompile(`(?i)\n[ \t]*If (?:we|I) can be of (?:any )?(?:additional )?assistance`),
	regexp.MustCompile(`(?i)\n[ \t]*Please feel free to contact`),
	regexp.MustCompile(`(?i)\n[ \t]*If you wish to file a complaint`),
	regexp.MustCompile(`(?i)\n[ \t]*I\s+hope\s+(?:this|that(?:\s+this)?)\s+(?:response|letter|opinion)\s+(?:has\s+been|is)\s+(?:of\s+)?(?:assistance|helpful)`),
	regexp.MustCompile(`(?i)\n[ \t]*I\s+trust\s+(?:this|that)\s+(?:answers|responds|adequately)`),
}

// Boilerplate that bleeds into section content: the standard Political
// Reform Act footnote in its clean, OCR-tolerant, and heavily garbled
// forms, file-number page headers, address blocks, and the informal
// assistance footnote. Stripped from the full text before boundary
// detection so that removal cannot merge two adjacent sections.
var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)\d?\s*The Political Reform Act is contained in Government Code Sections?\s+81000.*?(?:unless otherwise indicated\.?\s*)`),
	regexp.MustCompile(`(?is)[1It'/]?\s*(?:The\s+)?[Pp]olitical\s+[Rr]efor[mn]\w?\s+[Aa]ct\s+is\s+conta[im]\w+\s+in\s+G[\w.,"'*\s]{0,15}(?:Code|code)\s+[Ss]ect\w*\s+(?:8[1lI]0{2,3}|SIOOO).*?(?:unless\s+otherwise\s+indicated|California\s+Code\s+of\s+Reg|Code\s+of\s+Reg).*?(?:indicated\.?\s*|Regulations?\.?\s*)`),
	regexp.MustCompile(`(?is)[1It'/]?\s*G[\w.,"\s]{0,12}(?:Code|code)\s+[Ss]ect\w*\s+(?:8[1lI]0{2,3}|SIOOO)[\s\S]{0,300}?(?:unless\s+otherwise\s+indicated|Cal\w*\s+Code\s+of\s+Reg\w*)\.?\s*`),
	regexp.MustCompile(`(?is)[1It'/]?\s*(?:The\s+)?[Rr]eg\w+\s+of\s+the\s+Fair\s+Political\s+Practices\s+Comm\w+\s+are\s+contained.*?(?:unless\s+otherwise\s+indicated|California\s+Code\s+of\s+Reg\w*)\.?\s*`),
	regexp.MustCompile(`(?is)[1It'/]?\s*(?:The\s+)?[Pp]olitical\s+[Rr]eform\s+[Aa]ct.*?(?:California\s+Code\s+of\s+Reg\w*|Code\s+of\s+Reg\w*)[\s\S]{0,50}?(?:unless\s+otherwise\s+indicated|otherwise\s+indicated)\.?\s*`),
	regexp.MustCompile(`(?is)File\s+No\.\s*[AIM41]?-?\d{2}-?\d{3,4}\s*(?:[/\n]\s*Page\s*(?:No\.)?\s*\d+)?`),
	regexp.MustCompile(`(?is)\n\s*Re:\s+(?:Your\s+)?(?:File|Letter)\s+No\.?\s*[AIM]?-?\d{2}-?\d{3,4}`),
	regexp.MustCompile(`(?is)(?:428\s+J\s+Street|1102\s+Q\s+Street).*?(?:\d{5}(?:-\d{4})?)`),
	regexp.MustCompile(`(?is)\n\s*Page\s+(?:No\.)?\s*\d+(?:\s+of\s+\d+)?`),
	regexp.MustCompile(`(?is)\d\s*/\s*G[\w.,"\s]{0,12}(?:Code|code)\s+[Ss]ect\w*\s+8[1lI]0{2,3}.*?(?:\d{5}(?:-\d{4})?)`),
	regexp.MustCompile(`(?is)A[Il1J][Il1J]\s+regulatory\s+references\s+ar[ec]\s+to\s+Title\s+2.*?(?:unless\s+otherwise\s+indicated|otherwise\s+indicated)\.?\s*`),
	regexp.MustCompile(`(?is)Commission\s+regulations?\s+appear\s+at\s+.*?(?:Code\s+(?:of\s+)?Reg|Administrative\s+Code)\w*.*?(?:et\s+seq\.?|section\s+\d{4,5}).*?\s*`),
	regexp.MustCompile(`(?is)A[Il1J][Il1J]\s+statutory\s+references\s+ar[ec]\s+to\s+the\s+Government\s+Code.*?(?:unless\s+otherwise\s+indicated|otherwise\s+indicated)\.?\s*`),
	regexp.MustCompile(`(?is)\w+\d\s+Informal\s+assistance\s+does\s+not\s+provide.*?(?:subject\s+to\s+penalty|Commission\s+action|enforcement\s+action).*?\.?\s*`),
	regexp.MustCompile(`(?is)\n\s*\d\s+Informal\s+assistance\s+does\s+not\s+provide.*?(?:subject\s+to\s+penalty|Commission\s+action|enforcement\s+action).*?\.?\s*`),
	regexp.MustCompile(`(?is)(?:FAIR\s+POLITICAL\s+PRACTICES\s+COMMISSION|F\s*A\s*I\s*R\s*P\s*O\s*L\s*I\s*T\s*I\s*C\s*A\s*L).*?(?:Sacramento|SACRAMENTO).*?(?:\d{5})`),
}

var (
	rePageNumber = regexp.MustCompile(`\n[ \t]*-?\d+-[ \t]*\n`)
	rePageOfPage = regexp.MustCompile(`(?i)\n[ \t]*Page \d+ of \d+[ \t]*\n`)
	reBlankRuns  = regexp.MustCompile(`\n{4,}`)
)
