// Package scrub removes personally identifiable information from résumé
// text. Detection is rule based: an ordered table of PII classes, each
// carrying a placeholder token and a set of matchers. Matched spans are
// replaced with the class placeholder, never deleted, so document length and
// structure stay stable for downstream tokenization.
package scrub

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

//go:embed names.txt
var namesFile string

// placeholderRe matches class placeholders so a second pass never redacts
// text that is already anonymized.
var placeholderRe = regexp.MustCompile(`<[A-Z_]+>`)

var (
	emailRe = regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	linkedinRe = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?linkedin\.com/in/[A-Za-z0-9_-]+`)
	githubRe   = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?github\.com/[A-Za-z0-9_-]+`)
	twitterRe  = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?twitter\.com/[A-Za-z0-9_]+`)
	facebookRe = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?facebook\.com/[A-Za-z0-9_.-]+`)

	labeledPhoneRe = regexp.MustCompile(`(?i)\b(?:phone|telephone|tel|mobile|cell|contact)(?:\s*(?:number|no|#))?\s*[:：]?\s*(\+?[\d ().-]{6,}\d)`)
	phoneRe        = regexp.MustCompile(`\b(?:\+\d{1,3}[-.\s]?)?(?:\(?\d{3}\)?[-.\s]?){1,2}\d{3,4}[-.\s]?\d{3,4}\b`)
	digitRunRe     = regexp.MustCompile(`\b\d{10,}\b`)

	ssnRe       = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	labeledIDRe = regexp.MustCompile(`\b(?i:social security number|social security no|ssn|passport number|passport no|passport|driving licen[cs]e|driver'?s licen[cs]e|licen[cs]e number|licen[cs]e no|national id|aadhaar|pan)\s*[:：#]?\s*([A-Z0-9][A-Z0-9 -]{2,18}[A-Z0-9])`)

	dobNumericRe = regexp.MustCompile(`\b(?i:date\s+of\s+birth|dob|birth\s*date|born)\s*[:：(]?\s*(\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4})`)
	dobISORe     = regexp.MustCompile(`\b(?i:date\s+of\s+birth|dob|birth\s*date|born)\s*[:：(]?\s*(\d{4}[-/.]\d{1,2}[-/.]\d{1,2})`)
	dobWordedRe  = regexp.MustCompile(`\b(?i:date\s+of\s+birth|dob|birth\s*date|born)\s*[:：(]?\s*([A-Za-z]+\s+\d{1,2},?\s+\d{4})`)

	labeledAgeRe = regexp.MustCompile(`\b(?i:age)\s*[:：]?\s*(\d{1,2})\b`)
	yearsOldRe   = regexp.MustCompile(`\b(\d{1,2})\s+(?i:years?\s+old)\b`)

	labeledGenderRe = regexp.MustCompile(`\b(?i:gender|sex)\s*[-:：]?\s*((?i:male|female|non-binary|m|f))\b`)
	parenGenderRe   = regexp.MustCompile(`\(((?i:male|female|m|f))\)`)

	streetAddressRe  = regexp.MustCompile(`(?i)\b\d{1,5}\s+[A-Za-z0-9 .,]{2,40}\b(?:street|avenue|road|boulevard|blvd|drive|lane|place|way|apt|suite|st|rd|dr|ave|ln|court|ct)\b`)
	labeledAddressRe = regexp.MustCompile(`\b(?i:address|location|residence)\s*[:：]\s*([^\n]{4,80})`)
	unitAddressRe    = regexp.MustCompile(`\b\d{1,4}/[A-Za-z0-9],?\s+[A-Za-z0-9 ,]{4,60},\s+[A-Za-z ]{2,30},\s+[A-Za-z ]{2,30}\b`)

	labeledNameRe = regexp.MustCompile(`\b(?i:(?:father|mother)(?:'|’)?s\s+name|full name|candidate name|applicant|name)\s*[:：]\s*([A-Z][A-Za-z.'-]+(?:[ \t]+[A-Z][A-Za-z.'-]+){0,3})`)
	salutationRe  = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Prof)\.?[ \t]+([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+){0,2})\b`)
	bareNameRe    = regexp.MustCompile(`\b([A-Z][a-z]{1,19}(?:[ \t]+[A-Z][a-z]{1,19}){1,2})\b`)
)

// pattern is a single matcher for a PII class. When group is positive only
// that capture group is replaced, keeping surrounding label text. Gated
// patterns additionally require the gazetteer to approve the value.
type pattern struct {
	re    *regexp.Regexp
	group int
	gated bool
}

// class ties one PII category to its placeholder and matchers. Table order
// breaks ties between overlapping spans of equal length.
type class struct {
	name        string
	placeholder string
	patterns    []pattern
}

var classTable = []class{
	{name: "email", placeholder: "<EMAIL>", patterns: []pattern{
		{re: emailRe},
	}},
	{name: "linkedin", placeholder: "<LINKEDIN>", patterns: []pattern{
		{re: linkedinRe},
	}},
	{name: "github", placeholder: "<GITHUB>", patterns: []pattern{
		{re: githubRe},
	}},
	{name: "twitter", placeholder: "<TWITTER>", patterns: []pattern{
		{re: twitterRe},
	}},
	{name: "facebook", placeholder: "<FACEBOOK>", patterns: []pattern{
		{re: facebookRe},
	}},
	{name: "phone", placeholder: "<PHONE>", patterns: []pattern{
		{re: labeledPhoneRe, group: 1},
		{re: phoneRe},
		{re: digitRunRe},
	}},
	{name: "id", placeholder: "<ID>", patterns: []pattern{
		{re: ssnRe},
		{re: labeledIDRe, group: 1},
	}},
	{name: "dob", placeholder: "<DOB>", patterns: []pattern{
		{re: dobNumericRe, group: 1},
		{re: dobISORe, group: 1},
		{re: dobWordedRe, group: 1},
	}},
	{name: "age", placeholder: "<AGE>", patterns: []pattern{
		{re: labeledAgeRe, group: 1},
		{re: yearsOldRe, group: 1},
	}},
	{name: "gender", placeholder: "<GENDER>", patterns: []pattern{
		{re: labeledGenderRe, group: 1},
		{re: parenGenderRe, group: 1},
	}},
	{name: "address", placeholder: "<ADDRESS>", patterns: []pattern{
		{re: streetAddressRe},
		{re: labeledAddressRe, group: 1},
		{re: unitAddressRe},
	}},
	{name: "name", placeholder: "<NAME>", patterns: []pattern{
		{re: labeledNameRe, group: 1},
		{re: salutationRe, group: 1},
		{re: bareNameRe, group: 1, gated: true},
	}},
}

type span struct {
	start, end int
	class      int
}

// Report counts redactions per PII class for one document. It never carries
// the redacted values themselves.
type Report map[string]int

// Scrubber redacts PII from text. It holds no per-call state and is safe for
// concurrent use.
type Scrubber struct {
	classes []class
	names   map[string]struct{}
}

// New returns a Scrubber covering every supported PII class.
func New() *Scrubber {
	return &Scrubber{classes: classTable, names: loadNames()}
}

// NewWithClasses returns a Scrubber restricted to the named classes, in
// canonical table order. Unknown class names are rejected.
func NewWithClasses(names []string) (*Scrubber, error) {
	selected := make(map[string]bool, len(names))
	for _, n := range names {
		selected[strings.ToLower(strings.TrimSpace(n))] = true
	}

	classes := make([]class, 0, len(classTable))
	for _, c := range classTable {
		if selected[c.name] {
			classes = append(classes, c)
			delete(selected, c.name)
		}
	}
	for n := range selected {
		return nil, fmt.Errorf("unknown pii class %q", n)
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("no pii classes selected")
	}

	return &Scrubber{classes: classes, names: loadNames()}, nil
}

// ClassNames lists every supported PII class in priority order.
func ClassNames() []string {
	names := make([]string, 0, len(classTable))
	for _, c := range classTable {
		names = append(names, c.name)
	}
	return names
}

// Scrub replaces every detected PII span in text with its class placeholder.
// It is pure and idempotent: rerunning it finds no PII inside placeholders.
// Malformed input is passed through best effort, never rejected.
func (s *Scrubber) Scrub(text string) string {
	out, _ := s.redact(text)
	return out
}

// Audit behaves like Scrub and additionally reports how many spans of each
// class were redacted.
func (s *Scrubber) Audit(text string) (string, Report) {
	return s.redact(text)
}

func (s *Scrubber) redact(text string) (string, Report) {
	spans := resolve(s.findSpans(text))
	if len(spans) == 0 {
		return text, Report{}
	}

	report := make(Report, len(s.classes))
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, sp := range spans {
		b.WriteString(text[last:sp.start])
		b.WriteString(s.classes[sp.class].placeholder)
		report[s.classes[sp.class].name]++
		last = sp.end
	}
	b.WriteString(text[last:])

	return b.String(), report
}

func (s *Scrubber) findSpans(text string) []span {
	var spans []span
	for ci, c := range s.classes {
		for _, p := range c.patterns {
			for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
				start, end := m[0], m[1]
				if p.group > 0 {
					start, end = m[2*p.group], m[2*p.group+1]
				}
				if start < 0 || end <= start {
					continue
				}
				value := text[start:end]
				if placeholderRe.MatchString(value) {
					continue
				}
				if p.gated && !s.knownName(value) {
					continue
				}
				spans = append(spans, span{start: start, end: end, class: ci})
			}
		}
	}
	return spans
}

// resolve drops overlapping spans, longest match first. Ties go to the
// earlier span, then to the class higher in the table. The survivors come
// back ordered by position.
func resolve(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool {
		li, lj := spans[i].end-spans[i].start, spans[j].end-spans[j].start
		if li != lj {
			return li > lj
		}
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].class < spans[j].class
	})

	kept := make([]span, 0, len(spans))
	for _, sp := range spans {
		overlaps := false
		for _, k := range kept {
			if sp.start < k.end && k.start < sp.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, sp)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].start < kept[j].start })
	return kept
}

// knownName reports whether the first word of value is in the given-name
// gazetteer. Bare capitalized pairs are only treated as person names when
// the gazetteer agrees; an unknown capitalized phrase may be a skill or a
// title and is left alone.
func (s *Scrubber) knownName(value string) bool {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return false
	}
	_, ok := s.names[strings.ToLower(fields[0])]
	return ok
}

func loadNames() map[string]struct{} {
	names := make(map[string]struct{})
	for _, n := range strings.Fields(namesFile) {
		names[strings.ToLower(n)] = struct{}{}
	}
	return names
}
