// Package ner recognises medications, symptoms and diet mentions in OCR or typed text.
//
// Medication lines are normalised for common OCR slips, filtered against clinic
// boilerplate (headers, addresses, signatures) and matched to a canonical drug list
// with difflib-style fuzzy matching.
package ner

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/xhad/medilex/internal/models"
)

const closeMatchCutoff = 0.6

const doseNumber = `(` + digitClass + `{1,4}(?:\.` + digitClass + `{1,2})?)`

var (
	freqRe = mustBounded(`(?i)(OD|QD|BD|BID|TID|QID|HS|QHS|PRN|SOS|Q` + digitClass + `+h)` + wordEnd)
	// Number and unit are groups 2 and 3, or 5 and 6 for percentages.
	doseRe = mustBounded(`(?i)(` + doseNumber + spaceClass + `*(mg|mcg|g|ml|iu|units))` + wordEnd +
		`|(` + doseNumber + spaceClass + `*(%))` + nonWordEnd)
	formRe   = mustBounded(`(?i)(tab|tablet|cap|capsule|syr(?:up)?|susp(?:ension)?|inj(?:ection)?|drops?)` + wordEnd)
	oneTabRe = mustBounded(`(?i)(1` + spaceClass + `*ab)` + wordEnd)
	unitRe   = mustBounded(`(?i)(tab|tablet|cap|capsule|mg|mcg|g|ml|iu|units)` + wordEnd + `|(%)` + nonWordEnd)

	tinyRe   = regexp.MustCompile(`^(?:[rx` + digitClass + `]|[^` + wordClass + `]){1,4}$`)
	spacesRe = regexp.MustCompile(spaceClass + `{2,}`)
	nameRe   = regexp.MustCompile(`^([A-Za-z][A-Za-z\-]{2,})`)
	nonWord  = regexp.MustCompile(`[^` + wordClass + `]+`)
)

var ocrSlips = strings.NewReplacer(
	"•", "-",
	"—", "-",
	"–", "-",
	"|", "1",
)

// Applied in order; later rules see the output of earlier ones.
var unitSlips = [][2]string{
	{" ag", " mg"},
	{" m9", " mg"},
	{"m9", "mg"},
	{" my", " mg"},
	{" rng", " mg"},
	{" mg.", " mg"},
}

type Recognizer struct {
	canon      []string
	canonLower []string
	aliases    map[string]string
	symptoms   []lexiconTerm
	diet       []lexiconTerm
}

type lexiconTerm struct {
	term string
	re   boundedRe
}

type Option func(*Recognizer)

// WithMedications adds canonical drug names.
func WithMedications(names ...string) Option {
	return func(r *Recognizer) {
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				r.canon = append(r.canon, n)
			}
		}
	}
}

// WithAliases adds OCR misspellings; keys are matched lowercased.
func WithAliases(aliases map[string]string) Option {
	return func(r *Recognizer) {
		for k, v := range aliases {
			r.aliases[strings.ToLower(k)] = v
		}
	}
}

func New(opts ...Option) *Recognizer {
	r := &Recognizer{
		canon:   append([]string(nil), canonicalMedications...),
		aliases: make(map[string]string, len(defaultAliases)),
	}
	for k, v := range defaultAliases {
		r.aliases[k] = v
	}
	for _, opt := range opts {
		opt(r)
	}

	r.canonLower = make([]string, len(r.canon))
	for i, c := range r.canon {
		r.canonLower[i] = strings.ToLower(c)
	}
	r.symptoms = compileLexicon(symptomLexicon)
	r.diet = compileLexicon(dietLexicon)
	return r
}

func compileLexicon(terms []string) []lexiconTerm {
	out := make([]lexiconTerm, 0, len(terms))
	for _, t := range terms {
		out = append(out, lexiconTerm{
			term: t,
			re:   mustBounded(`(?i)(` + regexp.QuoteMeta(t) + `)` + wordEnd),
		})
	}
	return out
}

var defaultRecognizer = New()

// ExtractEntities runs the default recognizer over text.
func ExtractEntities(text string) models.Entities {
	return defaultRecognizer.ExtractEntities(text)
}

func (r *Recognizer) ExtractEntities(text string) models.Entities {
	ents := models.NewEntities()
	ents.Medications = append(ents.Medications, r.ExtractMedications(text)...)
	ents.Symptoms = append(ents.Symptoms, matchLexicon(r.symptoms, text)...)
	ents.Diet = append(ents.Diet, matchLexicon(r.diet, text)...)
	return ents
}

// ExtractMedications parses text line by line, dropping repeats of the same
// (name, dose, frequency) triple.
func (r *Recognizer) ExtractMedications(text string) []models.Medication {
	var meds []models.Medication
	seen := make(map[[3]string]struct{})

	for _, line := range splitLines(text) {
		if trimSpace(line) == "" {
			continue
		}
		med, ok := r.ParseLine(line)
		if !ok {
			continue
		}
		key := [3]string{strings.ToLower(med.Name), med.Dose, med.Freq}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		meds = append(meds, med)
	}
	return meds
}

// ParseLine turns a single prescription line into a Medication. It reports false
// for boilerplate and for lines without any dose, frequency or dosage form.
func (r *Recognizer) ParseLine(line string) (models.Medication, bool) {
	s := NormalizeLine(line)
	if LooksLikeAdminText(s) {
		return models.Medication{}, false
	}

	freqMatch := freqRe.submatch(s)
	doseMatch := doseRe.submatch(s)
	if freqMatch == nil && doseMatch == nil && !formRe.match(s) {
		return models.Medication{}, false
	}

	var freq, dose string
	if freqMatch != nil {
		freq = strings.ToUpper(freqMatch[1])
	}
	if doseMatch != nil {
		if doseMatch[1] != "" {
			dose = doseMatch[2] + " " + strings.ToLower(doseMatch[3])
		} else {
			dose = doseMatch[5] + " " + doseMatch[6]
		}
	}

	left := trimSpace(strings.SplitN(s, "-", 2)[0])
	namePart := left
	if m := nameRe.FindStringSubmatch(left); m != nil {
		namePart = m[1]
	}
	namePart = trimSpace(unitRe.replaceAll(namePart, ""))
	if namePart == "" {
		return models.Medication{}, false
	}

	canon := r.Canonicalize(namePart)
	if LooksLikeAdminText(strings.ToLower(canon)) {
		return models.Medication{}, false
	}

	expanded, ok := FrequencyMap[freq]
	if !ok {
		expanded = freq
	}

	return models.Medication{
		Name:         canon,
		Dose:         dose,
		Freq:         freq,
		FreqExpanded: expanded,
		Route:        routeOf(s),
		Raw:          line,
	}, true
}

func routeOf(s string) string {
	low := strings.ToLower(s)
	switch {
	case strings.Contains(low, "tab"):
		return "Oral (Tablet)"
	case strings.Contains(low, "inj"):
		return "Injection"
	default:
		return "Oral"
	}
}

// Canonicalize maps a possibly misspelled drug name to the canonical list. Names
// with no close match are returned title-cased.
func (r *Recognizer) Canonicalize(name string) string {
	q := strings.Trim(strings.ToLower(name), " .:-")
	if c, ok := r.aliases[q]; ok {
		return c
	}
	for i, c := range r.canonLower {
		if c == q {
			return r.canon[i]
		}
	}
	if i := closeMatch(q, r.canonLower); i >= 0 {
		return r.canon[i]
	}

	for _, tok := range nonWord.Split(q, -1) {
		if utf8.RuneCountInString(tok) <= 2 {
			continue
		}
		if c, ok := r.aliases[tok]; ok {
			return c
		}
		if i := closeMatch(tok, r.canonLower); i >= 0 {
			return r.canon[i]
		}
	}
	return titleCase(name)
}

// closeMatch returns the index of the best candidate whose similarity ratio to
// word reaches the cutoff, or -1. Ties go to the lexically greater candidate.
func closeMatch(word string, candidates []string) int {
	if word == "" {
		return -1
	}
	wordSeq := runeStrings(word)

	best, bestScore := -1, 0.0
	for i, cand := range candidates {
		m := difflib.NewMatcher(runeStrings(cand), wordSeq)
		if m.RealQuickRatio() < closeMatchCutoff || m.QuickRatio() < closeMatchCutoff {
			continue
		}
		score := m.Ratio()
		if score < closeMatchCutoff {
			continue
		}
		if best < 0 || score > bestScore || (score == bestScore && cand > candidates[best]) {
			best, bestScore = i, score
		}
	}
	return best
}

func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// NormalizeLine repairs common OCR confusions in a prescription line.
func NormalizeLine(line string) string {
	s := ocrSlips.Replace(line)
	for _, slip := range unitSlips {
		s = strings.ReplaceAll(s, slip[0], slip[1])
	}
	s = oneTabRe.replaceAll(s, "1 tab")

	s = replaceBetweenDigits(s, "Oo", '0')
	s = replaceBetweenDigits(s, "Il", '1')
	s = replaceBetweenDigits(s, "Zz", '2')

	return trimSpace(spacesRe.ReplaceAllString(s, " "))
}

// replaceBetweenDigits swaps any rune from set that sits directly between two
// digits. Neighbours are judged on the input, not on earlier replacements.
func replaceBetweenDigits(s, set string, to rune) string {
	in := []rune(s)
	if len(in) < 3 {
		return s
	}
	out := make([]rune, len(in))
	copy(out, in)
	for i := 1; i < len(in)-1; i++ {
		if strings.ContainsRune(set, in[i]) && unicode.IsDigit(in[i-1]) && unicode.IsDigit(in[i+1]) {
			out[i] = to
		}
	}
	return string(out)
}

// LooksLikeAdminText reports whether a line is clinic boilerplate rather than a
// medication instruction.
func LooksLikeAdminText(line string) bool {
	low := trimSpace(strings.ToLower(line))
	if low == "" {
		return true
	}
	for _, k := range adminKeywords {
		if strings.Contains(low, k) {
			return true
		}
	}
	// addressy lines: commas but no dose/freq/form
	if strings.Contains(low, ",") && !(doseRe.match(low) || freqRe.match(low) || formRe.match(low)) {
		return true
	}
	// tiny tokens / RX marker
	return tinyRe.MatchString(low)
}

func matchLexicon(terms []lexiconTerm, text string) []string {
	var found []string
	for _, t := range terms {
		if t.re.match(text) {
			found = append(found, t.term)
		}
	}
	return found
}

// titleCase upper-cases every cased rune that follows an uncased one and
// lower-cases the rest, so "50mg tab" becomes "50Mg Tab".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevCased := false
	for _, r := range s {
		if prevCased {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToTitle(r))
		}
		prevCased = unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
	}
	return b.String()
}

// splitLines splits on every line boundary, dropping empty lines.
func splitLines(text string) []string {
	return strings.FieldsFunc(text, isLineBreak)
}

// CanonicalNames returns the recognizer's drug list, sorted.
func (r *Recognizer) CanonicalNames() []string {
	out := append([]string(nil), r.canon...)
	sort.Strings(out)
	return out
}
