package guardrails

import "regexp"

// PIIKind names one category of personally identifiable information
// PIIMasker can detect and mask.
type PIIKind string

const (
	PIIEmail      PIIKind = "email"
	PIIPhone      PIIKind = "phone"
	PIISSN        PIIKind = "ssn"
	PIICreditCard PIIKind = "credit_card"
)

var piiPatterns = []struct {
	kind        PIIKind
	pattern     *regexp.Regexp
	replacement string
}{
	{PIIEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[EMAIL]"},
	{PIIPhone, regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`), "[PHONE]"},
	{PIISSN, regexp.MustCompile(`\b[0-9]{3}[-\s]?[0-9]{2}[-\s]?[0-9]{4}\b`), "[SSN]"},
	{PIICreditCard, regexp.MustCompile(`\b(?:[0-9]{4}[-\s]?){3}[0-9]{4}\b`), "[CREDIT_CARD]"},
}

// PIIMasker detects and masks personally identifiable information:
// email addresses, phone numbers, social security numbers, and credit
// card numbers. Pattern-based detection like this always carries false
// positive risk (a SSN pattern matches plenty of non-SSN digit runs);
// callers handling genuinely sensitive data should pair this with a
// real PII classifier rather than relying on it alone.
type PIIMasker struct {
	kinds map[PIIKind]bool
}

// NewPIIMasker creates a PIIMasker that acts only on kinds. An empty
// kinds masks every known PIIKind.
func NewPIIMasker(kinds ...PIIKind) *PIIMasker {
	set := make(map[PIIKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	if len(set) == 0 {
		for _, p := range piiPatterns {
			set[p.kind] = true
		}
	}
	return &PIIMasker{kinds: set}
}

// Mask replaces every match of an enabled PIIKind's pattern with its
// placeholder token (e.g. "[EMAIL]"), in the fixed order
// email/phone/ssn/credit_card so overlapping matches resolve
// deterministically.
func (m *PIIMasker) Mask(text string) string {
	for _, p := range piiPatterns {
		if !m.kinds[p.kind] {
			continue
		}
		text = p.pattern.ReplaceAllString(text, p.replacement)
	}
	return text
}

// Detect returns the raw matched text for every enabled PIIKind found
// in text, keyed by kind. A kind with no matches is omitted.
func (m *PIIMasker) Detect(text string) map[PIIKind][]string {
	findings := make(map[PIIKind][]string)
	for _, p := range piiPatterns {
		if !m.kinds[p.kind] {
			continue
		}
		matches := p.pattern.FindAllString(text, -1)
		if len(matches) > 0 {
			findings[p.kind] = matches
		}
	}
	return findings
}
