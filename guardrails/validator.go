package guardrails

import (
	"context"
	"html"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// ValidatorConfig configures a Validator.
type ValidatorConfig struct {
	MaxLength  int
	Strictness Strictness
	Priority   int // used only when the Validator is added to a Chain
}

// DefaultValidatorConfig returns production defaults.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{MaxLength: 10000, Strictness: Standard}
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

var threatPatterns = []struct {
	threatType  ThreatType
	description string
	pattern     *regexp.Regexp
}{
	{ThreatXSS, "inline script tag", regexp.MustCompile(`(?i)<script[\s>]`)},
	{ThreatXSS, "javascript: URI", regexp.MustCompile(`(?i)javascript:`)},
	{ThreatXSS, "inline event handler", regexp.MustCompile(`(?i)\bon(error|load|click|mouseover)\s*=`)},
	{ThreatSQLInjection, "SQL tautology", regexp.MustCompile(`(?i)(\bor\b|\band\b)\s+['"]?\d+['"]?\s*=\s*['"]?\d+`)},
	{ThreatSQLInjection, "SQL statement terminator", regexp.MustCompile(`(?i);\s*(drop|delete|update|insert)\s+`)},
	{ThreatSQLInjection, "UNION-based injection", regexp.MustCompile(`(?i)\bunion\s+(all\s+)?select\b`)},
	{ThreatSQLInjection, "SQL comment terminator", regexp.MustCompile(`(--|#)\s*$`)},
	{ThreatCommandInject, "shell metacharacter chain", regexp.MustCompile(`[;&|]\s*(rm|cat|curl|wget|nc|bash|sh)\b`)},
	{ThreatCommandInject, "command substitution", regexp.MustCompile("\\$\\(.+\\)|`[^`]+`")},
	{ThreatPathTraversal, "directory traversal", regexp.MustCompile(`\.\./|\.\.\\`)},
	{ThreatPathTraversal, "encoded directory traversal", regexp.MustCompile(`(?i)%2e%2e(%2f|%5c|/)`)},
}

// Validator normalizes and sanitizes untrusted input and scans it for
// static threat patterns. It never invokes a model.
type Validator struct {
	maxLength  int
	strictness Strictness
	priority   int
	logger     *zap.Logger
}

// Name identifies this validator within a Chain.
func (v *Validator) Name() string { return "content_validator" }

// Priority returns this validator's Chain execution priority (lower runs
// first).
func (v *Validator) Priority() int { return v.priority }

// ValidateChain adapts Validate to the ChainValidator interface.
func (v *Validator) ValidateChain(ctx context.Context, content string) (*ValidationResult, error) {
	return v.Validate(ctx, content), nil
}

// NewValidator creates a Validator from cfg. A nil logger defaults to a
// no-op logger.
func NewValidator(cfg ValidatorConfig, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultValidatorConfig().MaxLength
	}
	if cfg.Strictness == "" {
		cfg.Strictness = Standard
	}
	return &Validator{maxLength: cfg.MaxLength, strictness: cfg.Strictness, priority: cfg.Priority, logger: logger}
}

// Validate normalizes and sanitizes content, scans the original input for
// threat patterns (so markup that sanitizing strips is still detected), and
// decides validity from the configured Strictness.
func (v *Validator) Validate(ctx context.Context, content string) *ValidationResult {
	result := newValidationResult(content)

	sanitized := v.sanitize(content)
	result.SanitizedText = sanitized
	result.Metadata["original_length"] = len([]rune(content))
	result.Metadata["sanitized_length"] = len([]rune(sanitized))

	if len([]rune(sanitized)) > v.maxLength {
		result.Warnings = append(result.Warnings, "input exceeds maximum length and was truncated")
		runes := []rune(sanitized)
		sanitized = string(runes[:v.maxLength])
		result.SanitizedText = sanitized
		result.Metadata["truncated"] = true
	}

	for _, tp := range threatPatterns {
		locs := tp.pattern.FindAllStringIndex(content, -1)
		for _, loc := range locs {
			result.Threats = append(result.Threats, ThreatMatch{
				Type:        tp.threatType,
				Description: tp.description,
				Position:    loc[0],
				MatchedText: content[loc[0]:loc[1]],
			})
			result.Warnings = append(result.Warnings, "potential "+string(tp.threatType)+" pattern detected: "+tp.description)
		}
	}

	result.IsValid = v.isValid(result.Threats)
	if !result.IsValid {
		v.logger.Warn("input validation rejected content",
			zap.String("strictness", string(v.strictness)),
			zap.Int("threat_count", len(result.Threats)),
		)
	}
	return result
}

func (v *Validator) isValid(threats []ThreatMatch) bool {
	if len(threats) == 0 {
		return true
	}
	switch v.strictness {
	case Permissive:
		for _, t := range threats {
			if t.Type == ThreatXSS || t.Type == ThreatSQLInjection {
				return false
			}
		}
		return true
	case Strict:
		return false
	default: // Standard
		for _, t := range threats {
			if t.Type == ThreatXSS || t.Type == ThreatSQLInjection || t.Type == ThreatPathTraversal {
				return false
			}
		}
		return true
	}
}

// sanitize applies NFC normalization, control-character stripping, HTML
// tag stripping with entity decoding, and whitespace normalization, in
// that order.
func (v *Validator) sanitize(content string) string {
	normalized := norm.NFC.String(content)

	var stripped strings.Builder
	stripped.Grow(len(normalized))
	for _, r := range normalized {
		if r == '\n' || r == '\t' || r == '\r' {
			stripped.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		stripped.WriteRune(r)
	}

	withoutTags := htmlTagPattern.ReplaceAllString(stripped.String(), "")
	decoded := html.UnescapeString(withoutTags)

	fields := strings.Fields(decoded)
	return strings.Join(fields, " ")
}
