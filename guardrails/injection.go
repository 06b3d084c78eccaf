package guardrails

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/shieldkit/shieldkit/cache"
)

// injectionPattern is one curated (regex, attack_type, base_confidence)
// tuple in the pattern layer.
type injectionPattern struct {
	pattern     *regexp.Regexp
	attackType  string
	description string
	baseConfidence float64
}

var injectionPatterns = []injectionPattern{
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?|guidelines?)`), "instruction_override", "attempt to ignore previous instructions", 0.9},
	{regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above|earlier)\s*(instructions?|prompts?|rules?)?`), "instruction_override", "attempt to disregard instructions", 0.9},
	{regexp.MustCompile(`(?i)forget\s+(everything|all|what)\s*(you\s+)?(know|learned|were\s+told)?`), "instruction_override", "attempt to reset model context", 0.85},
	{regexp.MustCompile(`(?i)(new|different|updated|override)\s+instructions?`), "instruction_override", "attempt to inject new instructions", 0.7},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|the)?`), "role_manipulation", "attempt to change model role", 0.6},
	{regexp.MustCompile(`(?i)act\s+as\s+(if\s+you\s+are\s+)?(a|an|the)?`), "role_manipulation", "attempt to change model behavior", 0.5},
	{regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are)\s+(a|an|the)?`), "role_manipulation", "attempt to make model pretend", 0.5},
	{regexp.MustCompile(`(?i)^\s*system\s*:\s*`), "role_marker", "system role marker injection", 0.85},
	{regexp.MustCompile(`(?i)<\s*system\s*>`), "role_marker", "XML system tag injection", 0.85},
	{regexp.MustCompile(`(?i)\[\s*INST\s*\]`), "role_marker", "instruction tag injection", 0.7},
	{regexp.MustCompile(`(?i)(do\s+)?anything\s+now`), "jailbreak", "DAN-style jailbreak attempt", 0.9},
	{regexp.MustCompile(`(?i)jailbreak`), "jailbreak", "explicit jailbreak mention", 0.8},
	{regexp.MustCompile(`(?i)---+\s*(system|instructions?|rules?)\s*---+`), "delimiter_escape", "dash-delimited injection attempt", 0.7},
	{regexp.MustCompile(`(?i)```\s*(system|instructions?)`), "delimiter_escape", "code-fence delimiter escape", 0.7},
}

var roleMarkerPattern = regexp.MustCompile(`(?i)(^|\n)\s*(system|assistant|user)\s*:`)
var instructionWordPattern = regexp.MustCompile(`(?i)\b(ignore|disregard|override|instructions?|rules?|prompt|system)\b`)
var markdownDelimiterPattern = regexp.MustCompile("```|\\*\\*|__|~~~")
var base64ishPattern = regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`)
var selfReferentialPattern = regexp.MustCompile(`(?i)(are\s+you\s+(an?\s+)?(ai|language\s+model|gpt)|what\s+(model|version)\s+are\s+you|what\s+is\s+your\s+system\s+prompt)`)

// InjectionDetectorConfig configures an InjectionDetector.
type InjectionDetectorConfig struct {
	Sensitivity Sensitivity
	Threshold   float64 // combined confidence at/above which is_injection is true; default 0.7
	CacheTTL    time.Duration
}

// DefaultInjectionDetectorConfig returns production defaults.
func DefaultInjectionDetectorConfig() InjectionDetectorConfig {
	return InjectionDetectorConfig{Sensitivity: SensitivityStandard, Threshold: 0.7, CacheTTL: 5 * time.Minute}
}

// LLMLayer is an optional third scoring layer callers may wire in
// (spec's "optional LLM layer"). This package never implements one
// itself: LLM client SDKs are an external collaborator.
type LLMLayer interface {
	Score(ctx context.Context, content string) (confidence float64, err error)
}

// InjectionDetector scans content for prompt injection using a
// deterministic pattern layer and a heuristic layer, combining both into
// one confidence score. Results may be cached by content hash.
type InjectionDetector struct {
	sensitivity Sensitivity
	threshold   float64
	llm         LLMLayer
	cacheTTL    time.Duration
	resultCache cache.Backend
	logger      *zap.Logger
}

// NewInjectionDetector creates an InjectionDetector. resultCache may be
// nil to disable caching.
func NewInjectionDetector(cfg InjectionDetectorConfig, resultCache cache.Backend, logger *zap.Logger) *InjectionDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultInjectionDetectorConfig().Threshold
	}
	if cfg.Sensitivity == "" {
		cfg.Sensitivity = SensitivityStandard
	}
	return &InjectionDetector{
		sensitivity: cfg.Sensitivity,
		threshold:   cfg.Threshold,
		cacheTTL:    cfg.CacheTTL,
		resultCache: resultCache,
		logger:      logger,
	}
}

// WithLLMLayer attaches an optional third scoring layer.
func (d *InjectionDetector) WithLLMLayer(l LLMLayer) *InjectionDetector {
	d.llm = l
	return d
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Detect scores content for prompt injection and returns a combined
// verdict across all configured layers.
func (d *InjectionDetector) Detect(ctx context.Context, content string) (InjectionResult, error) {
	key := contentHash(content)
	if d.resultCache != nil {
		if cached, err := d.resultCache.Get(ctx, key); err == nil {
			if res, ok := decodeInjectionResult(cached); ok {
				res.Cached = true
				return res, nil
			}
		}
	}

	patternMatches, patternConfidence := d.scorePatternLayer(content)
	heuristicScore, signals := d.scoreHeuristicLayer(content)

	layerConfidences := []float64{patternConfidence, heuristicScore}
	if d.llm != nil {
		llmConfidence, err := d.llm.Score(ctx, content)
		if err != nil {
			d.logger.Warn("llm injection layer failed, continuing without it", zap.Error(err))
		} else {
			layerConfidences = append(layerConfidences, llmConfidence)
		}
	}

	mean, max := meanMax(layerConfidences)
	combined := 0.6*mean + 0.4*max

	result := InjectionResult{
		IsInjection:      combined >= d.threshold,
		Confidence:       combined,
		PatternMatches:   patternMatches,
		HeuristicScore:   heuristicScore,
		HeuristicSignals: signals,
	}

	if d.resultCache != nil {
		if encoded, ok := encodeInjectionResult(result); ok {
			_ = d.resultCache.Set(ctx, key, encoded, d.cacheTTL)
		}
	}
	return result, nil
}

func meanMax(values []float64) (mean, max float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
		if v > max {
			max = v
		}
	}
	return sum / float64(len(values)), max
}

// scorePatternLayer matches content against the curated pattern set. Each
// match's confidence is adjusted by sensitivity (LOW suppresses by
// +0.2 toward zero risk, i.e. subtracts; HIGH amplifies by -0.2, i.e.
// adds) and the layer's confidence is the maximum adjusted confidence
// among matches, per the spec's pattern-layer rule.
func (d *InjectionDetector) scorePatternLayer(content string) ([]InjectionMatch, float64) {
	var matches []InjectionMatch
	maxConfidence := 0.0

	adjust := 0.0
	switch d.sensitivity {
	case SensitivityLow:
		adjust = -0.2
	case SensitivityHigh:
		adjust = 0.2
	}

	for _, p := range injectionPatterns {
		locs := p.pattern.FindAllStringIndex(content, -1)
		for _, loc := range locs {
			confidence := clamp01(p.baseConfidence + adjust)
			matches = append(matches, InjectionMatch{
				AttackType:  p.attackType,
				Description: p.description,
				Confidence:  confidence,
				Position:    loc[0],
				MatchedText: content[loc[0]:loc[1]],
			})
			if confidence > maxConfidence {
				maxConfidence = confidence
			}
		}
	}
	return matches, maxConfidence
}

// scoreHeuristicLayer sums the additive signals named in the spec, clamps
// to [0,1], then sensitivity-scales (LOW x0.7, HIGH x1.3).
func (d *InjectionDetector) scoreHeuristicLayer(content string) (float64, []string) {
	if content == "" {
		return 0, nil
	}

	var signals []string
	score := 0.0

	if ratio := specialCharRatio(content); ratio > 0.3 {
		score += 0.2
		signals = append(signals, "high special-character ratio")
	}
	if len(roleMarkerPattern.FindAllString(content, -1)) >= 2 {
		score += 0.25
		signals = append(signals, "multiple role markers")
	}
	if instructionWordDensity(content) > 0.08 {
		score += 0.2
		signals = append(signals, "high instruction-word density")
	}
	if len(markdownDelimiterPattern.FindAllString(content, -1)) >= 3 {
		score += 0.15
		signals = append(signals, "many markdown delimiters")
	}
	if loc := base64ishPattern.FindStringIndex(content); loc != nil {
		score += 0.15
		signals = append(signals, "long base64-like run")
	}
	if isFragmentedLineStructure(content) {
		score += 0.1
		signals = append(signals, "fragmented line structure")
	}
	if selfReferentialPattern.MatchString(content) {
		score += 0.15
		signals = append(signals, "self-referential question about the model")
	}

	score = clamp01(score)
	switch d.sensitivity {
	case SensitivityLow:
		score *= 0.7
	case SensitivityHigh:
		score *= 1.3
	}
	return clamp01(score), signals
}

func specialCharRatio(content string) float64 {
	total := 0
	special := 0
	for _, r := range content {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			continue
		}
		special++
	}
	if total == 0 {
		return 0
	}
	return float64(special) / float64(total)
}

func instructionWordDensity(content string) float64 {
	words := strings.Fields(content)
	if len(words) == 0 {
		return 0
	}
	hits := len(instructionWordPattern.FindAllString(content, -1))
	return float64(hits) / float64(len(words))
}

func isFragmentedLineStructure(content string) bool {
	lines := strings.Split(content, "\n")
	if len(lines) < 4 {
		return false
	}
	short := 0
	for _, l := range lines {
		if len(strings.TrimSpace(l)) > 0 && len(strings.TrimSpace(l)) <= 3 {
			short++
		}
	}
	return float64(short)/float64(len(lines)) > 0.4
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
