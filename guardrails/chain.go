package guardrails

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ChainValidator is anything a Chain can compose: the content Validator,
// an InjectionDetector adapter (see NewInjectionChainValidator), or a
// caller's own custom check.
type ChainValidator interface {
	Name() string
	Priority() int
	Validate(ctx context.Context, content string) (*ValidationResult, error)
}

// ChainMode selects how a Chain runs its validators.
type ChainMode string

const (
	ChainModeFailFast   ChainMode = "fail_fast"
	ChainModeCollectAll ChainMode = "collect_all"
	ChainModeParallel   ChainMode = "parallel"
)

// Chain runs an ordered set of ChainValidators and aggregates their
// results. Validators run in ascending Priority order except under
// ChainModeParallel, where order is not meaningful.
type Chain struct {
	mu         sync.RWMutex
	validators []ChainValidator
	mode       ChainMode
}

// NewChain creates a Chain. mode defaults to ChainModeCollectAll if empty.
func NewChain(mode ChainMode) *Chain {
	if mode == "" {
		mode = ChainModeCollectAll
	}
	return &Chain{mode: mode}
}

// Add appends validators to the chain.
func (c *Chain) Add(validators ...ChainValidator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validators = append(c.validators, validators...)
}

func (c *Chain) sorted() []ChainValidator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ChainValidator, len(c.validators))
	copy(out, c.validators)
	sort.Slice(out, func(i, j int) bool { return out[i].Priority() < out[j].Priority() })
	return out
}

// Validate runs every registered validator against content per the
// chain's mode and merges their results. A validator whose result sets
// Tripwire aborts the whole chain with a *TripwireError, even under
// ChainModeCollectAll.
func (c *Chain) Validate(ctx context.Context, content string) (*ValidationResult, error) {
	if c.mode == ChainModeParallel {
		return c.validateParallel(ctx, content)
	}

	validators := c.sorted()
	result := newValidationResult(content)

	for _, v := range validators {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		vResult, err := v.Validate(ctx, content)
		if err != nil {
			return result, err
		}
		if vResult.Tripwire {
			result.Merge(vResult)
			return result, &TripwireError{Detector: v.Name(), Reason: "tripwire validator triggered"}
		}
		result.Merge(vResult)

		if c.mode == ChainModeFailFast && !vResult.IsValid {
			return result, nil
		}
	}
	return result, nil
}

func (c *Chain) validateParallel(ctx context.Context, content string) (*ValidationResult, error) {
	validators := c.sorted()
	result := newValidationResult(content)
	if len(validators) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*ValidationResult, len(validators))
	g, gctx := errgroup.WithContext(ctx)

	var tripwireOnce sync.Once
	var tripwireName string

	for i, v := range validators {
		i, v := i, v
		g.Go(func() error {
			vResult, err := v.Validate(gctx, content)
			if err != nil {
				return err
			}
			results[i] = vResult
			if vResult.Tripwire {
				tripwireOnce.Do(func() {
					tripwireName = v.Name()
					cancel()
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	for _, vResult := range results {
		result.Merge(vResult)
	}
	if tripwireName != "" {
		return result, &TripwireError{Detector: tripwireName, Reason: "tripwire validator triggered"}
	}
	return result, nil
}

// injectionChainValidator adapts an InjectionDetector to ChainValidator:
// is_injection becomes an invalid result, and a very high combined
// confidence (>= 0.95) trips the whole chain rather than merely warning.
type injectionChainValidator struct {
	detector *InjectionDetector
	priority int
}

// NewInjectionChainValidator wraps detector so it can be added to a Chain
// alongside the content Validator.
func NewInjectionChainValidator(detector *InjectionDetector, priority int) ChainValidator {
	return &injectionChainValidator{detector: detector, priority: priority}
}

// contentChainValidator adapts *Validator (whose Validate does not return
// an error) to ChainValidator.
type contentChainValidator struct {
	v *Validator
}

// NewContentChainValidator wraps v so it can be added to a Chain.
func NewContentChainValidator(v *Validator) ChainValidator {
	return &contentChainValidator{v: v}
}

func (c *contentChainValidator) Name() string  { return c.v.Name() }
func (c *contentChainValidator) Priority() int { return c.v.Priority() }
func (c *contentChainValidator) Validate(ctx context.Context, content string) (*ValidationResult, error) {
	return c.v.ValidateChain(ctx, content)
}

func (v *injectionChainValidator) Name() string  { return "injection_detector" }
func (v *injectionChainValidator) Priority() int { return v.priority }

func (v *injectionChainValidator) Validate(ctx context.Context, content string) (*ValidationResult, error) {
	injResult, err := v.detector.Detect(ctx, content)
	if err != nil {
		return nil, err
	}
	result := newValidationResult(content)
	result.SanitizedText = content
	if injResult.IsInjection {
		result.IsValid = false
		result.Warnings = append(result.Warnings, "prompt injection detected")
		result.Metadata["injection_confidence"] = injResult.Confidence
		if injResult.Confidence >= 0.95 {
			result.Tripwire = true
		}
	}
	return result, nil
}
