package guardrails

import "context"

// BatchValidator runs a single Validator over many inputs, for callers
// that need to validate or filter a batch (e.g. a bulk import, or the
// turns of an incoming conversation) without hand-rolling the loop.
type BatchValidator struct {
	validator *Validator
}

// NewBatchValidator creates a BatchValidator delegating to validator. A
// nil validator falls back to NewValidator(DefaultValidatorConfig(), nil).
func NewBatchValidator(validator *Validator) *BatchValidator {
	if validator == nil {
		validator = NewValidator(DefaultValidatorConfig(), nil)
	}
	return &BatchValidator{validator: validator}
}

// ValidateBatch validates every text in texts independently and returns
// one ValidationResult per input, in order.
func (b *BatchValidator) ValidateBatch(ctx context.Context, texts []string) []*ValidationResult {
	results := make([]*ValidationResult, len(texts))
	for i, text := range texts {
		results[i] = b.validator.Validate(ctx, text)
	}
	return results
}

// FilterValid validates texts and returns only the sanitized form of the
// inputs that passed validation, dropping the rest.
func (b *BatchValidator) FilterValid(ctx context.Context, texts []string) []string {
	results := b.ValidateBatch(ctx, texts)
	kept := make([]string, 0, len(results))
	for _, r := range results {
		if r.IsValid {
			kept = append(kept, r.SanitizedText)
		}
	}
	return kept
}
