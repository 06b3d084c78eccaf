package httpmw

import (
	"errors"
	"io"
	"net/http"

	"github.com/shieldkit/shieldkit/guardrails"
)

// ExtractText reads the text from a request that should be validated
// (e.g. a JSON body field, decoded). Implementations must not consume the
// body in a way that prevents the next handler from reading it; wrap
// r.Body before returning if extraction requires draining it.
type ExtractText func(r *http.Request) (string, error)

// Guardrails runs chain against the text extractFn reads from each
// request, rejecting with 400 on an invalid result or a tripwire.
func Guardrails(chain *guardrails.Chain, extractFn ExtractText) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			text, err := extractFn(r)
			if err != nil && !errors.Is(err, io.EOF) {
				writeJSONError(w, http.StatusBadRequest, "invalid_request", "request body could not be read")
				return
			}
			if text == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := chain.Validate(r.Context(), text)
			if err != nil {
				var tripwire *guardrails.TripwireError
				if errors.As(err, &tripwire) {
					writeJSONError(w, http.StatusBadRequest, "input_rejected", "request blocked: "+tripwire.Reason)
					return
				}
				writeJSONError(w, http.StatusInternalServerError, "validation_error", "validation failed")
				return
			}
			if result != nil && !result.IsValid {
				writeJSONError(w, http.StatusBadRequest, "input_rejected", "request failed input validation")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
