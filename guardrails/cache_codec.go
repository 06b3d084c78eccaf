package guardrails

import "encoding/json"

// encodeInjectionResult/decodeInjectionResult (de)serialize a cached
// InjectionResult. The Cached flag itself is never persisted — it is set
// by Detect only on a cache hit.
func encodeInjectionResult(r InjectionResult) ([]byte, bool) {
	r.Cached = false
	b, err := json.Marshal(r)
	if err != nil {
		return nil, false
	}
	return b, true
}

func decodeInjectionResult(b []byte) (InjectionResult, bool) {
	var r InjectionResult
	if err := json.Unmarshal(b, &r); err != nil {
		return InjectionResult{}, false
	}
	return r, true
}
