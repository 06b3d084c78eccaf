package ratelimit

import (
	"strconv"
	"sync/atomic"
)

// tiebreakSeq disambiguates sliding-window members that land on the same
// millisecond so ZADD never collides two distinct requests into one entry.
var tiebreakSeq uint64

func randomTiebreaker() string {
	n := atomic.AddUint64(&tiebreakSeq, 1)
	return strconv.FormatUint(n, 36)
}

func strconvItoaInt64(v int64) string {
	return strconv.FormatInt(v, 10)
}

// parseFloat reads a Lua script's numeric return value regardless of
// whether go-redis decoded it as a bulk string (tostring(tokens) in the
// script, used to avoid Redis's Lua-to-RESP integer truncation) or as an
// int64 for whole-number token counts.
func parseFloat(v interface{}) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case int64:
		return float64(t)
	case float64:
		return t
	default:
		return 0
	}
}
