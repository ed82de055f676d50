package cooldown

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

// WaitHint is implemented by responses and errors that carry a server-imposed wait.
type WaitHint interface {
	WaitSeconds() float64
}

// maxSignalDepth bounds how far ExtractWait descends into nested response/data maps.
const maxSignalDepth = 3

// ExtractWait reads a positive waitSeconds from an opaque response or error.
// Recognised shapes are a WaitHint (directly or wrapped in an error chain) and
// decoded JSON maps carrying waitSeconds at the top level or under response/data.
func ExtractWait(signal any) (time.Duration, bool) {
	switch v := signal.(type) {
	case nil:
		return 0, false
	case WaitHint:
		return secondsToDuration(v.WaitSeconds())
	case error:
		var hint WaitHint
		if errors.As(v, &hint) {
			return secondsToDuration(hint.WaitSeconds())
		}
		return 0, false
	case map[string]any:
		return waitFromMap(v, 0)
	case json.RawMessage:
		var m map[string]any
		if err := json.Unmarshal(v, &m); err != nil {
			return 0, false
		}
		return waitFromMap(m, 0)
	}
	return 0, false
}

func waitFromMap(m map[string]any, depth int) (time.Duration, bool) {
	if raw, ok := m["waitSeconds"]; ok {
		if secs, ok := toFloat(raw); ok {
			return secondsToDuration(secs)
		}
		return 0, false
	}
	if depth >= maxSignalDepth {
		return 0, false
	}
	for _, key := range []string{"response", "data"} {
		if nested, ok := m[key].(map[string]any); ok {
			if d, ok := waitFromMap(nested, depth+1); ok {
				return d, true
			}
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func secondsToDuration(secs float64) (time.Duration, bool) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
		return 0, false
	}
	if secs >= float64(math.MaxInt64)/float64(time.Second) {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
