package service

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/okian/levelup/internal/domain/model"
)

// Producer field names, reported when a value had to be coerced.
const (
	FieldCompleted = "completed"
	FieldScore     = "score"
	FieldStars     = "stars"
	FieldBadges    = "badges"
)

// MaxStars is the highest star rating an activity can award.
const MaxStars = 3

// MaxScore caps producer scores, typed or raw.
const MaxScore = math.MaxInt32

// Sanitize clamps a typed producer result into range. It returns the names
// of the fields it had to change.
func Sanitize(res model.ActivityResult) (model.ActivityResult, []string) {
	var malformed []string
	out := model.ActivityResult{Completed: res.Completed}

	out.Score = min(max(res.Score, 0), MaxScore)
	if out.Score != res.Score {
		malformed = append(malformed, FieldScore)
	}

	out.Stars = clampStars(res.Stars)
	if out.Stars != res.Stars {
		malformed = append(malformed, FieldStars)
	}

	var changed bool
	out.Badges, changed = cleanBadges(res.Badges)
	if changed {
		malformed = append(malformed, FieldBadges)
	}
	return out, malformed
}

// SanitizeRaw coerces an untyped producer result. Missing fields take their
// zero value silently; fields of the wrong type are coerced where a
// reasonable reading exists and zeroed otherwise.
func SanitizeRaw(raw model.RawResult) (model.ActivityResult, []string) {
	var malformed []string
	var res model.ActivityResult

	if raw.Completed != nil {
		v, ok := coerceBool(raw.Completed)
		res.Completed = v
		if !ok {
			malformed = append(malformed, FieldCompleted)
		}
	}

	if raw.Score != nil {
		v, ok := coerceInt(raw.Score)
		res.Score = min(max(v, 0), MaxScore)
		if !ok || res.Score != v {
			malformed = append(malformed, FieldScore)
		}
	}

	if raw.Stars != nil {
		v, ok := coerceInt(raw.Stars)
		res.Stars = clampStars(v)
		if !ok || res.Stars != v {
			malformed = append(malformed, FieldStars)
		}
	}

	if raw.Badges != nil {
		names, ok := coerceStrings(raw.Badges)
		var changed bool
		res.Badges, changed = cleanBadges(names)
		if !ok || changed {
			malformed = append(malformed, FieldBadges)
		}
	} else {
		res.Badges = []string{}
	}

	return res, malformed
}

func clampStars(n int) int {
	return min(max(n, 0), MaxStars)
}

// cleanBadges trims names, drops empty ones and duplicates. changed is true
// when the output differs from the input.
func cleanBadges(in []string) (out []string, changed bool) {
	out = make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, b := range in {
		name := strings.TrimSpace(b)
		if name != b {
			changed = true
		}
		if name == "" {
			changed = true
			continue
		}
		if _, dup := seen[name]; dup {
			changed = true
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, changed
}

// coerceBool accepts booleans, "true"/"false" and numbers (non-zero is true).
func coerceBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	default:
		if f, ok := toFloat(v); ok {
			return f != 0, true
		}
		return false, false
	}
}

// coerceInt accepts numbers and numeric strings; fractions are truncated.
// The second result is false when v had no numeric reading at all.
func coerceInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		if s, isString := v.(string); isString {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return 0, false
			}
			f, ok = parsed, true
		}
	}
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Trunc(f)
	if f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if f < math.MinInt32 {
		return math.MinInt32, true
	}
	return int(f), true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// coerceStrings accepts string slices and JSON arrays; non-string elements
// are dropped.
func coerceStrings(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		ok := true
		for _, item := range t {
			s, isString := item.(string)
			if !isString {
				ok = false
				continue
			}
			out = append(out, s)
		}
		return out, ok
	default:
		return nil, false
	}
}
