package repository

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/okian/levelup/internal/domain/model"
	"github.com/okian/levelup/internal/domain/progress"
)

// Stored field names.
const (
	fieldLevel       = "level"
	fieldExperience  = "experience"
	fieldPerActivity = "perActivity"
	// legacyPerActivity is the name older clients used for perActivity.
	legacyPerActivity = "gameProgress"
)

// Encode serializes a record in its stored layout.
func Encode(rec model.Record) ([]byte, error) {
	if rec.TotalBadges == nil {
		rec.TotalBadges = []string{}
	}
	if rec.PerActivity == nil {
		rec.PerActivity = map[string]model.ActivityEntry{}
	}
	return json.Marshal(rec)
}

// Decode parses a stored payload.
//
// A payload that is not a JSON object is corrupt and yields ErrCorruptRecord.
// Otherwise missing or malformed fields are defaulted one by one and their
// names are returned in defaulted; unknown fields are ignored. Derived
// totals are always recomputed from the per-activity entries.
func Decode(payload []byte) (rec model.Record, defaulted []string, err error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return model.Default(), nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	if fields == nil {
		return model.Default(), nil, fmt.Errorf("%w: payload is null", ErrCorruptRecord)
	}

	rec = model.Default()
	if raw, ok := fields[fieldLevel]; ok {
		if v, ok := decodeInt(raw); ok {
			rec.Level = v
		} else {
			defaulted = append(defaulted, fieldLevel)
		}
	}
	if raw, ok := fields[fieldExperience]; ok {
		if v, ok := decodeInt(raw); ok {
			rec.Experience = v
		} else {
			defaulted = append(defaulted, fieldExperience)
		}
	}

	raw, ok := fields[fieldPerActivity]
	name := fieldPerActivity
	if !ok {
		raw, ok = fields[legacyPerActivity]
		name = legacyPerActivity
	}
	if ok {
		entries, bad := decodeEntries(raw)
		if entries == nil {
			defaulted = append(defaulted, name)
		} else {
			rec.PerActivity = entries
			for _, id := range bad {
				defaulted = append(defaulted, name+"."+id)
			}
		}
	}

	return progress.Normalize(rec), defaulted, nil
}

// decodeEntries returns nil when raw is not an object. Entries that are not
// objects are dropped and their ids returned in bad; malformed fields inside
// an entry are zeroed.
func decodeEntries(raw json.RawMessage) (map[string]model.ActivityEntry, []string) {
	var items map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, nil
	}
	out := make(map[string]model.ActivityEntry, len(items))
	var bad []string
	for id, item := range items {
		var f map[string]json.RawMessage
		if err := json.Unmarshal(item, &f); err != nil || f == nil {
			bad = append(bad, id)
			continue
		}
		e := model.ActivityEntry{Badges: []string{}}
		if v, ok := f["completed"]; ok {
			_ = json.Unmarshal(v, &e.Completed)
		}
		if v, ok := f["score"]; ok {
			e.Score, _ = decodeInt(v)
		}
		if v, ok := f["stars"]; ok {
			e.Stars, _ = decodeInt(v)
		}
		if v, ok := f["badges"]; ok {
			e.Badges = decodeBadges(v)
		}
		out[id] = e
	}
	return out, bad
}

// decodeInt accepts integral and fractional JSON numbers; fractions are
// truncated toward zero. Every value Encode can write decodes.
func decodeInt(raw json.RawMessage) (int, bool) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n), true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int(f), true
}

// decodeBadges keeps the string elements of a JSON array.
func decodeBadges(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		var s string
		if err := json.Unmarshal(it, &s); err == nil && s != "" {
			out = append(out, s)
		}
	}
	return out
}
