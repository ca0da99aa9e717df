// Package progress folds activity results into the account-level record.
//
// Every function here is pure: inputs are never mutated and the same input
// always produces the same output. Producer input is assumed to be already
// sanitized by the reporting facade; stars are not clamped here.
package progress

import (
	"math"
	"sort"

	"github.com/okian/levelup/internal/domain/model"
)

// Outcome is the result of folding one activity result into a record.
type Outcome struct {
	Record           model.Record
	LevelsGained     int
	ExperienceGained int
}

// LeveledUp reports whether the fold crossed at least one level boundary.
func (o Outcome) LeveledUp() bool { return o.LevelsGained > 0 }

// Fold replaces the entry for activityID with res and recomputes every
// derived value of the record.
func Fold(current model.Record, activityID string, res model.ActivityResult) Outcome {
	next := current.Clone()

	// Full overwrite at activity granularity: replays never accumulate.
	next.PerActivity[activityID] = res.Entry()
	next.TotalStars, next.TotalBadges = Totals(next.PerActivity)

	gain := ExperienceGain(res.Score)
	level, exp, gained := ResolveLevel(current.Level, current.Experience+gain)
	next.Level = level
	next.Experience = exp

	return Outcome{
		Record:           next,
		LevelsGained:     gained,
		ExperienceGained: gain,
	}
}

// ExperienceGain converts a score into experience points.
func ExperienceGain(score int) int {
	if score <= 0 {
		return 0
	}
	return score / model.ExperienceScoreUnit
}

// ResolveLevel folds raw experience into whole levels. The returned
// experience is always in [0, ExperiencePerLevel) for non-negative input,
// however large raw is.
func ResolveLevel(level, raw int) (newLevel, experience, gained int) {
	if raw < 0 {
		raw = 0
	}
	gained = raw / model.ExperiencePerLevel
	if gained > math.MaxInt-level {
		return math.MaxInt, raw % model.ExperiencePerLevel, gained
	}
	return level + gained, raw % model.ExperiencePerLevel, gained
}

// Totals computes the derived star sum and badge union of a per-activity map.
//
// Badges are ordered by activity id, then by first occurrence within the
// activity, so the union is deterministic for a given map.
func Totals(perActivity map[string]model.ActivityEntry) (int, []string) {
	ids := make([]string, 0, len(perActivity))
	for id := range perActivity {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stars := 0
	seen := make(map[string]struct{})
	badges := []string{}
	for _, id := range ids {
		e := perActivity[id]
		stars += e.Stars
		for _, b := range e.Badges {
			if _, ok := seen[b]; ok {
				continue
			}
			seen[b] = struct{}{}
			badges = append(badges, b)
		}
	}
	return stars, badges
}

// Normalize repairs a record decoded from storage: it re-derives totals,
// folds experience overflow into level and lifts out-of-range values to
// their floor. Normalize of a valid record returns an equal record.
func Normalize(rec model.Record) model.Record {
	out := rec.Clone()
	for id, e := range out.PerActivity {
		e.Badges = UniqueBadges(e.Badges)
		out.PerActivity[id] = e
	}
	if out.Level < model.DefaultLevel {
		out.Level = model.DefaultLevel
	}
	out.Level, out.Experience, _ = ResolveLevel(out.Level, out.Experience)
	out.TotalStars, out.TotalBadges = Totals(out.PerActivity)
	return out
}

// UniqueBadges drops duplicates while keeping first-occurrence order.
func UniqueBadges(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, b := range in {
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}

// Verify reports whether the derived invariants hold for rec.
func Verify(rec model.Record) bool {
	if rec.Level < model.DefaultLevel {
		return false
	}
	if rec.Experience < 0 || rec.Experience >= model.ExperiencePerLevel {
		return false
	}
	stars, badges := Totals(rec.PerActivity)
	if stars != rec.TotalStars || len(badges) != len(rec.TotalBadges) {
		return false
	}
	want := make(map[string]struct{}, len(badges))
	for _, b := range badges {
		want[b] = struct{}{}
	}
	for _, b := range rec.TotalBadges {
		if _, ok := want[b]; !ok {
			return false
		}
		// a duplicate would hide a missing badge behind an equal length
		delete(want, b)
	}
	return true
}
