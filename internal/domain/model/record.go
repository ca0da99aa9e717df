// Package model contains domain models passed between layers.
package model

import "sort"

// Record defaults.
const (
	DefaultLevel        = 1
	ExperiencePerLevel  = 100
	ExperienceScoreUnit = 10
)

// ActivityEntry is the stored outcome of the latest run of one activity.
type ActivityEntry struct {
	Completed bool     `json:"completed"`
	Score     int      `json:"score"`
	Stars     int      `json:"stars"`
	Badges    []string `json:"badges"`
}

// Record is the account-level aggregate of every reported activity.
//
// TotalStars and TotalBadges are derived from PerActivity and are never
// incremented on their own.
type Record struct {
	Level       int                      `json:"level"`
	Experience  int                      `json:"experience"`
	TotalStars  int                      `json:"totalStars"`
	TotalBadges []string                 `json:"totalBadges"`
	PerActivity map[string]ActivityEntry `json:"perActivity"`
}

// Default returns the record used when nothing has been stored yet.
func Default() Record {
	return Record{
		Level:       DefaultLevel,
		Experience:  0,
		TotalStars:  0,
		TotalBadges: []string{},
		PerActivity: map[string]ActivityEntry{},
	}
}

// Clone returns a deep copy so callers can never alias stored state.
func (r Record) Clone() Record {
	out := Record{
		Level:       r.Level,
		Experience:  r.Experience,
		TotalStars:  r.TotalStars,
		TotalBadges: cloneStrings(r.TotalBadges),
		PerActivity: make(map[string]ActivityEntry, len(r.PerActivity)),
	}
	for id, e := range r.PerActivity {
		out.PerActivity[id] = e.Clone()
	}
	return out
}

// ActivityIDs returns the reported activity ids in ascending order.
func (r Record) ActivityIDs() []string {
	ids := make([]string, 0, len(r.PerActivity))
	for id := range r.PerActivity {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CompletedCount returns how many stored activities are marked completed.
func (r Record) CompletedCount() int {
	n := 0
	for _, e := range r.PerActivity {
		if e.Completed {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the entry.
func (e ActivityEntry) Clone() ActivityEntry {
	e.Badges = cloneStrings(e.Badges)
	return e
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
