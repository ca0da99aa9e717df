// Package rewards derives the stars and badges an activity run earns and
// summarizes an account record for dashboards.
package rewards

import (
	"math"

	"github.com/okian/levelup/internal/domain/model"
)

// Score thresholds for stars and tier badges.
const (
	threeStarScore = 80
	twoStarScore   = 60
	oneStarScore   = 40

	expertScore       = 90
	advancedScore     = 70
	intermediateScore = 50

	// DefaultTotalActivities is the number of activities offered to a user.
	DefaultTotalActivities = 8
)

// Badge names.
const (
	BadgeExpert       = "Expert"
	BadgeAdvanced     = "Advanced"
	BadgeIntermediate = "Intermediate"
	BadgeBeginner     = "Beginner"
	BadgeFirstTimer   = "First Timer"
)

// Reward is what a single activity run earns.
type Reward struct {
	Stars  int      `json:"stars"`
	Badges []string `json:"badges"`
}

// Evaluate computes the reward for a run with the given score. firstTime
// adds the first-timer badge for activities never reported before.
func Evaluate(score int, firstTime bool) Reward {
	r := Reward{Stars: Stars(score), Badges: []string{TierBadge(score)}}
	if firstTime {
		r.Badges = append(r.Badges, BadgeFirstTimer)
	}
	return r
}

// Stars maps a score to 0..3 stars.
func Stars(score int) int {
	switch {
	case score >= threeStarScore:
		return 3
	case score >= twoStarScore:
		return 2
	case score >= oneStarScore:
		return 1
	default:
		return 0
	}
}

// TierBadge maps a score to its skill tier badge.
func TierBadge(score int) string {
	switch {
	case score >= expertScore:
		return BadgeExpert
	case score >= advancedScore:
		return BadgeAdvanced
	case score >= intermediateScore:
		return BadgeIntermediate
	default:
		return BadgeBeginner
	}
}

// ForActivity evaluates a run of activityID against the current record.
func ForActivity(rec model.Record, activityID string, score int) Reward {
	_, seen := rec.PerActivity[activityID]
	return Evaluate(score, !seen)
}

// Summary is the dashboard view of an account record.
type Summary struct {
	Level               int `json:"level"`
	Experience          int `json:"experience"`
	ExperiencePercent   int `json:"experience_percent"`
	TotalStars          int `json:"total_stars"`
	BadgeCount          int `json:"badge_count"`
	CompletedActivities int `json:"completed_activities"`
	TotalActivities     int `json:"total_activities"`
	CompletionPercent   int `json:"completion_percent"`
}

// Summarize builds a Summary. totalActivities <= 0 falls back to
// DefaultTotalActivities.
func Summarize(rec model.Record, totalActivities int) Summary {
	if totalActivities <= 0 {
		totalActivities = DefaultTotalActivities
	}
	completed := rec.CompletedCount()
	return Summary{
		Level:               rec.Level,
		Experience:          rec.Experience,
		ExperiencePercent:   rec.Experience * 100 / model.ExperiencePerLevel,
		TotalStars:          rec.TotalStars,
		BadgeCount:          len(rec.TotalBadges),
		CompletedActivities: completed,
		TotalActivities:     totalActivities,
		CompletionPercent:   int(math.Round(float64(completed) / float64(totalActivities) * 100)),
	}
}
