package testevents

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/levelup/internal/domain/rewards"
	"github.com/okian/levelup/pkg/logger"
)

// passScore marks a run as completed.
const passScore = 50

// Score distribution, as {lower bound, width} over 0..100.
var scoreBands = [][2]int{ //nolint:gochecknoglobals // fixed table
	{40, 40},  // average
	{80, 21},  // strong
	{0, 40},   // weak
	{95, 6},   // perfect or near
	{0, 101},  // anything
	{60, 30},  // decent
	{20, 40},  // struggling
	{100, 50}, // bonus rounds above the usual scale
}

// randInt returns a uniform integer in [0, n) using crypto/rand.
func randInt(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// generateEvents creates config.NumEvents events over config.Activities
// activity ids. Roughly config.DuplicateRate percent of them reuse the
// event id and payload of an earlier event.
func generateEvents(ctx context.Context, config *Config, stats *Stats) ([]Event, error) {
	logger.Get().Info(ctx, "generating events",
		logger.Int("numEvents", config.NumEvents),
		logger.Int("activities", config.Activities),
		logger.Int("duplicateRate", config.DuplicateRate))

	if config.NumEvents <= 0 {
		return nil, fmt.Errorf("events must be positive, got %d", config.NumEvents)
	}
	activities := max(config.Activities, 1)

	events := make([]Event, 0, config.NumEvents)
	for i := 0; i < config.NumEvents; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during event generation: %w", err)
		}
		if i > 0 && randInt(PercentageMultiplier) < config.DuplicateRate {
			events = append(events, events[randInt(i)])
			continue
		}
		events = append(events, generateSingleEvent("activity-"+strconv.Itoa(randInt(activities)+1)))
	}

	stats.EventsGenerated = len(events)
	logger.Get().Info(ctx, "generated events successfully", logger.Int("count", len(events)))
	return events, nil
}

// generateSingleEvent builds a fresh event with a varied score.
func generateSingleEvent(activityID string) Event {
	score := generateScore()
	return Event{
		EventID:    uuid.NewString(),
		ActivityID: activityID,
		Completed:  score >= passScore,
		Score:      score,
		Stars:      rewards.Stars(score),
		Badges:     []string{rewards.TierBadge(score)},
	}
}

// generateScore picks a band, then a score inside it.
func generateScore() int {
	band := scoreBands[randInt(len(scoreBands))]
	return band[0] + randInt(band[1])
}
