package services

import (
	"math/rand"
	"time"

	"github.com/gosimple/slug"
)

// GameConfig parameterizes one battle variant.
type GameConfig struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`

	// PublishDelay is how long an own challenge waits for its simulated taker.
	PublishDelay time.Duration `json:"publish_delay"`
	// SearchDelay is the simulated matching time after accepting a challenge.
	SearchDelay time.Duration `json:"search_delay"`

	OpponentMin time.Duration `json:"opponent_min"`
	OpponentMax time.Duration `json:"opponent_max"`

	// AutoFinishAfter finishes the battle as a win once elapsed, with no
	// player input and no opponent race.
	AutoFinishAfter time.Duration `json:"auto_finish_after,omitempty"`

	NewTask func(rng *rand.Rand) Task `json:"-"`
}

func newGame(title string, publish, search, oppMin, oppMax time.Duration, newTask func(*rand.Rand) Task) GameConfig {
	return GameConfig{
		Title:        title,
		Slug:         slug.Make(title),
		PublishDelay: publish,
		SearchDelay:  search,
		OpponentMin:  oppMin,
		OpponentMax:  oppMax,
		NewTask:      newTask,
	}
}

// SampleOpponentTime draws the opponent's finishing time in 100ms steps.
func (g GameConfig) SampleOpponentTime(rng *rand.Rand) time.Duration {
	if g.OpponentMax <= g.OpponentMin {
		return g.OpponentMin
	}
	steps := int64((g.OpponentMax - g.OpponentMin) / TickInterval)
	return g.OpponentMin + time.Duration(rng.Int63n(steps+1))*TickInterval
}

var Catalog = func() []GameConfig {
	ludo := newGame("Ludo Battle", 6*time.Second, 1500*time.Millisecond, 0, 0,
		func(*rand.Rand) Task { return autoTask{} })
	ludo.AutoFinishAfter = 15 * time.Second

	return []GameConfig{
		ludo,
		newGame("Mines Battle", 6*time.Second, 2*time.Second, 10*time.Second, 18*time.Second,
			func(rng *rand.Rand) Task { return newGemTask(rng, 25, 5, 5) }),
		newGame("Island Adventure Battle", 5*time.Second, 1500*time.Millisecond, 8*time.Second, 13*time.Second,
			func(*rand.Rand) Task { return newCounterTask("boss_hits", 40) }),
		newGame("Minesweeper Battle", 5*time.Second, 1500*time.Millisecond, 15*time.Second, 25*time.Second,
			func(rng *rand.Rand) Task { return newSweeperTask(rng, 6, 5) }),
		newGame("Tap Ball Battle", 5*time.Second, 1500*time.Millisecond, 7*time.Second, 12*time.Second,
			func(*rand.Rand) Task { return newCounterTask("taps", 15) }),
		newGame("Memory Match Battle", 5*time.Second, 1500*time.Millisecond, 12*time.Second, 20*time.Second,
			func(rng *rand.Rand) Task { return newMemoryTask(rng) }),
		newGame("Emoji Hunt Battle", 5*time.Second, 1500*time.Millisecond, 6*time.Second, 12*time.Second,
			func(rng *rand.Rand) Task { return newEmojiTask(rng, 5) }),
		newGame("Balloon Pop Battle", 5*time.Second, 1500*time.Millisecond, 10*time.Second, 18*time.Second,
			func(*rand.Rand) Task { return newCounterTask("pops", 15) }),
	}
}()

func GameByTitle(title string) (GameConfig, bool) {
	for _, g := range Catalog {
		if g.Title == title {
			return g, true
		}
	}
	return GameConfig{}, false
}

func GameBySlug(s string) (GameConfig, bool) {
	for _, g := range Catalog {
		if g.Slug == s {
			return g, true
		}
	}
	return GameConfig{}, false
}
