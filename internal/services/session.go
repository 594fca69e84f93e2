package services

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cashbattle-backend/internal/models"
)

// TickInterval is the resolution of the battle race timer.
const TickInterval = 100 * time.Millisecond

var rewardMultiplier = decimal.RequireFromString("1.8")

// RewardFor returns the coin payout for winning a battle with the given fee.
func RewardFor(fee decimal.Decimal) int64 {
	return models.RupeesToCoins(fee.Mul(rewardMultiplier))
}

type SessionState string

const (
	StatePublishing SessionState = "publishing"
	StateSearching  SessionState = "searching"
	StateActive     SessionState = "active"
	StateFinished   SessionState = "finished"
	StateAbandoned  SessionState = "abandoned"
)

func (s SessionState) Terminal() bool {
	return s == StateFinished || s == StateAbandoned
}

type Role string

const (
	RoleCreator  Role = "creator"
	RoleAcceptor Role = "acceptor"
)

// Session is one battle from fee payment to its recorded outcome.
type Session struct {
	mu sync.Mutex

	ID          string
	UserID      string
	Game        GameConfig
	Fee         decimal.Decimal
	Role        Role
	ChallengeID string
	Opponent    Creator

	State        SessionState
	CreatedAt    time.Time
	ReadyAt      time.Time
	StartedAt    time.Time
	LastActivity time.Time
	OpponentTime time.Duration

	task     Task
	elapsed  time.Duration
	outcome  models.Outcome
	reward   int64
	recorded bool
	stop     chan struct{}
}

type SessionView struct {
	ID               string                 `json:"id"`
	GameTitle        string                 `json:"game_title"`
	GameSlug         string                 `json:"game_slug"`
	Role             Role                   `json:"role"`
	State            SessionState           `json:"state"`
	EntryFee         decimal.Decimal        `json:"entry_fee"`
	ChallengeID      string                 `json:"challenge_id,omitempty"`
	OpponentName     string                 `json:"opponent_name,omitempty"`
	OpponentPhoto    string                 `json:"opponent_photo,omitempty"`
	ReadyAt          time.Time              `json:"ready_at"`
	ElapsedMS        int64                  `json:"elapsed_ms"`
	OpponentProgress float64                `json:"opponent_progress"`
	OpponentTimeMS   int64                  `json:"opponent_time_ms,omitempty"`
	Task             map[string]interface{} `json:"task,omitempty"`
	Outcome          models.Outcome         `json:"outcome,omitempty"`
	Reward           int64                  `json:"reward"`
}

// elapsedAt is the player's race time in whole ticks plus penalties.
// Callers hold s.mu.
func (s *Session) elapsedAt(now time.Time) time.Duration {
	if s.State.Terminal() {
		return s.elapsed
	}
	if s.State != StateActive || now.Before(s.StartedAt) {
		return 0
	}
	ticks := now.Sub(s.StartedAt) / TickInterval
	return ticks*TickInterval + s.task.Penalty()
}

// view must be called with s.mu held.
func (s *Session) view(now time.Time) SessionView {
	v := SessionView{
		ID:            s.ID,
		GameTitle:     s.Game.Title,
		GameSlug:      s.Game.Slug,
		Role:          s.Role,
		State:         s.State,
		EntryFee:      s.Fee,
		ChallengeID:   s.ChallengeID,
		OpponentName:  s.Opponent.Name,
		OpponentPhoto: s.Opponent.Photo,
		ReadyAt:       s.ReadyAt,
		Outcome:       s.outcome,
		Reward:        s.reward,
	}

	elapsed := s.elapsedAt(now)
	v.ElapsedMS = elapsed.Milliseconds()

	if s.OpponentTime > 0 && (s.State == StateActive || s.State.Terminal()) {
		progress := float64(elapsed) / float64(s.OpponentTime) * 100
		if progress > 100 {
			progress = 100
		}
		v.OpponentProgress = progress
	}
	if s.State.Terminal() {
		v.OpponentTimeMS = s.OpponentTime.Milliseconds()
	}
	if s.State == StateActive || s.State.Terminal() {
		v.Task = s.task.View()
	}
	return v
}

// judge decides whether an active session is over. Callers hold s.mu.
func (s *Session) judge(now time.Time) (models.Outcome, bool) {
	if s.State != StateActive {
		return "", false
	}

	elapsed := s.elapsedAt(now)
	switch {
	case s.Game.AutoFinishAfter > 0:
		if elapsed >= s.Game.AutoFinishAfter {
			return models.OutcomeWin, true
		}
	case s.task.Failed():
		return models.OutcomeLoss, true
	case s.task.Completed():
		if elapsed < s.OpponentTime {
			return models.OutcomeWin, true
		}
		return models.OutcomeLoss, true
	}
	return "", false
}
