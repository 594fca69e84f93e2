package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cashbattle-backend/internal/models"
	"cashbattle-backend/internal/store"
)

var (
	ErrInvalidPhone   = errors.New("phone number must have at least 10 digits")
	ErrInvalidOTP     = errors.New("otp must have at least 4 digits")
	ErrUnknownMethod  = errors.New("unknown login method")
	ErrSessionExpired = errors.New("session expired or invalid")
)

var nonDigit = regexp.MustCompile(`\D`)

type LoginResult struct {
	Token   string              `json:"token"`
	User    *models.UserAccount `json:"user"`
	Created bool                `json:"created"`
}

// Accounts implements mock login and auth-session bookkeeping.
type Accounts struct {
	ledger *Ledger
	store  *store.Store
	jwt    *JWTService
	clock  clockwork.Clock
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewAccounts(ledger *Ledger, s *store.Store, jwt *JWTService, clock clockwork.Clock, rng *rand.Rand, logger *zap.Logger) *Accounts {
	return &Accounts{
		ledger: ledger,
		store:  s,
		jwt:    jwt,
		clock:  clock,
		logger: logger,
		rng:    rng,
	}
}

func (a *Accounts) newAccount(id, name, email, phone, photo string) *models.UserAccount {
	return &models.UserAccount{
		ID:             id,
		Name:           name,
		Email:          email,
		PhotoURL:       photo,
		PhoneNumber:    phone,
		Coins:          models.WelcomeBonusCoins,
		DepositBalance: decimal.Zero,
		TotalEarned:    models.WelcomeBonusCoins,
		CreatedAt:      a.clock.Now(),
	}
}

func (a *Accounts) Login(ctx context.Context, req *models.LoginRequest) (*LoginResult, error) {
	var candidate *models.UserAccount

	switch req.Method {
	case "google":
		a.mu.Lock()
		n := a.rng.Intn(1000)
		a.mu.Unlock()
		id := "google_" + uuid.NewString()[:8]
		candidate = a.newAccount(id, fmt.Sprintf("Gamer %d", n), id+"@gmail.com", "",
			"https://api.dicebear.com/7.x/avataaars/svg?seed="+id)

	case "phone":
		phone := nonDigit.ReplaceAllString(req.Phone, "")
		if len(phone) < 10 {
			return nil, ErrInvalidPhone
		}
		if len(nonDigit.ReplaceAllString(req.OTP, "")) < 4 {
			return nil, ErrInvalidOTP
		}
		candidate = a.newAccount("mobile_"+phone, "Player "+phone[len(phone)-4:],
			phone+"@cashbattle.com", phone,
			"https://api.dicebear.com/7.x/bottts/svg?seed="+phone)

	default:
		return nil, ErrUnknownMethod
	}

	user, created, err := a.ledger.EnsureAccount(ctx, candidate)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	now := a.clock.Now()
	session := models.UserSession{
		UserID:       user.ID,
		SessionID:    sessionID,
		CreatedAt:    now,
		LastAccessed: now,
	}
	if err := a.store.Set(ctx, store.SessionKey(user.ID, sessionID), session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	token, err := a.jwt.GenerateToken(user.ID, sessionID)
	if err != nil {
		return nil, err
	}

	a.logger.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("method", req.Method),
		zap.Bool("created", created))

	return &LoginResult{Token: token, User: user, Created: created}, nil
}

// Session loads the auth session and refreshes its last-access time.
func (a *Accounts) Session(ctx context.Context, userID, sessionID string) (*models.UserSession, error) {
	var session models.UserSession
	found, err := a.store.Get(ctx, store.SessionKey(userID, sessionID), &session)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSessionExpired
	}

	session.LastAccessed = a.clock.Now()
	if err := a.store.Set(ctx, store.SessionKey(userID, sessionID), session); err != nil {
		a.logger.Warn("failed to refresh session", zap.String("user_id", userID), zap.Error(err))
	}
	return &session, nil
}

func (a *Accounts) Logout(ctx context.Context, userID, sessionID string) error {
	return a.store.Delete(ctx, store.SessionKey(userID, sessionID))
}
