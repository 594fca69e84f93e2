package services

import "cashbattle-backend/internal/models"

// Broadcaster pushes per-user state changes to connected clients.
type Broadcaster interface {
	BroadcastBalance(userID string, balance models.Balance)
	BroadcastSession(userID string, view SessionView)
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastBalance(string, models.Balance) {}
func (nopBroadcaster) BroadcastSession(string, SessionView) {}
