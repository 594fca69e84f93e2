package store

import "fmt"

const (
	KeyUserProfile        = "user:%s:profile"
	KeyUserBattleHistory  = "user:%s:battle_history"
	KeyUserTransactions   = "user:%s:transactions"
	KeyUserRedeemRequests = "user:%s:redeem_requests"
	KeyUserClaim          = "user:%s:claim:%s"
	KeyUserSession        = "user:%s:session:%s"
	KeyGlobalChallenges   = "global_challenges"

	MaxBattleHistory  = 50
	MaxTransactions   = 100
	MaxRedeemRequests = 100
	MaxChallenges     = 20
)

func UserProfileKey(userID string) string {
	return fmt.Sprintf(KeyUserProfile, userID)
}

func BattleHistoryKey(userID string) string {
	return fmt.Sprintf(KeyUserBattleHistory, userID)
}

func TransactionsKey(userID string) string {
	return fmt.Sprintf(KeyUserTransactions, userID)
}

func RedeemRequestsKey(userID string) string {
	return fmt.Sprintf(KeyUserRedeemRequests, userID)
}

func ClaimKey(userID, kind string) string {
	return fmt.Sprintf(KeyUserClaim, userID, kind)
}

func SessionKey(userID, sessionID string) string {
	return fmt.Sprintf(KeyUserSession, userID, sessionID)
}
