package server

// ============================================================================
// ERROR RESPONSES (game_error)
// ============================================================================
type ErrorMessage struct {
	Message string `json:"message"`
}

type Popup struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// ============================================================================
// LOGIN (login)
// ============================================================================
type LoginRequest struct {
	Username string `json:"username"`
}

type LoginResponse struct {
	OK       bool   `json:"ok"`
	Username string `json:"username,omitempty"`
}

// ============================================================================
// TOKEN REDEMPTION (redeem_token)
// ============================================================================
type RedeemTokenRequest struct {
	Token string `json:"token"`
}

type RedeemTokenResponse struct {
	OK   bool          `json:"ok"`
	Data *TokenPayload `json:"data,omitempty"`
}

// ============================================================================
// CREATE GAME (create_game)
// ============================================================================
type CreateGameRequest struct {
	Name     string `json:"name"`
	GameType string `json:"gameType"`
	Players  int    `json:"players"`
}

type CreateGameResponse struct {
	ID string `json:"id"`
}

// ============================================================================
// JOIN GAME (join_game / join_my_game)
// ============================================================================

// Join failure statuses, reported alongside error=true.
const (
	JoinStatusBadID         = 1
	JoinStatusOwnerMismatch = 2
	JoinStatusFull          = 3
)

type JoinGameRequest struct {
	ID        string `json:"id"`
	OwnerName string `json:"ownerName"`
}

type JoinGameResponse struct {
	Error  bool   `json:"error"`
	Status int    `json:"status,omitempty"`
	URL    string `json:"url,omitempty"`
}

type JoinMyGameRequest struct {
	ID string `json:"id"`
}

type RedirectMessage struct {
	URL string `json:"url"`
}

// ============================================================================
// LOBBY LISTING (my_games)
// ============================================================================
type GameSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	GameType  string `json:"gameType"`
	Capacity  int    `json:"capacity"`
	Connected int    `json:"connected"`
	Locked    bool   `json:"locked"`
	Finished  bool   `json:"finished"`
}

type MyGamesResponse struct {
	Games []GameSummary `json:"games"`
}

// ============================================================================
// SESSION MANAGEMENT (delete_game / kick / lock)
// ============================================================================
type DeleteGameRequest struct {
	ID string `json:"id"`
}

type KickRequest struct {
	Slot int `json:"slot"`
}

type LockRequest struct {
	Locked bool `json:"locked"`
}

// ============================================================================
// BROADCASTS
// ============================================================================
type ClientCount struct {
	Count int `json:"count"`
}
