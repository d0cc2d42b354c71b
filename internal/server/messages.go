package server

import "github.com/Oliversrensen/TCG-TBD/internal/game"

// clientMessage is the superset of all client -> server messages; Type
// discriminates. In-match intents are re-decoded as game.Action.
type clientMessage struct {
	Type               string `json:"type"`
	Token              string `json:"token,omitempty"`
	Code               string `json:"code,omitempty"`
	CardInstanceID     string `json:"cardInstanceId,omitempty"`
	TargetID           string `json:"targetId,omitempty"`
	AttackerInstanceID string `json:"attackerInstanceId,omitempty"`
	BoardIndex         int    `json:"boardIndex,omitempty"`
}

// Server -> client messages. Shapes mirror the client DTOs; every message
// carries a type discriminator.

type msgConnected struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type msgJoinedQueue struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type msgLeftQueue struct {
	Type string `json:"type"`
}

type msgLobbyCreated struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type msgLobbyJoined struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type msgLobbyError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type msgMatchmakingError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type msgAuthenticated struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type msgAuthError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type msgState struct {
	Type             string          `json:"type"`
	State            *game.GameState `json:"state"`
	PlayerIndex      int             `json:"playerIndex"`
	Error            string          `json:"error,omitempty"`
	OpponentUsername string          `json:"opponentUsername,omitempty"`
}

func connected(sessionID string) msgConnected {
	return msgConnected{
		Type:      "connected",
		SessionID: sessionID,
		Message:   "Connected. Send join_queue to find a match, create_lobby to host, or join_lobby with a code.",
	}
}

func matchmakingError(text string) msgMatchmakingError {
	return msgMatchmakingError{Type: "matchmaking_error", Error: text}
}

func lobbyError(text string) msgLobbyError {
	return msgLobbyError{Type: "lobby_error", Error: text}
}

func authError(text string) msgAuthError {
	return msgAuthError{Type: "auth_error", Error: text}
}
