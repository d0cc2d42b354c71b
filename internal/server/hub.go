package server

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/Oliversrensen/TCG-TBD/internal/auth"
	"github.com/Oliversrensen/TCG-TBD/internal/card"
	"github.com/Oliversrensen/TCG-TBD/internal/game"
	"github.com/Oliversrensen/TCG-TBD/internal/session"
	"github.com/Oliversrensen/TCG-TBD/internal/user"
	"go.uber.org/zap"
)

const lobbyCodeLength = 6

// lobbyCodeChars excludes confusable characters (0/O, 1/I).
const lobbyCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const authTimeout = 10 * time.Second

// lobby is a code-addressed rendezvous for exactly two sessions.
type lobby struct {
	code    string
	creator *session.Session
	joiner  *session.Session
}

// match is one active game and its two participants. sessions[i] plays as
// player i.
type match struct {
	id        string
	state     *game.GameState
	sessions  [2]*session.Session
	usernames [2]string
}

// Hub owns every matchmaking and match collection and processes inbound
// events one at a time behind a single mutex. Connection read loops call
// into it; no other goroutine touches the collections.
type Hub struct {
	mu sync.Mutex

	logger   *zap.Logger
	engine   *game.Engine
	catalog  *card.Catalog
	registry *session.Registry
	verifier auth.Verifier
	users    *user.Service
	rng      game.Rand

	queue   []*session.Session
	lobbies map[string]*lobby
	matches map[string]*match
}

// NewHub creates a hub. verifier may be nil when authentication is not
// configured; authenticate requests then fail with an auth_error.
func NewHub(
	engine *game.Engine,
	catalog *card.Catalog,
	registry *session.Registry,
	verifier auth.Verifier,
	users *user.Service,
	rng game.Rand,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		logger:   logger,
		engine:   engine,
		catalog:  catalog,
		registry: registry,
		verifier: verifier,
		users:    users,
		rng:      rng,
		lobbies:  make(map[string]*lobby),
		matches:  make(map[string]*match),
	}
}

// HandleConnect registers a new session and sends the greeting.
func (h *Hub) HandleConnect(conn session.Conn) *session.Session {
	sess := h.registry.Create(conn)
	h.send(sess, connected(sess.ID))
	h.logger.Info("client connected", zap.String("session_id", sess.ID))
	return sess
}

// HandleMessage dispatches one inbound message for a session. Messages from
// a single connection arrive here in receipt order.
func (h *Hub) HandleMessage(sess *session.Session, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.mu.Lock()
		if sess.Status == session.StatusInGame {
			if m, ok := h.matches[sess.MatchID]; ok {
				h.send(sess, msgState{
					Type:             "state",
					State:            m.state,
					PlayerIndex:      sess.PlayerIndex,
					Error:            "Invalid JSON",
					OpponentUsername: m.usernames[game.Opponent(sess.PlayerIndex)],
				})
			}
		} else {
			h.send(sess, matchmakingError("Invalid JSON"))
		}
		h.mu.Unlock()
		return
	}

	// Token verification may call out to the identity provider, so it runs
	// before the hub lock is taken; the status check, identity binding, and
	// reply all happen under the lock like every other dispatch.
	var authRes authResult
	if msg.Type == "authenticate" {
		authRes = h.verifyToken(msg.Token)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if sess.Status == session.StatusInGame {
		h.handleGameMessage(sess, msg)
		return
	}
	if msg.Type == "authenticate" {
		h.completeAuthenticate(sess, authRes)
		return
	}
	h.handleMatchmaking(sess, msg)
}

// HandleDisconnect removes the session from every collection. A participant
// disconnecting mid-match forfeits; the remaining player wins.
func (h *Hub) HandleDisconnect(sess *session.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.registry.Remove(sess.ID)
	h.removeFromQueue(sess)
	h.removeFromLobby(sess)

	if sess.MatchID != "" {
		if m, ok := h.matches[sess.MatchID]; ok {
			other := m.sessions[game.Opponent(sess.PlayerIndex)]
			winner := other.PlayerIndex
			h.endMatch(m, &winner)
		}
		sess.ResetToPending()
	}

	h.logger.Info("client disconnected", zap.String("session_id", sess.ID))
}

// CloseAll closes every live connection; used during shutdown.
func (h *Hub) CloseAll() {
	for _, sess := range h.registry.All() {
		_ = sess.Conn.Close()
	}
}

func (h *Hub) send(sess *session.Session, msg any) {
	if err := sess.Conn.WriteJSON(msg); err != nil {
		h.logger.Warn("send failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
}

// authResult carries the outcome of off-lock token verification into the
// locked completion step.
type authResult struct {
	rec     *user.Record
	failure string
}

// verifyToken resolves a bearer token to a stored user. Runs without the hub
// lock; it never touches hub or session state.
func (h *Hub) verifyToken(token string) authResult {
	if h.verifier == nil {
		return authResult{failure: "Authentication is not configured."}
	}

	identity, err := h.verifier.Verify(token)
	if err != nil {
		return authResult{failure: "Invalid or expired token."}
	}

	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()
	rec, err := h.users.GetOrCreate(ctx, identity.Subject, identity.DisplayName())
	if err != nil {
		h.logger.Error("user lookup failed", zap.Error(err))
		return authResult{failure: "Authentication failed. Try again."}
	}
	return authResult{rec: rec}
}

// completeAuthenticate binds the verified identity and replies. Caller holds
// the hub lock.
func (h *Hub) completeAuthenticate(sess *session.Session, res authResult) {
	if res.failure != "" {
		h.send(sess, authError(res.failure))
		return
	}

	sess.Identity = &session.Identity{UserID: res.rec.ID, Username: res.rec.Username}
	h.send(sess, msgAuthenticated{Type: "authenticated", UserID: res.rec.ID, Username: res.rec.Username})
	h.logger.Info("session authenticated",
		zap.String("session_id", sess.ID),
		zap.String("user_id", res.rec.ID),
	)
}

func (h *Hub) handleMatchmaking(sess *session.Session, msg clientMessage) {
	switch msg.Type {
	case "join_queue":
		h.joinQueue(sess)
	case "leave_queue":
		h.removeFromQueue(sess)
		h.send(sess, msgLeftQueue{Type: "left_queue"})
	case "create_lobby":
		h.createLobby(sess)
	case "join_lobby":
		h.joinLobby(sess, msg.Code)
	case "leave_lobby":
		h.removeFromLobby(sess)
	default:
		h.send(sess, matchmakingError("Unknown action. Send join_queue, create_lobby, or join_lobby."))
	}
}

func (h *Hub) joinQueue(sess *session.Session) {
	if !sess.Authenticated() {
		h.send(sess, matchmakingError("Authenticate before joining the queue."))
		return
	}
	if sess.Status == session.StatusQueued {
		h.send(sess, matchmakingError("Already in queue."))
		return
	}
	if h.identityBusy(sess.Identity.UserID, sess) {
		h.send(sess, matchmakingError("This account is already in a queue, lobby, or match."))
		return
	}

	h.removeFromLobby(sess)
	sess.Status = session.StatusQueued
	h.queue = append(h.queue, sess)
	h.send(sess, msgJoinedQueue{
		Type:    "joined_queue",
		Message: "Waiting for an opponent. You will be matched shortly.",
	})
	h.tryPair()
}

func (h *Hub) removeFromQueue(sess *session.Session) {
	for i, queued := range h.queue {
		if queued == sess {
			h.queue = append(h.queue[:i], h.queue[i+1:]...)
			break
		}
	}
	if sess.Status == session.StatusQueued {
		sess.Status = session.StatusPending
	}
}

// tryPair pops the two oldest queue entries into a new match. Two entries
// sharing an identity are never paired with each other; the younger one is
// re-enqueued at the tail and pairing retries.
func (h *Hub) tryPair() {
	for len(h.queue) >= 2 {
		s0, s1 := h.queue[0], h.queue[1]
		if s0.Identity != nil && s1.Identity != nil && s0.Identity.UserID == s1.Identity.UserID {
			if len(h.queue) == 2 {
				return
			}
			h.queue = append(append(h.queue[:1], h.queue[2:]...), s1)
			continue
		}
		h.queue = h.queue[2:]
		s0.Status = session.StatusPending
		s1.Status = session.StatusPending
		h.startMatch(s0, s1)
	}
}

func (h *Hub) createLobby(sess *session.Session) {
	if !sess.Authenticated() {
		h.send(sess, matchmakingError("Authenticate before hosting a lobby."))
		return
	}
	if sess.Status == session.StatusInLobby && sess.LobbyCode != "" {
		h.send(sess, matchmakingError("Already in a lobby. Leave first."))
		return
	}
	if h.identityBusy(sess.Identity.UserID, sess) {
		h.send(sess, matchmakingError("This account is already in a queue, lobby, or match."))
		return
	}

	h.removeFromQueue(sess)
	code := h.generateLobbyCode()
	sess.Status = session.StatusInLobby
	sess.LobbyCode = code
	h.lobbies[code] = &lobby{code: code, creator: sess}
	h.send(sess, msgLobbyCreated{
		Type:    "lobby_created",
		Code:    code,
		Message: "Share this code with your friend: " + code,
	})
	h.logger.Info("lobby created",
		zap.String("session_id", sess.ID),
		zap.String("code", code),
	)
}

func (h *Hub) joinLobby(sess *session.Session, rawCode string) {
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if len(code) != lobbyCodeLength {
		h.send(sess, lobbyError("Invalid code. Use a 6-character code."))
		return
	}
	if !sess.Authenticated() {
		h.send(sess, matchmakingError("Authenticate before joining a lobby."))
		return
	}
	lb, ok := h.lobbies[code]
	if !ok {
		h.send(sess, lobbyError("No lobby with that code. Check the code or create one."))
		return
	}
	if lb.joiner != nil {
		h.send(sess, lobbyError("Lobby is full."))
		return
	}
	if h.identityBusy(sess.Identity.UserID, sess) {
		h.send(sess, matchmakingError("This account is already in a queue, lobby, or match."))
		return
	}

	h.removeFromQueue(sess)
	lb.joiner = sess
	sess.Status = session.StatusInLobby
	sess.LobbyCode = code
	h.send(sess, msgLobbyJoined{Type: "lobby_joined", Code: code, Message: "Joined. Starting game when host is ready."})
	h.send(lb.creator, msgLobbyJoined{Type: "lobby_joined", Code: code, Message: "Opponent joined. Starting game."})

	// A full lobby starts immediately and releases the code.
	creator, joiner := lb.creator, lb.joiner
	delete(h.lobbies, code)
	creator.LobbyCode = ""
	joiner.LobbyCode = ""
	creator.Status = session.StatusPending
	joiner.Status = session.StatusPending
	h.startMatch(creator, joiner)
}

func (h *Hub) removeFromLobby(sess *session.Session) {
	if sess.LobbyCode == "" {
		return
	}
	if lb, ok := h.lobbies[sess.LobbyCode]; ok {
		switch sess {
		case lb.creator:
			if lb.joiner != nil {
				lb.joiner.Status = session.StatusPending
				lb.joiner.LobbyCode = ""
				h.send(lb.joiner, lobbyError("Host left the lobby."))
			}
			delete(h.lobbies, lb.code)
		case lb.joiner:
			lb.joiner = nil
			h.send(lb.creator, lobbyError("Other player left the lobby."))
		}
	}
	sess.LobbyCode = ""
	sess.Status = session.StatusPending
}

// identityBusy reports whether the identity already occupies the queue, a
// lobby, or a match through a different session.
func (h *Hub) identityBusy(userID string, except *session.Session) bool {
	same := func(s *session.Session) bool {
		return s != nil && s != except && s.Identity != nil && s.Identity.UserID == userID
	}
	for _, s := range h.queue {
		if same(s) {
			return true
		}
	}
	for _, lb := range h.lobbies {
		if same(lb.creator) || same(lb.joiner) {
			return true
		}
	}
	for _, m := range h.matches {
		if same(m.sessions[0]) || same(m.sessions[1]) {
			return true
		}
	}
	return false
}

func (h *Hub) generateLobbyCode() string {
	for {
		buf := make([]byte, lobbyCodeLength)
		for i := range buf {
			buf[i] = lobbyCodeChars[h.rng.Intn(len(lobbyCodeChars))]
		}
		code := string(buf)
		if _, taken := h.lobbies[code]; !taken {
			return code
		}
	}
}
