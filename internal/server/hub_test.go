package server

import (
	"fmt"
	"sync"
	"testing"

	"github.com/Oliversrensen/TCG-TBD/internal/auth"
	"github.com/Oliversrensen/TCG-TBD/internal/card"
	"github.com/Oliversrensen/TCG-TBD/internal/game"
	"github.com/Oliversrensen/TCG-TBD/internal/session"
	"github.com/Oliversrensen/TCG-TBD/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConn records every outbound message for assertions.
type fakeConn struct {
	mu     sync.Mutex
	msgs   []any
	closed bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) lastState(t *testing.T) msgState {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if st, ok := c.msgs[i].(msgState); ok {
			return st
		}
	}
	t.Fatal("no state message received")
	return msgState{}
}

func (c *fakeConn) lastMatchmakingError(t *testing.T) msgMatchmakingError {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if e, ok := c.msgs[i].(msgMatchmakingError); ok {
			return e
		}
	}
	t.Fatal("no matchmaking_error message received")
	return msgMatchmakingError{}
}

func (c *fakeConn) lastLobbyError(t *testing.T) msgLobbyError {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if e, ok := c.msgs[i].(msgLobbyError); ok {
			return e
		}
	}
	t.Fatal("no lobby_error message received")
	return msgLobbyError{}
}

func (c *fakeConn) lobbyCode(t *testing.T) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if m, ok := c.msgs[i].(msgLobbyCreated); ok {
			return m.Code
		}
	}
	t.Fatal("no lobby_created message received")
	return ""
}

// stubRand yields a deterministic but non-constant sequence so generated
// lobby codes differ.
type stubRand struct{ n int }

func (r *stubRand) Intn(limit int) int {
	r.n++
	return r.n % limit
}

type fakeVerifier struct {
	identities map[string]*auth.Identity
}

func (f *fakeVerifier) Verify(token string) (*auth.Identity, error) {
	if id, ok := f.identities[token]; ok {
		return id, nil
	}
	return nil, auth.ErrInvalidToken
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	logger := zap.NewNop()
	catalog, err := card.NewCatalog(card.DefaultTemplates())
	require.NoError(t, err)
	engine := game.NewEngine(catalog, card.NewIDGenerator(), game.DefaultRules(), &stubRand{}, logger)
	verifier := &fakeVerifier{identities: map[string]*auth.Identity{
		"token-alice": {Subject: "user-alice", Name: "Alice"},
		"token-bob":   {Subject: "user-bob", Name: "Bob"},
		"token-carol": {Subject: "user-carol", Name: "Carol"},
	}}
	users := user.NewService(user.NewMemoryRepository(), logger)
	return NewHub(engine, catalog, session.NewRegistry(logger), verifier, users, &stubRand{}, logger)
}

func connect(h *Hub) (*session.Session, *fakeConn) {
	fc := &fakeConn{}
	return h.HandleConnect(fc), fc
}

func authenticate(t *testing.T, h *Hub, sess *session.Session, token string) {
	t.Helper()
	h.HandleMessage(sess, []byte(fmt.Sprintf(`{"type":"authenticate","token":%q}`, token)))
	require.True(t, sess.Authenticated())
}

func startQueuedMatch(t *testing.T, h *Hub) (s0 *session.Session, c0 *fakeConn, s1 *session.Session, c1 *fakeConn) {
	t.Helper()
	s0, c0 = connect(h)
	s1, c1 = connect(h)
	authenticate(t, h, s0, "token-alice")
	authenticate(t, h, s1, "token-bob")
	h.HandleMessage(s0, []byte(`{"type":"join_queue"}`))
	h.HandleMessage(s1, []byte(`{"type":"join_queue"}`))
	require.Equal(t, session.StatusInGame, s0.Status)
	require.Equal(t, session.StatusInGame, s1.Status)
	return s0, c0, s1, c1
}

func TestConnectSendsGreeting(t *testing.T) {
	h := newTestHub(t)
	sess, fc := connect(h)

	require.NotEmpty(t, fc.msgs)
	greeting, ok := fc.msgs[0].(msgConnected)
	require.True(t, ok)
	assert.Equal(t, "connected", greeting.Type)
	assert.Equal(t, sess.ID, greeting.SessionID)
	assert.Equal(t, 1, h.registry.Len())
}

func TestJoinQueueRequiresAuth(t *testing.T) {
	h := newTestHub(t)
	sess, fc := connect(h)

	h.HandleMessage(sess, []byte(`{"type":"join_queue"}`))
	assert.Contains(t, fc.lastMatchmakingError(t).Error, "Authenticate")
	assert.Equal(t, session.StatusPending, sess.Status)
	assert.Empty(t, h.queue)
}

func TestAuthenticateBadToken(t *testing.T) {
	h := newTestHub(t)
	sess, fc := connect(h)

	h.HandleMessage(sess, []byte(`{"type":"authenticate","token":"garbage"}`))
	assert.False(t, sess.Authenticated())
	last := fc.msgs[len(fc.msgs)-1].(msgAuthError)
	assert.Equal(t, "auth_error", last.Type)
}

func TestAuthenticateWithoutVerifier(t *testing.T) {
	h := newTestHub(t)
	h.verifier = nil
	sess, fc := connect(h)

	h.HandleMessage(sess, []byte(`{"type":"authenticate","token":"token-alice"}`))
	assert.False(t, sess.Authenticated())
	last := fc.msgs[len(fc.msgs)-1].(msgAuthError)
	assert.Contains(t, last.Error, "not configured")
}

func TestAuthenticateWhileInGameDispatchesAsGameMessage(t *testing.T) {
	h := newTestHub(t)
	s0, c0, _, _ := startQueuedMatch(t, h)
	before := *s0.Identity

	h.HandleMessage(s0, []byte(`{"type":"authenticate","token":"token-carol"}`))

	assert.Equal(t, "Unknown action", c0.lastState(t).Error)
	assert.Equal(t, before, *s0.Identity)
}

func TestAuthenticateConcurrentWithMatchTeardown(t *testing.T) {
	h := newTestHub(t)
	s0, _, s1, _ := startQueuedMatch(t, h)
	extra, _ := connect(h)

	// Identity binding and the reply run under the hub lock, so a teardown
	// mutating session statuses on another goroutine must not race.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.HandleMessage(extra, []byte(`{"type":"authenticate","token":"token-carol"}`))
	}()
	go func() {
		defer wg.Done()
		h.HandleDisconnect(s0)
	}()
	wg.Wait()

	assert.True(t, extra.Authenticated())
	assert.Equal(t, session.StatusPending, s1.Status)
	assert.Empty(t, h.matches)
}

func TestQueuePairingStartsMatch(t *testing.T) {
	h := newTestHub(t)
	s0, c0, s1, c1 := startQueuedMatch(t, h)

	assert.Len(t, h.matches, 1)
	assert.Empty(t, h.queue)
	assert.Equal(t, 0, s0.PlayerIndex)
	assert.Equal(t, 1, s1.PlayerIndex)
	assert.Equal(t, s0.MatchID, s1.MatchID)

	st0 := c0.lastState(t)
	assert.Equal(t, 0, st0.PlayerIndex)
	assert.Equal(t, "Bob", st0.OpponentUsername)
	assert.Equal(t, 0, st0.State.CurrentTurn)

	st1 := c1.lastState(t)
	assert.Equal(t, 1, st1.PlayerIndex)
	assert.Equal(t, "Alice", st1.OpponentUsername)
}

func TestSingleQueuedPlayerWaits(t *testing.T) {
	h := newTestHub(t)
	sess, fc := connect(h)
	authenticate(t, h, sess, "token-alice")

	h.HandleMessage(sess, []byte(`{"type":"join_queue"}`))
	assert.Equal(t, session.StatusQueued, sess.Status)
	assert.Len(t, h.queue, 1)
	assert.Empty(t, h.matches)
	joined, ok := fc.msgs[len(fc.msgs)-1].(msgJoinedQueue)
	require.True(t, ok)
	assert.Equal(t, "joined_queue", joined.Type)
}

func TestLeaveQueue(t *testing.T) {
	h := newTestHub(t)
	sess, fc := connect(h)
	authenticate(t, h, sess, "token-alice")

	h.HandleMessage(sess, []byte(`{"type":"join_queue"}`))
	h.HandleMessage(sess, []byte(`{"type":"leave_queue"}`))

	assert.Empty(t, h.queue)
	assert.Equal(t, session.StatusPending, sess.Status)
	_, ok := fc.msgs[len(fc.msgs)-1].(msgLeftQueue)
	assert.True(t, ok)
}

func TestDoubleJoinQueueRejected(t *testing.T) {
	h := newTestHub(t)
	sess, fc := connect(h)
	authenticate(t, h, sess, "token-alice")

	h.HandleMessage(sess, []byte(`{"type":"join_queue"}`))
	h.HandleMessage(sess, []byte(`{"type":"join_queue"}`))

	assert.Len(t, h.queue, 1)
	assert.Contains(t, fc.lastMatchmakingError(t).Error, "Already in queue")
}

func TestSameIdentitySecondConnectionCannotQueue(t *testing.T) {
	h := newTestHub(t)
	first, _ := connect(h)
	second, fc2 := connect(h)
	authenticate(t, h, first, "token-alice")
	authenticate(t, h, second, "token-alice")

	h.HandleMessage(first, []byte(`{"type":"join_queue"}`))
	h.HandleMessage(second, []byte(`{"type":"join_queue"}`))

	assert.Len(t, h.queue, 1)
	assert.Equal(t, session.StatusPending, second.Status)
	assert.Contains(t, fc2.lastMatchmakingError(t).Error, "already in a queue")
}

func TestTryPairSkipsSameIdentityPair(t *testing.T) {
	h := newTestHub(t)
	alice1, _ := connect(h)
	alice2, _ := connect(h)
	bob, _ := connect(h)
	alice1.Identity = &session.Identity{UserID: "user-alice", Username: "Alice"}
	alice2.Identity = &session.Identity{UserID: "user-alice", Username: "Alice"}
	bob.Identity = &session.Identity{UserID: "user-bob", Username: "Bob"}

	for _, s := range []*session.Session{alice1, alice2, bob} {
		s.Status = session.StatusQueued
		h.queue = append(h.queue, s)
	}
	h.tryPair()

	// alice1 pairs with bob; the duplicate identity stays queued.
	assert.Len(t, h.matches, 1)
	require.Len(t, h.queue, 1)
	assert.Same(t, alice2, h.queue[0])
	assert.Equal(t, session.StatusInGame, alice1.Status)
	assert.Equal(t, session.StatusInGame, bob.Status)
}

func TestTryPairHoldsTwoSameIdentityEntries(t *testing.T) {
	h := newTestHub(t)
	alice1, _ := connect(h)
	alice2, _ := connect(h)
	alice1.Identity = &session.Identity{UserID: "user-alice", Username: "Alice"}
	alice2.Identity = &session.Identity{UserID: "user-alice", Username: "Alice"}

	for _, s := range []*session.Session{alice1, alice2} {
		s.Status = session.StatusQueued
		h.queue = append(h.queue, s)
	}
	h.tryPair()

	assert.Empty(t, h.matches)
	assert.Len(t, h.queue, 2)
}

func TestLobbyFlow(t *testing.T) {
	h := newTestHub(t)
	host, hostConn := connect(h)
	guest, guestConn := connect(h)
	authenticate(t, h, host, "token-alice")
	authenticate(t, h, guest, "token-bob")

	h.HandleMessage(host, []byte(`{"type":"create_lobby"}`))
	code := hostConn.lobbyCode(t)
	require.Len(t, code, lobbyCodeLength)
	assert.Equal(t, session.StatusInLobby, host.Status)

	// Codes are normalized before lookup.
	h.HandleMessage(guest, []byte(fmt.Sprintf(`{"type":"join_lobby","code":"  %s  "}`, code)))

	assert.Empty(t, h.lobbies, "a full lobby releases its code")
	assert.Len(t, h.matches, 1)
	assert.Equal(t, session.StatusInGame, host.Status)
	assert.Equal(t, session.StatusInGame, guest.Status)
	assert.Equal(t, 0, host.PlayerIndex)
	assert.Equal(t, 1, guest.PlayerIndex)
	assert.Equal(t, "Alice", guestConn.lastState(t).OpponentUsername)
}

func TestJoinLobbyInvalidCode(t *testing.T) {
	h := newTestHub(t)
	sess, fc := connect(h)
	authenticate(t, h, sess, "token-alice")

	h.HandleMessage(sess, []byte(`{"type":"join_lobby","code":"AB"}`))
	assert.Contains(t, fc.lastLobbyError(t).Error, "Invalid code")

	h.HandleMessage(sess, []byte(`{"type":"join_lobby","code":"ZZZZZZ"}`))
	assert.Contains(t, fc.lastLobbyError(t).Error, "No lobby with that code")
}

func TestCreateLobbyRequiresAuth(t *testing.T) {
	h := newTestHub(t)
	sess, fc := connect(h)

	h.HandleMessage(sess, []byte(`{"type":"create_lobby"}`))
	assert.Contains(t, fc.lastMatchmakingError(t).Error, "Authenticate")
	assert.Empty(t, h.lobbies)
}

func TestHostLeavingDissolvesLobby(t *testing.T) {
	h := newTestHub(t)
	host, hostConn := connect(h)
	guest, guestConn := connect(h)
	authenticate(t, h, host, "token-alice")
	authenticate(t, h, guest, "token-bob")

	h.HandleMessage(host, []byte(`{"type":"create_lobby"}`))
	code := hostConn.lobbyCode(t)
	h.HandleMessage(host, []byte(`{"type":"leave_lobby"}`))

	assert.Empty(t, h.lobbies)
	assert.Equal(t, session.StatusPending, host.Status)

	h.HandleMessage(guest, []byte(fmt.Sprintf(`{"type":"join_lobby","code":%q}`, code)))
	assert.Contains(t, guestConn.lastLobbyError(t).Error, "No lobby with that code")
}

func TestUnknownMatchmakingAction(t *testing.T) {
	h := newTestHub(t)
	sess, fc := connect(h)

	h.HandleMessage(sess, []byte(`{"type":"do_a_flip"}`))
	assert.Contains(t, fc.lastMatchmakingError(t).Error, "Unknown action")
}

func TestInvalidJSONOutsideMatch(t *testing.T) {
	h := newTestHub(t)
	sess, fc := connect(h)

	h.HandleMessage(sess, []byte(`{not json`))
	assert.Equal(t, "Invalid JSON", fc.lastMatchmakingError(t).Error)
}

func TestInvalidJSONInMatch(t *testing.T) {
	h := newTestHub(t)
	s0, c0, _, _ := startQueuedMatch(t, h)

	h.HandleMessage(s0, []byte(`{not json`))
	st := c0.lastState(t)
	assert.Equal(t, "Invalid JSON", st.Error)
	assert.Equal(t, 0, st.PlayerIndex)
}

func TestGameActionAdvancesMatch(t *testing.T) {
	h := newTestHub(t)
	s0, c0, _, c1 := startQueuedMatch(t, h)

	h.HandleMessage(s0, []byte(`{"type":"end_turn"}`))
	assert.Equal(t, 1, c0.lastState(t).State.CurrentTurn)
	assert.Equal(t, 1, c1.lastState(t).State.CurrentTurn)
}

func TestPlayCreatureOverWire(t *testing.T) {
	h := newTestHub(t)
	s0, c0, _, _ := startQueuedMatch(t, h)

	var instanceID string
	for _, inst := range c0.lastState(t).State.Players[0].Hand {
		if inst.CardID == "murloc" {
			instanceID = inst.InstanceID
			break
		}
	}
	require.NotEmpty(t, instanceID)

	h.HandleMessage(s0, []byte(fmt.Sprintf(`{"type":"play_creature","cardInstanceId":%q}`, instanceID)))
	st := c0.lastState(t)
	assert.Empty(t, st.Error)
	require.Len(t, st.State.Players[0].Board, 1)
	assert.Equal(t, "murloc", st.State.Players[0].Board[0].CardID)
	assert.Equal(t, 9, st.State.ManaRemaining)
}

func TestRejectedActionBroadcastsError(t *testing.T) {
	h := newTestHub(t)
	_, c0, s1, c1 := startQueuedMatch(t, h)

	// Player 1 acts while it is player 0's turn.
	h.HandleMessage(s1, []byte(`{"type":"end_turn"}`))

	assert.Equal(t, "Not your turn", c1.lastState(t).Error)
	assert.Equal(t, "Not your turn", c0.lastState(t).Error)
	assert.Equal(t, 0, c1.lastState(t).State.CurrentTurn)
}

func TestDisconnectForfeitsMatch(t *testing.T) {
	h := newTestHub(t)
	s0, _, s1, c1 := startQueuedMatch(t, h)

	h.HandleDisconnect(s0)

	st := c1.lastState(t)
	require.NotNil(t, st.State.Winner)
	assert.Equal(t, 1, *st.State.Winner)
	assert.Empty(t, h.matches)
	assert.Equal(t, session.StatusPending, s1.Status)
	assert.Equal(t, 1, h.registry.Len())
}

func TestDisconnectLeavesQueue(t *testing.T) {
	h := newTestHub(t)
	sess, _ := connect(h)
	authenticate(t, h, sess, "token-alice")
	h.HandleMessage(sess, []byte(`{"type":"join_queue"}`))

	h.HandleDisconnect(sess)
	assert.Empty(t, h.queue)
	assert.Equal(t, 0, h.registry.Len())
}

func TestFinishedMatchReleasesIdentity(t *testing.T) {
	h := newTestHub(t)
	s0, _, s1, _ := startQueuedMatch(t, h)
	h.HandleDisconnect(s0)

	// The survivor can queue again right away.
	h.HandleMessage(s1, []byte(`{"type":"join_queue"}`))
	assert.Equal(t, session.StatusQueued, s1.Status)
	assert.Len(t, h.queue, 1)
}

func TestCloseAllClosesConnections(t *testing.T) {
	h := newTestHub(t)
	_, c0 := connect(h)
	_, c1 := connect(h)

	h.CloseAll()
	assert.True(t, c0.closed)
	assert.True(t, c1.closed)
}
