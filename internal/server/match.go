package server

import (
	"fmt"

	"github.com/Oliversrensen/TCG-TBD/internal/game"
	"github.com/Oliversrensen/TCG-TBD/internal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// startMatch creates a fresh match for the two sessions and broadcasts the
// initial state. Caller holds the hub lock.
func (h *Hub) startMatch(s0, s1 *session.Session) {
	state, err := h.engine.NewMatchState()
	if err != nil {
		h.logger.Error("failed to create match state", zap.Error(err))
		h.send(s0, matchmakingError("Could not start the match. Try again."))
		h.send(s1, matchmakingError("Could not start the match. Try again."))
		s0.ResetToPending()
		s1.ResetToPending()
		return
	}

	m := &match{
		id:        "m_" + uuid.NewString(),
		state:     state,
		sessions:  [2]*session.Session{s0, s1},
		usernames: [2]string{s0.Username(), s1.Username()},
	}

	for i, sess := range m.sessions {
		sess.Status = session.StatusInGame
		sess.MatchID = m.id
		sess.LobbyCode = ""
		sess.PlayerIndex = i
	}
	h.matches[m.id] = m

	h.logger.Info("match started",
		zap.String("match_id", m.id),
		zap.String("player0", s0.ID),
		zap.String("player1", s1.ID),
	)
	h.broadcastState(m, "")
}

// handleGameMessage applies one in-match intent. Rule rejections are
// broadcast as the previous state plus the error string; engine panics are
// caught here and surfaced the same way instead of crashing the match.
// Caller holds the hub lock.
func (h *Hub) handleGameMessage(sess *session.Session, msg clientMessage) {
	m, ok := h.matches[sess.MatchID]
	if !ok || sess.PlayerIndex < 0 {
		sess.ResetToPending()
		h.send(sess, matchmakingError("Not in a match."))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("engine panic",
				zap.String("match_id", m.id),
				zap.Any("panic", r),
			)
			h.broadcastState(m, fmt.Sprintf("internal error: %v", r))
		}
	}()

	action := game.Action{
		Type:               game.ActionType(msg.Type),
		CardInstanceID:     msg.CardInstanceID,
		TargetID:           msg.TargetID,
		AttackerInstanceID: msg.AttackerInstanceID,
		BoardIndex:         msg.BoardIndex,
	}

	next, err := h.engine.Apply(m.state, sess.PlayerIndex, action)
	if err != nil {
		m.state.Error = err.Error()
		h.broadcastState(m, err.Error())
		return
	}

	m.state = next
	h.broadcastState(m, "")

	if next.Winner != nil {
		h.logger.Info("match finished",
			zap.String("match_id", m.id),
			zap.Int("winner", *next.Winner),
		)
		h.endMatch(m, nil)
	}
}

// endMatch tears a match down and returns both sessions to pending. When
// winnerOverride is set (opponent disconnect) the final state is broadcast
// with that winner first. Caller holds the hub lock.
func (h *Hub) endMatch(m *match, winnerOverride *int) {
	if winnerOverride != nil {
		w := *winnerOverride
		m.state.Winner = &w
		h.broadcastState(m, "")
	}
	for _, sess := range m.sessions {
		if sess != nil {
			sess.ResetToPending()
		}
	}
	delete(h.matches, m.id)
}

// broadcastState sends the authoritative state to both participants, each
// annotated with its own player index and the opponent's username. Caller
// holds the hub lock.
func (h *Hub) broadcastState(m *match, errText string) {
	for i, sess := range m.sessions {
		if sess == nil {
			continue
		}
		h.send(sess, msgState{
			Type:             "state",
			State:            m.state,
			PlayerIndex:      i,
			Error:            errText,
			OpponentUsername: m.usernames[game.Opponent(i)],
		})
	}
}
