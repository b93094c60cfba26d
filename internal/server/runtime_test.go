// internal/server/runtime_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamehub/internal/game"
	"gamehub/internal/identity"
	"gamehub/internal/protocol"
)

// fakeConn collects decoded frames instead of writing to a socket.
type fakeConn struct {
	mu     sync.Mutex
	frames []protocol.ServerMessage
	closed bool
	reason string
}

func (f *fakeConn) Write(_ context.Context, data []byte) error {
	var m protocol.ServerMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, m)
	return nil
}

func (f *fakeConn) Close(reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.reason = reason
	return nil
}

func (f *fakeConn) allFrames() []protocol.ServerMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.ServerMessage, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeConn) lastFrame(t *testing.T) protocol.ServerMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.frames)
	return f.frames[len(f.frames)-1]
}

// lastIndexOfType returns the position of the newest frame of the given
// type, or -1. Used to assert reply-before-broadcast ordering on
// connections that also receive the broadcast.
func (f *fakeConn) lastIndexOfType(typ string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.frames) - 1; i >= 0; i-- {
		if f.frames[i].Type == typ {
			return i
		}
	}
	return -1
}

func (f *fakeConn) framesOfType(typ string) []protocol.ServerMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.ServerMessage
	for _, m := range f.frames {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// echoGame is the test plug-in: echoes payloads, counts bumps, and can arm a
// timer that adds 100 to the counter when it fires.
type echoGame struct {
	game.Base
	count   int
	pending uuid.UUID
}

type echoMessage struct {
	Op      string          `json:"op"`
	Value   json.RawMessage `json:"value,omitempty"`
	DelayMs int             `json:"delay_ms,omitempty"`
}

func (e *echoGame) PublicState(*game.Common) any {
	return map[string]int{"count": e.count}
}

func (e *echoGame) StateForPlayer(_ *game.Common, player uuid.UUID) any {
	return player.String()
}

func (e *echoGame) OnMessage(_ *game.Common, _ uuid.UUID, message json.RawMessage) (game.Updates, game.Reply) {
	var m echoMessage
	if err := json.Unmarshal(message, &m); err != nil {
		return game.None(), game.Fail("invalid message")
	}
	switch m.Op {
	case "echo":
		return game.None(), game.Ok(m.Value)
	case "bump":
		e.count++
		return game.Changed(), game.Ok(e.count)
	case "timer":
		e.pending = uuid.New()
		at := time.Now().Add(time.Duration(m.DelayMs) * time.Millisecond)
		return game.ScheduleAt(at, e.pending), game.Ok(nil)
	case "fail":
		return game.None(), game.Fail("boom")
	default:
		return game.None(), game.Fail("unknown op")
	}
}

func (e *echoGame) OnEvent(_ *game.Common, eventID uuid.UUID) game.Updates {
	if eventID != e.pending {
		return game.None()
	}
	e.count += 100
	return game.Changed()
}

type harness struct {
	t  *testing.T
	rt *Runtime
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	rt, err := NewBuilder().
		WithLogger(logger).
		WithVersion("test").
		WithKey(bytes.Repeat([]byte{7}, identity.KeySize)).
		Register("echo", func() game.Game { return &echoGame{} }).
		Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go rt.Run(ctx)

	return &harness{t: t, rt: rt}
}

func (h *harness) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	h.t.Cleanup(cancel)
	return ctx
}

// sync waits until every previously pushed event has been processed.
func (h *harness) sync() Snapshot {
	h.t.Helper()
	snap, err := h.rt.Snapshot(h.ctx())
	require.NoError(h.t, err)
	return snap
}

func (h *harness) connect() (uuid.UUID, *fakeConn) {
	h.t.Helper()
	connID := uuid.New()
	conn := &fakeConn{}
	require.NoError(h.t, h.rt.Connect(h.ctx(), connID, conn))
	h.sync()
	return connID, conn
}

func (h *harness) disconnect(connID uuid.UUID) {
	h.t.Helper()
	require.NoError(h.t, h.rt.Disconnect(h.ctx(), connID))
	h.sync()
}

// send pushes a message and waits for it to be processed.
func (h *harness) send(connID uuid.UUID, m *protocol.ClientMessage) {
	h.t.Helper()
	require.NoError(h.t, h.rt.Deliver(h.ctx(), connID, m))
	h.sync()
}

// newIdentity runs the new_identity exchange and returns the issued identity.
func (h *harness) newIdentity(connID uuid.UUID, conn *fakeConn) protocol.Identity {
	h.t.Helper()
	h.send(connID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientNewIdentity})
	frame := conn.lastFrame(h.t)
	require.Equal(h.t, protocol.ServerIdentity, frame.Type)
	require.NotNil(h.t, frame.Identity)
	return *frame.Identity
}

// createGame creates an echo lobby and returns its id.
func (h *harness) createGame(connID uuid.UUID, conn *fakeConn) uuid.UUID {
	h.t.Helper()
	h.send(connID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientCreateGame, GameType: "echo"})
	frames := conn.framesOfType(protocol.ServerGameCreated)
	require.NotEmpty(h.t, frames)
	require.NotNil(h.t, frames[len(frames)-1].GameID)
	return *frames[len(frames)-1].GameID
}

func innerMsg(gameID uuid.UUID, payload string) *protocol.ClientMessage {
	return &protocol.ClientMessage{
		ID:     uuid.New(),
		Type:   protocol.ClientInner,
		GameID: &gameID,
		Data:   json.RawMessage(payload),
	}
}

func TestGreetingOnConnect(t *testing.T) {
	h := newHarness(t)
	_, conn := h.connect()

	frame := conn.lastFrame(t)
	assert.Equal(t, protocol.ServerInfoGreeting, frame.Type)
	assert.Equal(t, "test", frame.Version)
}

func TestMustIdentifyFirst(t *testing.T) {
	h := newHarness(t)
	connID, conn := h.connect()

	h.send(connID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientGameModes})

	frame := conn.lastFrame(t)
	assert.Equal(t, protocol.ServerError, frame.Type)
	assert.Equal(t, protocol.ErrMustIdentifyFirst, frame.ErrorKind)
}

func TestIdentifyingTwiceFails(t *testing.T) {
	h := newHarness(t)
	connID, conn := h.connect()
	h.newIdentity(connID, conn)

	h.send(connID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientNewIdentity})

	frame := conn.lastFrame(t)
	assert.Equal(t, protocol.ServerError, frame.Type)
	assert.Equal(t, protocol.ErrAlreadyIdentified, frame.ErrorKind)
}

func TestNewIdentityIssuesVerifiableSecret(t *testing.T) {
	h := newHarness(t)
	connID, conn := h.connect()

	id := h.newIdentity(connID, conn)
	assert.True(t, h.rt.Authenticator().Verify(id.PlayerID, id.ReconnectionSecret))
}

func TestIdentifyRejectsForgedSecret(t *testing.T) {
	h := newHarness(t)
	connID, conn := h.connect()

	forged := uuid.New()
	h.send(connID, &protocol.ClientMessage{
		ID:                 uuid.New(),
		Type:               protocol.ClientIdentify,
		PlayerID:           &forged,
		ReconnectionSecret: bytes.Repeat([]byte{9}, identity.TagSize),
	})

	frame := conn.lastFrame(t)
	assert.Equal(t, protocol.ServerError, frame.Type)
	assert.Equal(t, protocol.ErrInvalidReconnectionSecret, frame.ErrorKind)

	// The connection stays open and may still request a fresh identity.
	id := h.newIdentity(connID, conn)
	assert.NotEqual(t, forged, id.PlayerID)
}

func TestGameModesListsRegisteredGames(t *testing.T) {
	h := newHarness(t)
	connID, conn := h.connect()
	h.newIdentity(connID, conn)

	h.send(connID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientGameModes})

	frame := conn.lastFrame(t)
	require.Equal(t, protocol.ServerGameModes, frame.Type)
	assert.Equal(t, []string{"echo"}, frame.GameModes)
}

func TestCreateGameBroadcastsAfterReply(t *testing.T) {
	h := newHarness(t)
	connID, conn := h.connect()
	id := h.newIdentity(connID, conn)

	gameID := h.createGame(connID, conn)

	// The reply must precede the state broadcast.
	frames := conn.allFrames()
	var createdAt, infoAt int
	for i, f := range frames {
		switch f.Type {
		case protocol.ServerGameCreated:
			createdAt = i
		case protocol.ServerGameInfo:
			infoAt = i
		}
	}
	assert.Less(t, createdAt, infoAt)

	infos := conn.framesOfType(protocol.ServerGameInfo)
	require.NotEmpty(t, infos)
	info := infos[len(infos)-1].GameInfo
	require.NotNil(t, info)
	assert.Equal(t, gameID, info.GameID)
	assert.Equal(t, id.PlayerID, info.Leader)
	assert.Equal(t, []uuid.UUID{id.PlayerID}, info.Players)
	assert.JSONEq(t, `{"count":0}`, string(info.PublicState))
}

func TestCreateGameUnknownType(t *testing.T) {
	h := newHarness(t)
	connID, conn := h.connect()
	h.newIdentity(connID, conn)

	h.send(connID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientCreateGame, GameType: "tetris"})

	frame := conn.lastFrame(t)
	assert.Equal(t, protocol.ErrInvalidGameFormat, frame.ErrorKind)
	assert.Zero(t, len(h.sync().Lobbies))
}

func TestJoinGameBroadcastsToEveryMember(t *testing.T) {
	h := newHarness(t)
	conn1ID, conn1 := h.connect()
	h.newIdentity(conn1ID, conn1)
	gameID := h.createGame(conn1ID, conn1)

	conn2ID, conn2 := h.connect()
	id2 := h.newIdentity(conn2ID, conn2)
	h.send(conn2ID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientJoinGame, GameID: &gameID})

	joined := conn2.framesOfType(protocol.ServerJoinedToGame)
	require.Len(t, joined, 1)
	assert.Equal(t, gameID, *joined[0].GameID)

	// Both members see the two-player roster.
	for _, conn := range []*fakeConn{conn1, conn2} {
		infos := conn.framesOfType(protocol.ServerGameInfo)
		require.NotEmpty(t, infos)
		info := infos[len(infos)-1].GameInfo
		assert.Len(t, info.Players, 2)
		assert.Contains(t, info.Players, id2.PlayerID)
	}

	// Private states are per player.
	info1 := conn1.framesOfType(protocol.ServerGameInfo)
	info2 := conn2.framesOfType(protocol.ServerGameInfo)
	assert.NotEqual(t,
		info1[len(info1)-1].GameInfo.PrivateState,
		info2[len(info2)-1].GameInfo.PrivateState)
}

func TestJoinUnknownLobby(t *testing.T) {
	h := newHarness(t)
	connID, conn := h.connect()
	h.newIdentity(connID, conn)

	bogus := uuid.New()
	h.send(connID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientJoinGame, GameID: &bogus})

	assert.Equal(t, protocol.ErrNoSuchGameLobby, conn.lastFrame(t).ErrorKind)
}

func TestLeaveGameReassignsLeaderAndDisposesWhenEmpty(t *testing.T) {
	h := newHarness(t)
	conn1ID, conn1 := h.connect()
	id1 := h.newIdentity(conn1ID, conn1)
	gameID := h.createGame(conn1ID, conn1)

	conn2ID, conn2 := h.connect()
	id2 := h.newIdentity(conn2ID, conn2)
	h.send(conn2ID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientJoinGame, GameID: &gameID})

	// Leader leaves; the other member takes over.
	h.send(conn1ID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientLeaveGame, GameID: &gameID})
	assert.Equal(t, protocol.ServerOk, conn1.lastFrame(t).Type)

	infos := conn2.framesOfType(protocol.ServerGameInfo)
	require.NotEmpty(t, infos)
	last := infos[len(infos)-1].GameInfo
	assert.Equal(t, id2.PlayerID, last.Leader)
	assert.NotContains(t, last.Players, id1.PlayerID)

	// Last member leaves; the lobby is gone.
	h.send(conn2ID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientLeaveGame, GameID: &gameID})
	assert.Empty(t, h.sync().Lobbies)

	h.send(conn2ID, innerMsg(gameID, `{"op":"bump"}`))
	assert.Equal(t, protocol.ErrNoSuchGameLobby, conn2.lastFrame(t).ErrorKind)
}

func TestLeaveGameNotAMember(t *testing.T) {
	h := newHarness(t)
	conn1ID, conn1 := h.connect()
	h.newIdentity(conn1ID, conn1)
	gameID := h.createGame(conn1ID, conn1)

	conn2ID, conn2 := h.connect()
	h.newIdentity(conn2ID, conn2)
	h.send(conn2ID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientLeaveGame, GameID: &gameID})

	assert.Equal(t, protocol.ErrNotInThatGame, conn2.lastFrame(t).ErrorKind)
}

func TestKickRequiresLeader(t *testing.T) {
	h := newHarness(t)
	conn1ID, conn1 := h.connect()
	id1 := h.newIdentity(conn1ID, conn1)
	gameID := h.createGame(conn1ID, conn1)

	conn2ID, conn2 := h.connect()
	id2 := h.newIdentity(conn2ID, conn2)
	h.send(conn2ID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientJoinGame, GameID: &gameID})

	// Non-leader may not kick.
	h.send(conn2ID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientKickPlayer, GameID: &gameID, PlayerID: &id1.PlayerID})
	assert.Equal(t, protocol.ErrNotInThatGame, conn2.lastFrame(t).ErrorKind)

	// Leader kicks the member. The requester stays in the lobby, so the ok
	// reply must land before the broadcast it triggers.
	h.send(conn1ID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientKickPlayer, GameID: &gameID, PlayerID: &id2.PlayerID})
	okAt := conn1.lastIndexOfType(protocol.ServerOk)
	infoAt := conn1.lastIndexOfType(protocol.ServerGameInfo)
	require.GreaterOrEqual(t, okAt, 0, "kick must be acknowledged")
	require.GreaterOrEqual(t, infoAt, 0)
	assert.Less(t, okAt, infoAt)

	infos := conn1.framesOfType(protocol.ServerGameInfo)
	assert.NotContains(t, infos[len(infos)-1].GameInfo.Players, id2.PlayerID)
}

func TestPromoteLeader(t *testing.T) {
	h := newHarness(t)
	conn1ID, conn1 := h.connect()
	h.newIdentity(conn1ID, conn1)
	gameID := h.createGame(conn1ID, conn1)

	conn2ID, conn2 := h.connect()
	id2 := h.newIdentity(conn2ID, conn2)
	h.send(conn2ID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientJoinGame, GameID: &gameID})

	h.send(conn1ID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientPromoteLeader, GameID: &gameID, PlayerID: &id2.PlayerID})
	okAt := conn1.lastIndexOfType(protocol.ServerOk)
	infoAt := conn1.lastIndexOfType(protocol.ServerGameInfo)
	require.GreaterOrEqual(t, okAt, 0, "promote must be acknowledged")
	require.GreaterOrEqual(t, infoAt, 0)
	assert.Less(t, okAt, infoAt)

	infos := conn1.framesOfType(protocol.ServerGameInfo)
	assert.Equal(t, id2.PlayerID, infos[len(infos)-1].GameInfo.Leader)

	// The old leader may no longer promote.
	h.send(conn1ID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientPromoteLeader, GameID: &gameID, PlayerID: &id2.PlayerID})
	assert.Equal(t, protocol.ErrNotInThatGame, conn1.lastFrame(t).ErrorKind)
}

func TestInnerEchoAndError(t *testing.T) {
	h := newHarness(t)
	connID, conn := h.connect()
	h.newIdentity(connID, conn)
	gameID := h.createGame(connID, conn)

	infosBefore := len(conn.framesOfType(protocol.ServerGameInfo))

	h.send(connID, innerMsg(gameID, `{"op":"echo","value":{"answer":42}}`))
	frame := conn.lastFrame(t)
	require.Equal(t, protocol.ServerInner, frame.Type)
	assert.JSONEq(t, `{"answer":42}`, string(frame.Data))

	h.send(connID, innerMsg(gameID, `{"op":"fail"}`))
	frame = conn.lastFrame(t)
	require.Equal(t, protocol.ServerError, frame.Type)
	assert.Equal(t, protocol.ErrInner, frame.ErrorKind)
	assert.JSONEq(t, `"boom"`, string(frame.Data))

	// Neither op reported a state change, so neither may broadcast.
	assert.Len(t, conn.framesOfType(protocol.ServerGameInfo), infosBefore,
		"unchanged state must not emit game_info")
}

func TestInnerChangeBroadcasts(t *testing.T) {
	h := newHarness(t)
	connID, conn := h.connect()
	h.newIdentity(connID, conn)
	gameID := h.createGame(connID, conn)

	h.send(connID, innerMsg(gameID, `{"op":"bump"}`))

	infos := conn.framesOfType(protocol.ServerGameInfo)
	require.NotEmpty(t, infos)
	assert.JSONEq(t, `{"count":1}`, string(infos[len(infos)-1].GameInfo.PublicState))
}

func TestMembershipSurvivesDisconnect(t *testing.T) {
	h := newHarness(t)
	conn1ID, conn1 := h.connect()
	id := h.newIdentity(conn1ID, conn1)
	gameID := h.createGame(conn1ID, conn1)

	h.disconnect(conn1ID)
	require.Len(t, h.sync().Lobbies, 1)

	// Reconnect with the issued secret on a fresh connection.
	conn2ID, conn2 := h.connect()
	h.send(conn2ID, &protocol.ClientMessage{
		ID:                 uuid.New(),
		Type:               protocol.ClientIdentify,
		PlayerID:           &id.PlayerID,
		ReconnectionSecret: id.ReconnectionSecret,
	})

	idFrames := conn2.framesOfType(protocol.ServerIdentity)
	require.Len(t, idFrames, 1)
	assert.Equal(t, id.PlayerID, idFrames[0].Identity.PlayerID)

	// The joined lobby's state is resent without being asked.
	infos := conn2.framesOfType(protocol.ServerGameInfo)
	require.NotEmpty(t, infos)
	assert.Equal(t, gameID, infos[0].GameInfo.GameID)

	h.send(conn2ID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientJoinedGames})
	joined := conn2.framesOfType(protocol.ServerJoinedGames)
	require.NotEmpty(t, joined)
	assert.Equal(t, []uuid.UUID{gameID}, joined[len(joined)-1].JoinedGames)
}

func TestReconnectDisplacesOldConnection(t *testing.T) {
	h := newHarness(t)
	conn1ID, conn1 := h.connect()
	id := h.newIdentity(conn1ID, conn1)

	conn2ID, conn2 := h.connect()
	h.send(conn2ID, &protocol.ClientMessage{
		ID:                 uuid.New(),
		Type:               protocol.ClientIdentify,
		PlayerID:           &id.PlayerID,
		ReconnectionSecret: id.ReconnectionSecret,
	})

	assert.True(t, conn1.isClosed(), "displaced connection must be closed")
	errs := conn1.framesOfType(protocol.ServerError)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[len(errs)-1].Message, "claimed by another connection")

	idFrames := conn2.framesOfType(protocol.ServerIdentity)
	require.Len(t, idFrames, 1)

	// The displaced socket's late disconnect must not unbind the new one.
	h.disconnect(conn1ID)
	h.send(conn2ID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientGameModes})
	assert.Equal(t, protocol.ServerGameModes, conn2.lastFrame(t).Type)
}

func TestTimerFiresAndBroadcasts(t *testing.T) {
	h := newHarness(t)
	connID, conn := h.connect()
	h.newIdentity(connID, conn)
	gameID := h.createGame(connID, conn)

	h.send(connID, innerMsg(gameID, `{"op":"timer","delay_ms":20}`))
	require.Equal(t, 1, h.sync().PendingTimers)

	assert.Eventually(t, func() bool {
		infos := conn.framesOfType(protocol.ServerGameInfo)
		for _, f := range infos {
			if string(f.GameInfo.PublicState) == `{"count":100}` {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "timer delivery should bump the count by 100")

	assert.Zero(t, h.sync().PendingTimers)
}

func TestTimerForDestroyedLobbyIsDropped(t *testing.T) {
	h := newHarness(t)
	connID, conn := h.connect()
	h.newIdentity(connID, conn)
	gameID := h.createGame(connID, conn)

	h.send(connID, innerMsg(gameID, `{"op":"timer","delay_ms":30}`))
	h.send(connID, &protocol.ClientMessage{ID: uuid.New(), Type: protocol.ClientLeaveGame, GameID: &gameID})
	require.Empty(t, h.sync().Lobbies)

	// The stale entry drains without side effects.
	assert.Eventually(t, func() bool {
		return h.sync().PendingTimers == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInvalidFrameGetsServerError(t *testing.T) {
	h := newHarness(t)
	connID, conn := h.connect()

	_, err := protocol.DecodeClientMessage([]byte(`{"type":"bogus"}`))
	require.Error(t, err)
	require.NoError(t, h.rt.DeliverInvalid(h.ctx(), connID, err))
	h.sync()

	frame := conn.lastFrame(t)
	assert.Equal(t, protocol.ServerError, frame.Type)
	assert.Nil(t, frame.ReplyTo)
	assert.NotEmpty(t, frame.Message)
}

func TestSnapshotCounts(t *testing.T) {
	h := newHarness(t)
	conn1ID, conn1 := h.connect()
	h.newIdentity(conn1ID, conn1)
	h.connect() // second connection stays unidentified

	gameID := h.createGame(conn1ID, conn1)

	snap := h.sync()
	assert.Equal(t, 2, snap.Connections)
	assert.Equal(t, 1, snap.IdentifiedPlayers)
	require.Len(t, snap.Lobbies, 1)
	assert.Equal(t, gameID, snap.Lobbies[0].GameID)
	assert.Equal(t, "echo", snap.Lobbies[0].Mode)
	assert.Equal(t, 1, snap.Lobbies[0].Members)
	assert.Equal(t, []string{"echo"}, snap.GameModes)
}
