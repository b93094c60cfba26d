// internal/server/runtime.go
//
// The dispatch runtime: a single event loop that owns every connection,
// identity binding, and lobby. Connection adapters feed it events through a
// bounded channel; all state mutation and every plug-in call happens on the
// loop goroutine, so neither the runtime nor the plug-ins need locks.
package server

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gamehub/internal/game"
	"gamehub/internal/history"
	"gamehub/internal/identity"
	"gamehub/internal/protocol"
)

// eventChannelCapacity bounds the inbox. Producers block when the loop falls
// behind, which back-pressures the sockets instead of growing memory.
const eventChannelCapacity = 64

// playerConn is the loop's record of one live connection, keyed both by
// connection id (clients map) and by the player id currently bound to it
// (players map).
type playerConn struct {
	connID     uuid.UUID
	write      WriteHalf
	identified bool
}

// Runtime is the game-session server core. Construct it through Builder;
// start the loop with Run; feed it through the Connect/Disconnect/Deliver
// methods from connection adapters.
type Runtime struct {
	logger   *logrus.Logger
	registry *game.Registry
	auth     *identity.Authenticator
	recorder *history.Recorder
	version  string

	events chan event

	// Loop-owned state. Only the Run goroutine touches these.
	clients map[uuid.UUID]uuid.UUID    // connID -> bound player id
	players map[uuid.UUID]*playerConn  // player id -> live connection
	games   map[uuid.UUID]*game.Lobby  // lobby id -> lobby
	queue   *eventQueue
	plan    *publishPlan
}

func newRuntime(logger *logrus.Logger, registry *game.Registry, auth *identity.Authenticator, recorder *history.Recorder, version string) *Runtime {
	return &Runtime{
		logger:   logger,
		registry: registry,
		auth:     auth,
		recorder: recorder,
		version:  version,
		events:   make(chan event, eventChannelCapacity),
		clients:  make(map[uuid.UUID]uuid.UUID),
		players:  make(map[uuid.UUID]*playerConn),
		games:    make(map[uuid.UUID]*game.Lobby),
		queue:    newEventQueue(),
		plan:     newPublishPlan(),
	}
}

// Authenticator exposes the identity authenticator, for adapters and tests
// that need to mint valid reconnection secrets.
func (rt *Runtime) Authenticator() *identity.Authenticator { return rt.auth }

// Connect announces a new connection and hands its write half to the loop.
func (rt *Runtime) Connect(ctx context.Context, connID uuid.UUID, w WriteHalf) error {
	return rt.push(ctx, connectedEvent{connID: connID, write: w})
}

// Disconnect announces that a connection is gone. Every Connect must be
// paired with exactly one Disconnect.
func (rt *Runtime) Disconnect(ctx context.Context, connID uuid.UUID) error {
	return rt.push(ctx, disconnectedEvent{connID: connID})
}

// Deliver hands a decoded client message to the loop.
func (rt *Runtime) Deliver(ctx context.Context, connID uuid.UUID, m *protocol.ClientMessage) error {
	return rt.push(ctx, messageEvent{connID: connID, message: m})
}

// DeliverInvalid reports a frame that failed to decode or validate. The loop
// answers with a server-initiated error frame.
func (rt *Runtime) DeliverInvalid(ctx context.Context, connID uuid.UUID, err error) error {
	return rt.push(ctx, invalidMessageEvent{connID: connID, err: err})
}

// Snapshot returns a point-in-time view of runtime state. It round-trips
// through the event loop, so it also acts as a barrier: all events pushed
// before it have been fully processed when it returns.
func (rt *Runtime) Snapshot(ctx context.Context) (Snapshot, error) {
	resp := make(chan Snapshot, 1)
	if err := rt.push(ctx, snapshotEvent{resp: resp}); err != nil {
		return Snapshot{}, err
	}
	select {
	case s := <-resp:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (rt *Runtime) push(ctx context.Context, ev event) error {
	select {
	case rt.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LobbySummary is one lobby's row in a Snapshot.
type LobbySummary struct {
	GameID  uuid.UUID `json:"game_id"`
	Mode    string    `json:"mode"`
	Leader  uuid.UUID `json:"leader"`
	Members int       `json:"members"`
}

// Snapshot is a consistent view of runtime state taken on the loop.
type Snapshot struct {
	Connections       int            `json:"connections"`
	IdentifiedPlayers int            `json:"identified_players"`
	Lobbies           []LobbySummary `json:"lobbies"`
	PendingTimers     int            `json:"pending_timers"`
	GameModes         []string       `json:"game_modes"`
}

// Run executes the event loop until ctx is cancelled. It must be called
// exactly once.
func (rt *Runtime) Run(ctx context.Context) {
	for {
		var timerC <-chan time.Time
		var timer *time.Timer
		if deadline, ok := rt.queue.NextDeadline(); ok {
			timer = time.NewTimer(time.Until(deadline))
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev := <-rt.events:
			if timer != nil {
				timer.Stop()
			}
			rt.dispatch(ctx, ev)
		case <-timerC:
			rt.fireDueTimers(ctx)
		}
	}
}

func (rt *Runtime) dispatch(ctx context.Context, ev event) {
	switch e := ev.(type) {
	case connectedEvent:
		rt.handleConnected(ctx, e)
	case disconnectedEvent:
		rt.handleDisconnected(e)
	case messageEvent:
		rt.handleMessage(ctx, e.connID, e.message)
	case invalidMessageEvent:
		rt.handleInvalid(ctx, e)
	case snapshotEvent:
		e.resp <- rt.snapshot()
	}
	rt.flush(ctx)
}

func (rt *Runtime) fireDueTimers(ctx context.Context) {
	now := time.Now()
	for {
		entry, ok := rt.queue.PopDue(now)
		if !ok {
			break
		}
		lobby, exists := rt.games[entry.gameID]
		if !exists {
			// The lobby was destroyed after scheduling; the entry is stale.
			rt.logger.Debugf("dropping stale timer %s for closed lobby %s", entry.eventID, entry.gameID)
			continue
		}
		rt.applyUpdates(entry.gameID, lobby.OnEvent(entry.eventID))
	}
	rt.flush(ctx)
}

// applyUpdates folds a plug-in's Updates into the publish plan and timer
// queue.
func (rt *Runtime) applyUpdates(gameID uuid.UUID, u game.Updates) {
	if u.Changed {
		rt.plan.AddAll(gameID)
	}
	for _, t := range u.Timers {
		rt.queue.Add(gameID, t.EventID, t.At)
	}
}

func (rt *Runtime) handleConnected(ctx context.Context, e connectedEvent) {
	playerID := rt.auth.NewPlayerID()
	pc := &playerConn{connID: e.connID, write: e.write}
	rt.clients[e.connID] = playerID
	rt.players[playerID] = pc
	rt.logger.Debugf("connection %s opened, transient player %s", e.connID, playerID)
	rt.send(ctx, pc.write, protocol.ServerInfo(rt.version))
}

func (rt *Runtime) handleDisconnected(e disconnectedEvent) {
	playerID, ok := rt.clients[e.connID]
	if !ok {
		// Expected when the connection was displaced by a reconnect: its
		// records were already removed when the new connection claimed the
		// identity.
		rt.logger.Debugf("disconnect for unknown connection %s", e.connID)
		return
	}
	delete(rt.clients, e.connID)
	delete(rt.players, playerID)
	rt.logger.Debugf("connection %s closed, player %s offline", e.connID, playerID)

	// Membership survives the disconnect; only the plug-ins are told.
	for gameID, lobby := range rt.games {
		if lobby.HasMember(playerID) {
			rt.applyUpdates(gameID, lobby.OnDisconnect(playerID))
		}
	}
}

func (rt *Runtime) handleInvalid(ctx context.Context, e invalidMessageEvent) {
	playerID, ok := rt.clients[e.connID]
	if !ok {
		return
	}
	pc := rt.players[playerID]
	rt.send(ctx, pc.write, protocol.ServerSentError(e.err.Error()))
}

func (rt *Runtime) handleMessage(ctx context.Context, connID uuid.UUID, m *protocol.ClientMessage) {
	playerID, ok := rt.clients[connID]
	if !ok {
		rt.logger.Debugf("message from unknown connection %s", connID)
		return
	}
	pc := rt.players[playerID]

	// Identification gate: exactly one new_identity or identify per
	// connection, and nothing else before it.
	if pc.identified && m.IsIdentifyAttempt() {
		rt.send(ctx, pc.write, protocol.ReplyError(m.ID, protocol.ErrAlreadyIdentified))
		return
	}
	if !pc.identified && !m.IsIdentifyAttempt() {
		rt.send(ctx, pc.write, protocol.ReplyError(m.ID, protocol.ErrMustIdentifyFirst))
		return
	}

	switch m.Type {
	case protocol.ClientNewIdentity:
		rt.handleNewIdentity(ctx, pc, playerID, m)
	case protocol.ClientIdentify:
		rt.handleIdentify(ctx, connID, pc, playerID, m)
	case protocol.ClientGameModes:
		rt.send(ctx, pc.write, protocol.ReplyGameModes(m.ID, rt.registry.Names()))
	case protocol.ClientJoinedGames:
		rt.handleJoinedGames(ctx, pc, playerID, m)
	case protocol.ClientCreateGame:
		rt.handleCreateGame(ctx, pc, playerID, m)
	case protocol.ClientJoinGame:
		rt.handleJoinGame(ctx, pc, playerID, m)
	case protocol.ClientLeaveGame:
		rt.handleLeaveGame(ctx, pc, playerID, m)
	case protocol.ClientKickPlayer:
		rt.handleKickPlayer(ctx, pc, playerID, m)
	case protocol.ClientPromoteLeader:
		rt.handlePromoteLeader(ctx, pc, playerID, m)
	case protocol.ClientInner:
		rt.handleInner(ctx, pc, playerID, m)
	}
}

func (rt *Runtime) handleNewIdentity(ctx context.Context, pc *playerConn, playerID uuid.UUID, m *protocol.ClientMessage) {
	pc.identified = true
	id := protocol.Identity{
		PlayerID:           playerID,
		ReconnectionSecret: rt.auth.Sign(playerID),
	}
	rt.logger.Infof("player %s identified (new identity)", playerID)
	rt.send(ctx, pc.write, protocol.ReplyIdentity(m.ID, id))
}

func (rt *Runtime) handleIdentify(ctx context.Context, connID uuid.UUID, pc *playerConn, transientID uuid.UUID, m *protocol.ClientMessage) {
	claimed := *m.PlayerID
	if !rt.auth.Verify(claimed, m.ReconnectionSecret) {
		rt.send(ctx, pc.write, protocol.ReplyError(m.ID, protocol.ErrInvalidReconnectionSecret))
		return
	}

	// If another connection currently holds this identity, it loses: it gets
	// an error frame and is closed, and the claimer takes over.
	if prev, held := rt.players[claimed]; held && prev.connID != connID {
		rt.logger.Infof("player %s reclaimed by connection %s, displacing connection %s", claimed, connID, prev.connID)
		rt.send(ctx, prev.write, protocol.ServerSentError("identity claimed by another connection"))
		if err := prev.write.Close("identity claimed by another connection"); err != nil {
			rt.logger.Debugf("closing displaced connection %s: %v", prev.connID, err)
		}
		delete(rt.clients, prev.connID)
		delete(rt.players, claimed)
	}

	// Rebind this connection from its transient id to the claimed one.
	delete(rt.players, transientID)
	rt.clients[connID] = claimed
	pc.identified = true
	rt.players[claimed] = pc
	rt.logger.Infof("player %s identified (reconnect) on connection %s", claimed, connID)

	rt.send(ctx, pc.write, protocol.ReplyIdentity(m.ID, protocol.Identity{
		PlayerID:           claimed,
		ReconnectionSecret: m.ReconnectionSecret,
	}))

	// Bring the reconnected player back up to date in every lobby they are
	// still a member of, where the game allows it.
	for gameID, lobby := range rt.games {
		if !lobby.HasMember(claimed) || !lobby.CanReconnect() {
			continue
		}
		rt.applyUpdates(gameID, lobby.OnReconnect(claimed))
		rt.plan.Add(gameID, claimed)
	}
}

func (rt *Runtime) handleJoinedGames(ctx context.Context, pc *playerConn, playerID uuid.UUID, m *protocol.ClientMessage) {
	var joined []uuid.UUID
	for gameID, lobby := range rt.games {
		if lobby.HasMember(playerID) {
			joined = append(joined, gameID)
			rt.plan.Add(gameID, playerID)
		}
	}
	game.SortIDs(joined)
	rt.send(ctx, pc.write, protocol.ReplyJoinedGames(m.ID, joined))
}

func (rt *Runtime) handleCreateGame(ctx context.Context, pc *playerConn, playerID uuid.UUID, m *protocol.ClientMessage) {
	state, ok := rt.registry.Build(m.GameType)
	if !ok {
		rt.send(ctx, pc.write, protocol.ReplyError(m.ID, protocol.ErrInvalidGameFormat))
		return
	}

	gameID := uuid.New()
	lobby := game.NewLobby(gameID, m.GameType, state)
	lobby.AddMember(playerID)
	rt.games[gameID] = lobby
	rt.logger.Infof("lobby %s (%s) created by player %s", gameID, m.GameType, playerID)

	rt.applyUpdates(gameID, lobby.OnJoin(playerID))
	rt.plan.AddAll(gameID)
	rt.send(ctx, pc.write, protocol.ReplyGameCreated(m.ID, gameID))

	rt.recorder.Record(history.Record{GameID: gameID, PlayerID: playerID, Action: history.ActionLobbyCreated, Detail: m.GameType})
}

func (rt *Runtime) handleJoinGame(ctx context.Context, pc *playerConn, playerID uuid.UUID, m *protocol.ClientMessage) {
	gameID := *m.GameID
	lobby, exists := rt.games[gameID]
	if !exists {
		rt.send(ctx, pc.write, protocol.ReplyError(m.ID, protocol.ErrNoSuchGameLobby))
		return
	}
	if lobby.HasMember(playerID) {
		// Rejoining a lobby the player is already in is a harmless no-op;
		// just refresh their view.
		rt.plan.Add(gameID, playerID)
		rt.send(ctx, pc.write, protocol.ReplyJoinedToGame(m.ID, gameID))
		return
	}
	if !lobby.CanJoin() {
		// Closed lobbies are indistinguishable from absent ones.
		rt.send(ctx, pc.write, protocol.ReplyError(m.ID, protocol.ErrNoSuchGameLobby))
		return
	}

	lobby.AddMember(playerID)
	rt.applyUpdates(gameID, lobby.OnJoin(playerID))
	rt.plan.AddAll(gameID)
	rt.send(ctx, pc.write, protocol.ReplyJoinedToGame(m.ID, gameID))

	rt.recorder.Record(history.Record{GameID: gameID, PlayerID: playerID, Action: history.ActionPlayerJoined})
}

func (rt *Runtime) handleLeaveGame(ctx context.Context, pc *playerConn, playerID uuid.UUID, m *protocol.ClientMessage) {
	gameID := *m.GameID
	lobby, exists := rt.games[gameID]
	if !exists {
		rt.send(ctx, pc.write, protocol.ReplyError(m.ID, protocol.ErrNoSuchGameLobby))
		return
	}
	if !lobby.RemoveMember(playerID) {
		rt.send(ctx, pc.write, protocol.ReplyError(m.ID, protocol.ErrNotInThatGame))
		return
	}

	rt.applyUpdates(gameID, lobby.OnLeave(playerID))
	rt.plan.AddAll(gameID)
	rt.send(ctx, pc.write, protocol.ReplyOk(m.ID))

	rt.recorder.Record(history.Record{GameID: gameID, PlayerID: playerID, Action: history.ActionPlayerLeft})
	rt.disposeIfEmpty(gameID, lobby)
}

func (rt *Runtime) handleKickPlayer(ctx context.Context, pc *playerConn, playerID uuid.UUID, m *protocol.ClientMessage) {
	gameID, target := *m.GameID, *m.PlayerID
	lobby, exists := rt.games[gameID]
	if !exists {
		rt.send(ctx, pc.write, protocol.ReplyError(m.ID, protocol.ErrNoSuchGameLobby))
		return
	}
	if !lobby.HasMember(playerID) || lobby.Leader() != playerID || !lobby.HasMember(target) {
		rt.send(ctx, pc.write, protocol.ReplyError(m.ID, protocol.ErrNotInThatGame))
		return
	}

	lobby.RemoveMember(target)
	if target == playerID {
		// The leader kicking themselves is just leaving.
		rt.applyUpdates(gameID, lobby.OnLeave(target))
	} else {
		rt.applyUpdates(gameID, lobby.OnKick(target))
	}
	rt.plan.AddAll(gameID)
	rt.send(ctx, pc.write, protocol.ReplyOk(m.ID))

	rt.recorder.Record(history.Record{GameID: gameID, PlayerID: target, Action: history.ActionPlayerKicked})
	rt.disposeIfEmpty(gameID, lobby)
}

func (rt *Runtime) handlePromoteLeader(ctx context.Context, pc *playerConn, playerID uuid.UUID, m *protocol.ClientMessage) {
	gameID, target := *m.GameID, *m.PlayerID
	lobby, exists := rt.games[gameID]
	if !exists {
		rt.send(ctx, pc.write, protocol.ReplyError(m.ID, protocol.ErrNoSuchGameLobby))
		return
	}
	if !lobby.HasMember(playerID) || lobby.Leader() != playerID || !lobby.SetLeader(target) {
		rt.send(ctx, pc.write, protocol.ReplyError(m.ID, protocol.ErrNotInThatGame))
		return
	}

	rt.plan.AddAll(gameID)
	rt.send(ctx, pc.write, protocol.ReplyOk(m.ID))

	rt.recorder.Record(history.Record{GameID: gameID, PlayerID: target, Action: history.ActionLeaderPromoted})
}

func (rt *Runtime) handleInner(ctx context.Context, pc *playerConn, playerID uuid.UUID, m *protocol.ClientMessage) {
	gameID := *m.GameID
	lobby, exists := rt.games[gameID]
	if !exists {
		rt.send(ctx, pc.write, protocol.ReplyError(m.ID, protocol.ErrNoSuchGameLobby))
		return
	}
	if !lobby.HasMember(playerID) {
		rt.send(ctx, pc.write, protocol.ReplyError(m.ID, protocol.ErrNotInThatGame))
		return
	}

	updates, reply := lobby.OnMessage(playerID, m.Data)
	rt.applyUpdates(gameID, updates)

	data, err := json.Marshal(reply.Value)
	if err != nil {
		rt.logger.Warnf("marshal inner reply for lobby %s: %v", gameID, err)
		data = []byte("null")
	}
	if reply.Err {
		rt.send(ctx, pc.write, protocol.ReplyInnerError(m.ID, data))
	} else {
		rt.send(ctx, pc.write, protocol.ReplyInner(m.ID, data))
	}

	rt.recorder.Record(history.Record{GameID: gameID, PlayerID: playerID, Action: history.ActionInnerMessage})
}

func (rt *Runtime) disposeIfEmpty(gameID uuid.UUID, lobby *game.Lobby) {
	if !lobby.Empty() {
		return
	}
	delete(rt.games, gameID)
	rt.logger.Infof("lobby %s emptied, closing", gameID)
	// Stale timer entries for this lobby are discarded when they pop.
	rt.recorder.Record(history.Record{GameID: gameID, Action: history.ActionLobbyClosed})
}

// flush sends the game_info frames accumulated in the publish plan. Public
// state is serialized once per lobby; private state once per recipient.
// Write failures are swallowed, the connection's Disconnected event will
// reconcile.
func (rt *Runtime) flush(ctx context.Context) {
	if rt.plan.Empty() {
		return
	}
	for gameID, set := range rt.plan.targets {
		lobby, exists := rt.games[gameID]
		if !exists {
			// Planned before the lobby emptied in the same tick.
			continue
		}

		public, err := json.Marshal(lobby.PublicState())
		if err != nil {
			rt.logger.Warnf("marshal public state for lobby %s: %v", gameID, err)
			public = []byte("null")
		}
		members := lobby.SortedMembers()

		for _, member := range members {
			if set != nil && !set[member] {
				continue
			}
			pc, online := rt.players[member]
			if !online {
				continue
			}
			private, err := json.Marshal(lobby.StateForPlayer(member))
			if err != nil {
				rt.logger.Warnf("marshal private state for lobby %s player %s: %v", gameID, member, err)
				private = []byte("null")
			}
			rt.send(ctx, pc.write, protocol.ServerSentGameInfo(protocol.GameInfo{
				GameID:       gameID,
				Leader:       lobby.Leader(),
				Players:      members,
				PublicState:  public,
				PrivateState: private,
			}))
		}
	}
	rt.plan.Reset()
}

func (rt *Runtime) send(ctx context.Context, w WriteHalf, m *protocol.ServerMessage) {
	data, err := m.Encode()
	if err != nil {
		rt.logger.Warnf("encode %s frame: %v", m.Type, err)
		return
	}
	if err := w.Write(ctx, data); err != nil {
		rt.logger.Debugf("write %s frame: %v", m.Type, err)
	}
}

func (rt *Runtime) snapshot() Snapshot {
	s := Snapshot{
		Connections:   len(rt.clients),
		PendingTimers: rt.queue.Len(),
		GameModes:     rt.registry.Names(),
	}
	for _, pc := range rt.players {
		if pc.identified {
			s.IdentifiedPlayers++
		}
	}
	for gameID, lobby := range rt.games {
		s.Lobbies = append(s.Lobbies, LobbySummary{
			GameID:  gameID,
			Mode:    lobby.Mode,
			Leader:  lobby.Leader(),
			Members: lobby.MemberCount(),
		})
	}
	sort.Slice(s.Lobbies, func(i, j int) bool {
		return game.LessID(s.Lobbies[i].GameID, s.Lobbies[j].GameID)
	})
	return s
}
