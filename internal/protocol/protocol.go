// internal/protocol/protocol.go
//
// Wire types for the client<->server WebSocket protocol. Every frame is a
// single JSON object tagged by a "type" field. Client messages carry a
// client-chosen "id" that the server echoes back as "reply_to" on the reply,
// so clients can match replies to requests.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Client message types.
const (
	ClientNewIdentity   = "new_identity"
	ClientIdentify      = "identify"
	ClientGameModes     = "game_modes"
	ClientJoinedGames   = "joined_games"
	ClientCreateGame    = "create_game"
	ClientJoinGame      = "join_game"
	ClientLeaveGame     = "leave_game"
	ClientKickPlayer    = "kick_player"
	ClientPromoteLeader = "promote_leader"
	ClientInner         = "inner"
)

// Server message types. Messages with a reply_to field are replies; the rest
// are server-initiated.
const (
	ServerOk           = "ok"
	ServerIdentity     = "identity"
	ServerGameModes    = "game_modes"
	ServerJoinedGames  = "joined_games"
	ServerGameCreated  = "game_created"
	ServerJoinedToGame = "joined_to_game"
	ServerInner        = "inner"
	ServerError        = "error"
	ServerGameInfo     = "game_info"
	ServerInfoGreeting = "server_info"
)

// ErrorKind is the fixed taxonomy of semantic error replies.
type ErrorKind string

const (
	ErrAlreadyIdentified         ErrorKind = "already_identified"
	ErrMustIdentifyFirst         ErrorKind = "must_identify_first"
	ErrInvalidGameFormat         ErrorKind = "invalid_game_format"
	ErrNoSuchGameLobby           ErrorKind = "no_such_game_lobby"
	ErrNotInThatGame             ErrorKind = "not_in_that_game"
	ErrInvalidReconnectionSecret ErrorKind = "invalid_reconnection_secret"
	ErrInner                     ErrorKind = "inner"
)

// Identity binds a player id to the reconnection secret issued for it. The
// secret is an opaque MAC tag; its length is fixed by the server's MAC
// algorithm.
type Identity struct {
	PlayerID           uuid.UUID `json:"player_id"`
	ReconnectionSecret []byte    `json:"reconnection_secret"`
}

// ClientMessage is a single client-to-server frame. Which optional fields are
// required depends on Type; Validate enforces that.
type ClientMessage struct {
	ID   uuid.UUID `json:"id"`
	Type string    `json:"type"`

	// create_game
	GameType string `json:"game_type,omitempty"`

	// join_game, leave_game, kick_player, promote_leader, inner
	GameID *uuid.UUID `json:"game_id,omitempty"`

	// identify, kick_player, promote_leader
	PlayerID *uuid.UUID `json:"player_id,omitempty"`

	// identify
	ReconnectionSecret []byte `json:"reconnection_secret,omitempty"`

	// inner: the game-specific payload, passed through untouched
	Data json.RawMessage `json:"data,omitempty"`
}

// IsIdentifyAttempt reports whether the message claims or requests an
// identity. These are the only messages allowed before identification and
// the only ones forbidden after it.
func (m *ClientMessage) IsIdentifyAttempt() bool {
	return m.Type == ClientNewIdentity || m.Type == ClientIdentify
}

// Validate checks that the fields required by the message type are present.
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case ClientNewIdentity, ClientGameModes, ClientJoinedGames:
		return nil
	case ClientIdentify:
		if m.PlayerID == nil || len(m.ReconnectionSecret) == 0 {
			return fmt.Errorf("identify requires player_id and reconnection_secret")
		}
		return nil
	case ClientCreateGame:
		if m.GameType == "" {
			return fmt.Errorf("create_game requires game_type")
		}
		return nil
	case ClientJoinGame, ClientLeaveGame:
		if m.GameID == nil {
			return fmt.Errorf("%s requires game_id", m.Type)
		}
		return nil
	case ClientKickPlayer, ClientPromoteLeader:
		if m.GameID == nil || m.PlayerID == nil {
			return fmt.Errorf("%s requires game_id and player_id", m.Type)
		}
		return nil
	case ClientInner:
		if m.GameID == nil {
			return fmt.Errorf("inner requires game_id")
		}
		return nil
	case "":
		return fmt.Errorf("missing message type")
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
}

// DecodeClientMessage parses and validates a single client frame.
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var m ClientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// GameInfo is the full per-player view of a lobby: common state plus the
// plug-in's public and private states. Players is sorted by the bytewise
// order of the ids for determinism.
type GameInfo struct {
	GameID       uuid.UUID       `json:"game_id"`
	Leader       uuid.UUID       `json:"leader"`
	Players      []uuid.UUID     `json:"players"`
	PublicState  json.RawMessage `json:"public_state"`
	PrivateState json.RawMessage `json:"private_state"`
}

// ServerMessage is a single server-to-client frame.
type ServerMessage struct {
	Type    string     `json:"type"`
	ReplyTo *uuid.UUID `json:"reply_to,omitempty"`

	Identity    *Identity       `json:"identity,omitempty"`
	GameModes   []string        `json:"game_modes,omitempty"`
	JoinedGames []uuid.UUID     `json:"joined_games,omitempty"`
	GameID      *uuid.UUID      `json:"game_id,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`

	// error replies and server-initiated errors
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`

	GameInfo *GameInfo `json:"game_info,omitempty"`

	// server_info greeting
	Version string `json:"version,omitempty"`
}

// Encode marshals the message to a JSON frame.
func (m *ServerMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

func replyTo(id uuid.UUID) *uuid.UUID {
	c := id
	return &c
}

// ReplyOk acknowledges a request that returns no data.
func ReplyOk(req uuid.UUID) *ServerMessage {
	return &ServerMessage{Type: ServerOk, ReplyTo: replyTo(req)}
}

// ReplyIdentity confirms a new or reclaimed identity.
func ReplyIdentity(req uuid.UUID, id Identity) *ServerMessage {
	return &ServerMessage{Type: ServerIdentity, ReplyTo: replyTo(req), Identity: &id}
}

// ReplyGameModes lists the registered game types.
func ReplyGameModes(req uuid.UUID, modes []string) *ServerMessage {
	return &ServerMessage{Type: ServerGameModes, ReplyTo: replyTo(req), GameModes: modes}
}

// ReplyJoinedGames lists the lobbies the player is a member of.
func ReplyJoinedGames(req uuid.UUID, games []uuid.UUID) *ServerMessage {
	return &ServerMessage{Type: ServerJoinedGames, ReplyTo: replyTo(req), JoinedGames: games}
}

// ReplyGameCreated confirms lobby creation.
func ReplyGameCreated(req uuid.UUID, gameID uuid.UUID) *ServerMessage {
	return &ServerMessage{Type: ServerGameCreated, ReplyTo: replyTo(req), GameID: &gameID}
}

// ReplyJoinedToGame confirms a join.
func ReplyJoinedToGame(req uuid.UUID, gameID uuid.UUID) *ServerMessage {
	return &ServerMessage{Type: ServerJoinedToGame, ReplyTo: replyTo(req), GameID: &gameID}
}

// ReplyInner carries a game plug-in's successful reply value.
func ReplyInner(req uuid.UUID, data json.RawMessage) *ServerMessage {
	return &ServerMessage{Type: ServerInner, ReplyTo: replyTo(req), Data: data}
}

// ReplyError reports a semantic error from the fixed taxonomy.
func ReplyError(req uuid.UUID, kind ErrorKind) *ServerMessage {
	return &ServerMessage{Type: ServerError, ReplyTo: replyTo(req), ErrorKind: kind}
}

// ReplyInnerError carries a game plug-in's error value.
func ReplyInnerError(req uuid.UUID, data json.RawMessage) *ServerMessage {
	return &ServerMessage{Type: ServerError, ReplyTo: replyTo(req), ErrorKind: ErrInner, Data: data}
}

// ServerSentError is a server-initiated error frame, used for protocol
// errors that are not tied to a request.
func ServerSentError(message string) *ServerMessage {
	return &ServerMessage{Type: ServerError, Message: message}
}

// ServerSentGameInfo is a server-initiated lobby state frame.
func ServerSentGameInfo(info GameInfo) *ServerMessage {
	return &ServerMessage{Type: ServerGameInfo, GameInfo: &info}
}

// ServerInfo is the greeting sent once on every new connection.
func ServerInfo(version string) *ServerMessage {
	return &ServerMessage{Type: ServerInfoGreeting, Version: version}
}
