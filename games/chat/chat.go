// games/chat/chat.go
//
// Minimal reference game: a shared chat transcript. Clients send plain JSON
// strings as inner messages; lifecycle changes show up as server notices in
// the transcript. Useful both as a demo and as the smallest real exercise of
// the plug-in contract.
package chat

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"gamehub/internal/game"
)

// Message is one transcript entry. A nil Sender marks a server notice.
type Message struct {
	Sender *uuid.UUID `json:"sender"`
	Text   string     `json:"text"`
}

// Chat holds the transcript. All mutation happens in runtime callbacks, so
// no locking.
type Chat struct {
	game.Base
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// New constructs an empty chat room.
func New() game.Game {
	return &Chat{}
}

func (c *Chat) PublicState(*game.Common) any { return c }

func (c *Chat) notice(format string, args ...any) game.Updates {
	c.Messages = append(c.Messages, Message{Text: fmt.Sprintf(format, args...)})
	return game.Changed()
}

func (c *Chat) OnJoin(_ *game.Common, player uuid.UUID) game.Updates {
	return c.notice("joined: %s", player)
}

func (c *Chat) OnLeave(_ *game.Common, player uuid.UUID) game.Updates {
	return c.notice("left: %s", player)
}

func (c *Chat) OnKick(_ *game.Common, player uuid.UUID) game.Updates {
	return c.notice("kicked: %s", player)
}

func (c *Chat) OnDisconnect(_ *game.Common, player uuid.UUID) game.Updates {
	return c.notice("disconnected: %s", player)
}

func (c *Chat) OnReconnect(_ *game.Common, player uuid.UUID) game.Updates {
	return c.notice("reconnected: %s", player)
}

// OnMessage accepts a bare JSON string and appends it to the transcript.
func (c *Chat) OnMessage(_ *game.Common, player uuid.UUID, message json.RawMessage) (game.Updates, game.Reply) {
	var text string
	if err := json.Unmarshal(message, &text); err != nil {
		return game.None(), game.Fail("invalid message: expected a string")
	}
	sender := player
	c.Messages = append(c.Messages, Message{Sender: &sender, Text: text})
	return game.Changed(), game.Ok(nil)
}
