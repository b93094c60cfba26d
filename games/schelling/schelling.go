// games/schelling/schelling.go
//
// A schelling-point guessing game: players propose questions, each round
// everyone answers one, and the point is to give the answer you think the
// others will give. Rounds end when enough players have answered, when the
// round timer expires, or when the leader forces an advance. This is the
// plug-in that exercises the runtime's timer queue.
package schelling

import (
	"encoding/json"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"gamehub/internal/game"
)

// Who may propose questions.
const (
	ProposeAll    = "all"
	ProposeLeader = "leader"
	ProposeNo     = "no"
)

// Question order when drawing from the proposal queue.
const (
	OrderRandom = "random"
	OrderFifo   = "fifo"
	OrderLifo   = "lifo"
)

// Settings are adjustable by the lobby leader between rounds.
type Settings struct {
	// Percentage of players whose answer ends the round, 0-100.
	Percentage int `json:"percentage"`
	// Round duration in seconds; the round ends at the deadline even if too
	// few players answered.
	Timer int `json:"timer"`
	// Who can propose questions.
	Propose string `json:"propose"`
	// Question draw order.
	Order string `json:"order"`
	// Hide who gave which answer in finished rounds.
	Anonymize bool `json:"anonymize"`
	// Delay between rounds, in seconds.
	Delay int `json:"delay"`
}

// DefaultSettings mirrors the classic defaults: majority ends the round, one
// minute per round, everyone can propose.
func DefaultSettings() Settings {
	return Settings{
		Percentage: 51,
		Timer:      60,
		Propose:    ProposeAll,
		Order:      OrderRandom,
		Anonymize:  false,
		Delay:      5,
	}
}

// Question is an open prompt, or a multiple-choice one when Choices is set.
type Question struct {
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices,omitempty"`
}

// Round couples a question with the answers received so far.
type Round struct {
	Question Question             `json:"question"`
	Guesses  map[uuid.UUID]string `json:"guesses"`
}

// Schelling is the game state. Only runtime callbacks touch it.
type Schelling struct {
	game.Base

	settings  Settings
	nicknames map[uuid.UUID]string
	history   []Round
	current   *Round
	queue     []Question
	running   bool

	// Pending timer event ids; stale ones are ignored in OnEvent.
	deadlineEvent  uuid.UUID
	nextRoundEvent uuid.UUID

	rng *rand.Rand
	now func() time.Time
}

// New constructs a paused game with default settings.
func New() game.Game {
	return &Schelling{
		settings:  DefaultSettings(),
		nicknames: make(map[uuid.UUID]string),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
}

// publicRound hides the answers of the running round, showing only who has
// answered.
type publicRound struct {
	Question Question    `json:"question"`
	Guessed  []uuid.UUID `json:"guessed"`
}

// finishedRound is a history entry. With anonymize on, only the sorted list
// of answers is exposed.
type finishedRound struct {
	Question Question             `json:"question"`
	Guesses  map[uuid.UUID]string `json:"guesses,omitempty"`
	Answers  []string             `json:"answers,omitempty"`
}

type publicState struct {
	Settings  Settings             `json:"settings"`
	Nicknames map[uuid.UUID]string `json:"nicknames"`
	History   []finishedRound      `json:"history"`
	Current   *publicRound         `json:"current_round"`
	Queue     []Question           `json:"question_queue"`
	Running   bool                 `json:"running"`
}

func (s *Schelling) PublicState(*game.Common) any {
	out := publicState{
		Settings:  s.settings,
		Nicknames: s.nicknames,
		History:   make([]finishedRound, 0, len(s.history)),
		Queue:     s.queue,
		Running:   s.running,
	}
	for _, r := range s.history {
		fr := finishedRound{Question: r.Question}
		if s.settings.Anonymize {
			for _, answer := range r.Guesses {
				fr.Answers = append(fr.Answers, answer)
			}
			sort.Strings(fr.Answers)
		} else {
			fr.Guesses = r.Guesses
		}
		out.History = append(out.History, fr)
	}
	if s.current != nil {
		pr := publicRound{Question: s.current.Question, Guessed: make([]uuid.UUID, 0, len(s.current.Guesses))}
		for player := range s.current.Guesses {
			pr.Guessed = append(pr.Guessed, player)
		}
		game.SortIDs(pr.Guessed)
		out.Current = &pr
	}
	return out
}

// StateForPlayer reveals the player's own answer for the running round.
func (s *Schelling) StateForPlayer(_ *game.Common, player uuid.UUID) any {
	if s.current == nil {
		return nil
	}
	guess, ok := s.current.Guesses[player]
	if !ok {
		return nil
	}
	return guess
}

func (s *Schelling) OnLeave(c *game.Common, player uuid.UUID) game.Updates {
	delete(s.nicknames, player)
	return game.Changed().Merge(s.maybeFinishRound(c))
}

func (s *Schelling) OnKick(c *game.Common, player uuid.UUID) game.Updates {
	return s.OnLeave(c, player)
}

// OnEvent handles the two timer kinds: the round deadline and the delayed
// start of the next round. Anything else is a stale timer from an earlier
// round.
func (s *Schelling) OnEvent(c *game.Common, eventID uuid.UUID) game.Updates {
	switch eventID {
	case s.deadlineEvent:
		if s.current == nil {
			return game.None()
		}
		return s.finishRound()
	case s.nextRoundEvent:
		if !s.running || s.current != nil {
			return game.None()
		}
		return s.startRound()
	default:
		return game.None()
	}
}

type userMessage struct {
	Type     string    `json:"type"`
	Nick     string    `json:"nick,omitempty"`
	Settings *Settings `json:"settings,omitempty"`
	Question *Question `json:"question,omitempty"`
	Guess    string    `json:"guess,omitempty"`
}

func (s *Schelling) OnMessage(c *game.Common, player uuid.UUID, message json.RawMessage) (game.Updates, game.Reply) {
	var msg userMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return game.None(), game.Fail("invalid message")
	}

	switch msg.Type {
	case "nick":
		s.nicknames[player] = msg.Nick
		return game.Changed(), game.Ok(nil)

	case "settings":
		if player != c.Leader {
			return game.None(), game.Fail("only leader can change settings")
		}
		if msg.Settings == nil {
			return game.None(), game.Fail("missing settings")
		}
		s.settings = *msg.Settings
		return game.Changed(), game.Ok(nil)

	case "question":
		switch s.settings.Propose {
		case ProposeLeader:
			if player != c.Leader {
				return game.None(), game.Fail("only leader can propose questions")
			}
		case ProposeNo:
			return game.None(), game.Fail("proposing questions is not allowed")
		}
		if msg.Question == nil || msg.Question.Prompt == "" {
			return game.None(), game.Fail("missing question")
		}
		s.queue = append(s.queue, *msg.Question)
		updates := game.Changed()
		if s.running && s.current == nil {
			updates = updates.Merge(s.startRound())
		}
		return updates, game.Ok(nil)

	case "guess":
		if s.current == nil {
			return game.None(), game.Fail("no question is open")
		}
		s.current.Guesses[player] = msg.Guess
		return game.Changed().Merge(s.maybeFinishRound(c)), game.Ok(nil)

	case "start":
		if player != c.Leader {
			return game.None(), game.Fail("only leader can start the game")
		}
		s.running = true
		updates := game.Changed()
		if s.current == nil {
			updates = updates.Merge(s.startRound())
		}
		return updates, game.Ok(nil)

	case "pause":
		if player != c.Leader {
			return game.None(), game.Fail("only leader can pause the game")
		}
		s.running = false
		return game.Changed(), game.Ok(nil)

	case "advance":
		if player != c.Leader {
			return game.None(), game.Fail("only leader can advance the game")
		}
		if s.current != nil {
			return s.finishRound(), game.Ok(nil)
		}
		if s.running {
			return s.startRound(), game.Ok(nil)
		}
		return game.None(), game.Ok(nil)

	default:
		return game.None(), game.Fail("invalid message")
	}
}

// maybeFinishRound ends the running round once the configured share of
// members has answered.
func (s *Schelling) maybeFinishRound(c *game.Common) game.Updates {
	if s.current == nil || len(c.Members) == 0 {
		return game.None()
	}
	answered := 0
	for player := range s.current.Guesses {
		if c.Members[player] {
			answered++
		}
	}
	if answered*100 >= s.settings.Percentage*len(c.Members) {
		return s.finishRound()
	}
	return game.None()
}

// finishRound archives the running round and, if the game is running,
// schedules the next one after the configured delay.
func (s *Schelling) finishRound() game.Updates {
	s.history = append(s.history, *s.current)
	s.current = nil
	s.deadlineEvent = uuid.Nil

	updates := game.Changed()
	if s.running && len(s.queue) > 0 {
		s.nextRoundEvent = uuid.New()
		updates = updates.WithTimer(s.now().Add(time.Duration(s.settings.Delay)*time.Second), s.nextRoundEvent)
	}
	return updates
}

// startRound draws a question in the configured order and arms the round
// deadline. A no-op when the proposal queue is empty.
func (s *Schelling) startRound() game.Updates {
	if len(s.queue) == 0 {
		return game.None()
	}

	var i int
	switch s.settings.Order {
	case OrderFifo:
		i = 0
	case OrderLifo:
		i = len(s.queue) - 1
	default:
		i = s.rng.Intn(len(s.queue))
	}
	question := s.queue[i]
	s.queue = append(s.queue[:i], s.queue[i+1:]...)

	s.current = &Round{Question: question, Guesses: make(map[uuid.UUID]string)}
	s.nextRoundEvent = uuid.Nil
	s.deadlineEvent = uuid.New()
	return game.Changed().WithTimer(s.now().Add(time.Duration(s.settings.Timer)*time.Second), s.deadlineEvent)
}
