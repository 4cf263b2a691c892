package session

import (
	"strings"
	"sync"

	"github.com/MrWong99/vaani/pkg/types"
)

// DefaultTurnLimit is the number of turns after which a conversation is
// truncated back to its persona.
const DefaultTurnLimit = 6

// charsPerToken is the heuristic ratio used for token estimation.
const charsPerToken = 4

// Conversation is the ordered message history sent to the completion service.
// The first message is always the system persona and is never evicted.
//
// All methods are safe for concurrent use.
type Conversation struct {
	mu       sync.Mutex
	messages []types.Message
}

// NewConversation returns a conversation holding only the persona.
func NewConversation(persona string) *Conversation {
	return &Conversation{
		messages: []types.Message{{Role: types.RoleSystem, Content: persona}},
	}
}

// AppendUser appends the user's utterance tagged with the language the reply
// must be written in, e.g. "hello [Respond in EN]".
func (c *Conversation) AppendUser(text, lang string) {
	content := text + " [Respond in " + strings.ToUpper(lang) + "]"
	c.mu.Lock()
	c.messages = append(c.messages, types.Message{Role: types.RoleUser, Content: content})
	c.mu.Unlock()
}

// AppendAssistant appends a reply verbatim.
func (c *Conversation) AppendAssistant(text string) {
	c.mu.Lock()
	c.messages = append(c.messages, types.Message{Role: types.RoleAssistant, Content: text})
	c.mu.Unlock()
}

// MaybeReset advances the turn counter. When the advanced value reaches a
// positive limit the conversation is cut back to the persona and 0 is
// returned; otherwise the advanced value is returned.
func (c *Conversation) MaybeReset(counter, limit int) int {
	next := counter + 1
	if limit > 0 && next >= limit {
		c.Reset()
		return 0
	}
	return next
}

// Messages returns a copy of the history, persona first.
func (c *Conversation) Messages() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages, persona included.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Truncate keeps the first n messages. n below 1 still keeps the persona.
func (c *Conversation) Truncate(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n = max(n, 1)
	if n < len(c.messages) {
		clear(c.messages[n:])
		c.messages = c.messages[:n]
	}
}

// Reset drops everything but the persona.
func (c *Conversation) Reset() { c.Truncate(1) }

// Persona returns the system message text.
func (c *Conversation) Persona() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages[0].Content
}

// TokenEstimate returns a rough token count for the whole history using the
// 1-token-per-4-characters heuristic.
func (c *Conversation) TokenEstimate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, m := range c.messages {
		total += estimateTokens(m)
	}
	return total
}

func estimateTokens(m types.Message) int {
	chars := len(m.Content) + len(m.Role)
	tokens := chars / charsPerToken
	if tokens == 0 && chars > 0 {
		tokens = 1
	}
	return tokens
}
