package bot

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	maxConversations       = 256
	maxExchangesPerChannel = 20
)

// Exchange is one question/answer pair in a channel's history.
type Exchange struct {
	Question string
	Answer   string
	AskedAt  time.Time
}

// ConversationStore keeps per-channel question history with bounded growth.
// The oldest channel is evicted when the channel cap is hit, and each channel
// keeps only its most recent exchanges.
type ConversationStore struct {
	mu       sync.Mutex
	channels map[string]*conversation
}

type conversation struct {
	exchanges []Exchange
	touchedAt time.Time
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		channels: make(map[string]*conversation),
	}
}

// Record appends an exchange to a channel's history.
func (s *ConversationStore) Record(channelID, question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.channels[channelID]
	if !ok {
		if len(s.channels) >= maxConversations {
			s.evictOldestLocked()
		}
		conv = &conversation{}
		s.channels[channelID] = conv
	}

	conv.exchanges = append(conv.exchanges, Exchange{
		Question: question,
		Answer:   answer,
		AskedAt:  time.Now(),
	})
	if len(conv.exchanges) > maxExchangesPerChannel {
		conv.exchanges = conv.exchanges[len(conv.exchanges)-maxExchangesPerChannel:]
	}
	conv.touchedAt = time.Now()
}

// History returns a copy of a channel's exchanges, oldest first.
func (s *ConversationStore) History(channelID string) []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.channels[channelID]
	if !ok {
		return nil
	}

	out := make([]Exchange, len(conv.exchanges))
	copy(out, conv.exchanges)
	return out
}

// Clear drops a channel's history. Returns true if history existed.
func (s *ConversationStore) Clear(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.channels[channelID]
	delete(s.channels, channelID)
	return ok
}

// Len reports how many channels have history.
func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}

// withHistory prefixes a question with the channel's prior exchanges so
// follow-up questions carry their context.
func withHistory(history []Exchange, question string) string {
	if len(history) == 0 {
		return question
	}

	var b strings.Builder
	b.WriteString("Earlier in this conversation:\n")
	for _, ex := range history {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", ex.Question, ex.Answer)
	}
	b.WriteString("\nCurrent question: ")
	b.WriteString(question)
	return b.String()
}

func (s *ConversationStore) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, conv := range s.channels {
		if oldestID == "" || conv.touchedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = conv.touchedAt
		}
	}
	if oldestID != "" {
		delete(s.channels, oldestID)
	}
}
