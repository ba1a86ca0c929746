// Package conversation holds the per-call state shared between the
// websocket bridge and the response pipeline: the running transcript,
// the caller's search criteria and basic call metadata. State lives for
// the duration of one call or one SMS exchange and is never persisted.
package conversation

import (
	"sync"
)

// Role identifies the speaker of a transcript message.
type Role string

const (
	// RoleUser is the caller side of the transcript.
	RoleUser Role = "user"
	// RoleAgent is the assistant side of the transcript.
	RoleAgent Role = "agent"
)

// Message is a single transcript utterance.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// State manages the conversation state for a single call.
//
// All methods are safe for concurrent use: transcript updates arrive on
// the bridge read loop while generation goroutines read snapshots and
// tool executions patch the criteria.
type State struct {
	mu sync.RWMutex

	callID     string
	fromNumber string
	toNumber   string

	transcript []Message
	criteria   SearchCriteria
}

// NewState creates state for the given call.
func NewState(callID string) *State {
	return &State{
		callID:     callID,
		transcript: make([]Message, 0),
	}
}

// CallID returns the platform call identifier.
func (s *State) CallID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callID
}

// SetCallInfo records caller metadata delivered with call details.
func (s *State) SetCallInfo(fromNumber, toNumber string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fromNumber = fromNumber
	s.toNumber = toNumber
}

// CallInfo returns the recorded caller metadata.
func (s *State) CallInfo() (fromNumber, toNumber string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fromNumber, s.toNumber
}

// SetTranscript replaces the transcript with the given snapshot.
// The platform sends the full transcript with every turn request, so
// replacement rather than append keeps us convergent with its view.
func (s *State) SetTranscript(msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = make([]Message, len(msgs))
	copy(s.transcript, msgs)
}

// Append adds a single message to the transcript.
func (s *State) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, msg)
}

// Transcript returns a copy of the current transcript.
func (s *State) Transcript() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]Message, len(s.transcript))
	copy(msgs, s.transcript)
	return msgs
}

// Len returns the number of transcript messages.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcript)
}

// LastUserMessage returns the most recent caller utterance, or empty.
func (s *State) LastUserMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.transcript) - 1; i >= 0; i-- {
		if s.transcript[i].Role == RoleUser {
			return s.transcript[i].Content
		}
	}
	return ""
}

// ApplyCriteria merges a criteria patch into the stored criteria.
func (s *State) ApplyCriteria(patch *SearchCriteria) {
	if patch == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.Merge(patch)
}

// Criteria returns a copy of the current search criteria.
func (s *State) Criteria() SearchCriteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}
