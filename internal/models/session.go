package models

import "time"

// Transition records a change of flow inside a session's history
type Transition struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	Step string    `json:"step"`
	At   time.Time `json:"at"`
}

// Session is the durable per-user conversation state, keyed by phone number
type Session struct {
	Address      string                       `json:"address"`
	CurrentFlow  string                       `json:"current_flow"`
	CurrentStep  string                       `json:"current_step"`
	Data         map[string]map[string]string `json:"data"` // flow -> field -> value
	History      []Transition                 `json:"history"`
	CreatedAt    time.Time                    `json:"created_at"`
	LastActivity time.Time                    `json:"last_activity"`
}

// Field returns a collected value, or "" when absent
func (s *Session) Field(flow, key string) string {
	if s.Data == nil {
		return ""
	}
	return s.Data[flow][key]
}

// SetField stores a collected value under the given flow
func (s *Session) SetField(flow, key, value string) {
	if s.Data == nil {
		s.Data = make(map[string]map[string]string)
	}
	if s.Data[flow] == nil {
		s.Data[flow] = make(map[string]string)
	}
	s.Data[flow][key] = value
}

// Clone returns a deep copy so callers never share maps with the store
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Data = CloneData(s.Data)
	if s.History != nil {
		c.History = make([]Transition, len(s.History))
		copy(c.History, s.History)
	}
	return &c
}

// CloneData deep-copies a session data map
func CloneData(data map[string]map[string]string) map[string]map[string]string {
	if data == nil {
		return nil
	}
	out := make(map[string]map[string]string, len(data))
	for flow, fields := range data {
		inner := make(map[string]string, len(fields))
		for k, v := range fields {
			inner[k] = v
		}
		out[flow] = inner
	}
	return out
}

// SessionPatch is a shallow partial update; nil fields are left untouched
type SessionPatch struct {
	CurrentFlow *string
	CurrentStep *string
	Data        map[string]map[string]string
	ClearData   bool
}

// EngineStats are the aggregate counters kept alongside the sessions
type EngineStats struct {
	MessageCount int64     `json:"message_count"`
	UserCount    int64     `json:"user_count"`
	LastReset    time.Time `json:"last_reset"`
}

// GlobalState is the single persisted document holding every session
type GlobalState struct {
	BotActive    bool                `json:"bot_active"`
	BotStartTime time.Time           `json:"bot_start_time"`
	BotResumeAt  *time.Time          `json:"bot_resume_at,omitempty"`
	Sessions     map[string]*Session `json:"sessions"`
	Stats        EngineStats         `json:"stats"`
}

// NewGlobalState returns the default state used on first start or after a failed load
func NewGlobalState(now time.Time) *GlobalState {
	return &GlobalState{
		BotActive:    true,
		BotStartTime: now,
		Sessions:     make(map[string]*Session),
		Stats:        EngineStats{LastReset: now},
	}
}
