package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Ananth-NQI/segurobot-backend/internal/logger"
	"github.com/Ananth-NQI/segurobot-backend/internal/models"
)

// Default flow and step for new or reset sessions
const (
	DefaultFlow = "welcome"
	DefaultStep = "start"
)

// ErrSessionNotFound is returned for unknown addresses
var ErrSessionNotFound = errors.New("session not found")

// SessionManager owns the GlobalState: every session, the counters and the
// bot toggle. All reads return copies; all writes go through its methods.
type SessionManager struct {
	mu      sync.RWMutex
	state   *models.GlobalState
	backend SnapshotBackend
	log     *logger.Logger
	now     func() time.Time

	flushMu sync.Mutex
}

// NewSessionManager creates a session manager with default state. Call Load
// to restore the persisted document.
func NewSessionManager(backend SnapshotBackend, log *logger.Logger) *SessionManager {
	return &SessionManager{
		state:   models.NewGlobalState(time.Now()),
		backend: backend,
		log:     log,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (sm *SessionManager) SetClock(now func() time.Time) {
	sm.mu.Lock()
	sm.now = now
	sm.mu.Unlock()
}

// Load restores state from the backend. A missing or unreadable document
// leaves fresh default state in place; the error is returned for logging only.
func (sm *SessionManager) Load(ctx context.Context) error {
	if sm.backend == nil {
		return nil
	}
	doc, err := sm.backend.Read(ctx)
	if err != nil {
		sm.reset()
		if errors.Is(err, ErrNoSnapshot) {
			sm.log.Info("No saved state found, starting fresh")
			return nil
		}
		return fmt.Errorf("failed to load state: %w", err)
	}

	state, err := decodeState(doc)
	if err != nil {
		sm.reset()
		return fmt.Errorf("failed to parse state: %w", err)
	}

	sm.mu.Lock()
	sm.state = state
	sm.mu.Unlock()

	sm.log.Info("State restored", "sessions", len(state.Sessions), "bot_active", state.BotActive)
	return nil
}

func (sm *SessionManager) reset() {
	sm.mu.Lock()
	sm.state = models.NewGlobalState(sm.now())
	sm.mu.Unlock()
}

func decodeState(doc []byte) (*models.GlobalState, error) {
	var state models.GlobalState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, err
	}
	if state.Sessions == nil {
		state.Sessions = make(map[string]*models.Session)
	}
	for addr, s := range state.Sessions {
		if s == nil {
			delete(state.Sessions, addr)
			continue
		}
		if s.Address == "" {
			s.Address = addr
		}
	}
	return &state, nil
}

// GetOrCreate returns the session for address, creating it with the default
// flow on first contact. New sessions bump the distinct-user counter.
func (sm *SessionManager) GetOrCreate(address string) *models.Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if s, ok := sm.state.Sessions[address]; ok {
		return s.Clone()
	}

	now := sm.now()
	s := &models.Session{
		Address:      address,
		CurrentFlow:  DefaultFlow,
		CurrentStep:  DefaultStep,
		Data:         make(map[string]map[string]string),
		CreatedAt:    now,
		LastActivity: now,
	}
	sm.state.Sessions[address] = s
	sm.state.Stats.UserCount++
	sm.log.Debug("Session created", "address", address)
	return s.Clone()
}

// Get returns a copy of an existing session
func (sm *SessionManager) Get(address string) (*models.Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	s, ok := sm.state.Sessions[address]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

// Update shallow-merges the patch into the session. When the flow changes,
// a history transition is appended before the merge.
func (sm *SessionManager) Update(address string, patch models.SessionPatch) (*models.Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, ok := sm.state.Sessions[address]
	if !ok {
		return nil, ErrSessionNotFound
	}

	now := sm.now()
	if patch.CurrentFlow != nil && *patch.CurrentFlow != s.CurrentFlow {
		step := s.CurrentStep
		if patch.CurrentStep != nil {
			step = *patch.CurrentStep
		}
		s.History = append(s.History, models.Transition{
			From: s.CurrentFlow,
			To:   *patch.CurrentFlow,
			Step: step,
			At:   now,
		})
		s.CurrentFlow = *patch.CurrentFlow
	}
	if patch.CurrentStep != nil {
		s.CurrentStep = *patch.CurrentStep
	}
	if patch.ClearData {
		s.Data = make(map[string]map[string]string)
	}
	if patch.Data != nil {
		s.Data = models.CloneData(patch.Data)
	}
	s.LastActivity = now

	return s.Clone(), nil
}

// Touch refreshes lastActivity without changing anything else
func (sm *SessionManager) Touch(address string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.state.Sessions[address]; ok {
		s.LastActivity = sm.now()
	}
}

// Remove deletes a session; it reports whether one existed
func (sm *SessionManager) Remove(address string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.state.Sessions[address]; !ok {
		return false
	}
	delete(sm.state.Sessions, address)
	return true
}

// SweepInactive removes sessions idle for longer than maxIdle
func (sm *SessionManager) SweepInactive(maxIdle time.Duration) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	cutoff := sm.now().Add(-maxIdle)
	removed := 0
	for addr, s := range sm.state.Sessions {
		if s.LastActivity.Before(cutoff) {
			delete(sm.state.Sessions, addr)
			removed++
		}
	}
	if removed > 0 {
		sm.log.Info("Inactive sessions removed", "count", removed, "max_idle", maxIdle.String())
	}
	return removed
}

// ListSessions returns copies of all sessions, most recently active first
func (sm *SessionManager) ListSessions() []*models.Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	out := make([]*models.Session, 0, len(sm.state.Sessions))
	for _, s := range sm.state.Sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

// IncrementMessages bumps the processed-message counter
func (sm *SessionManager) IncrementMessages() {
	sm.mu.Lock()
	sm.state.Stats.MessageCount++
	sm.mu.Unlock()
}

// ResetStats zeroes the counters
func (sm *SessionManager) ResetStats() {
	sm.mu.Lock()
	sm.state.Stats = models.EngineStats{LastReset: sm.now()}
	sm.mu.Unlock()
}

// BotActive reports the global automation toggle
func (sm *SessionManager) BotActive() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state.BotActive
}

// BotResumeAt returns the pending auto-resume deadline, if any
func (sm *SessionManager) BotResumeAt() *time.Time {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.state.BotResumeAt == nil {
		return nil
	}
	t := *sm.state.BotResumeAt
	return &t
}

// SetBotActive flips the global toggle. Use Availability for timed disables.
func (sm *SessionManager) SetBotActive(active bool, resumeAt *time.Time) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if active && !sm.state.BotActive {
		sm.state.BotStartTime = sm.now()
	}
	sm.state.BotActive = active
	if active {
		sm.state.BotResumeAt = nil
	} else {
		sm.state.BotResumeAt = resumeAt
	}
}

// SessionStats is the aggregate view exposed on the control surface
type SessionStats struct {
	BotActive      bool           `json:"bot_active"`
	BotStartTime   time.Time      `json:"bot_start_time"`
	BotResumeAt    *time.Time     `json:"bot_resume_at,omitempty"`
	TotalSessions  int            `json:"total_sessions"`
	SessionsByFlow map[string]int `json:"sessions_by_flow"`
	MessageCount   int64          `json:"message_count"`
	UserCount      int64          `json:"user_count"`
	LastReset      time.Time      `json:"last_reset"`
}

// Stats returns current session statistics
func (sm *SessionManager) Stats() SessionStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	stats := SessionStats{
		BotActive:      sm.state.BotActive,
		BotStartTime:   sm.state.BotStartTime,
		BotResumeAt:    sm.state.BotResumeAt,
		TotalSessions:  len(sm.state.Sessions),
		SessionsByFlow: make(map[string]int),
		MessageCount:   sm.state.Stats.MessageCount,
		UserCount:      sm.state.Stats.UserCount,
		LastReset:      sm.state.Stats.LastReset,
	}
	for _, s := range sm.state.Sessions {
		stats.SessionsByFlow[s.CurrentFlow]++
	}
	return stats
}

// Snapshot returns a deep, point-in-time copy of the whole state
func (sm *SessionManager) Snapshot() *models.GlobalState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	cp := *sm.state
	cp.Sessions = make(map[string]*models.Session, len(sm.state.Sessions))
	for addr, s := range sm.state.Sessions {
		cp.Sessions[addr] = s.Clone()
	}
	if sm.state.BotResumeAt != nil {
		t := *sm.state.BotResumeAt
		cp.BotResumeAt = &t
	}
	return &cp
}

// Flush serializes a snapshot and writes it to the backend
func (sm *SessionManager) Flush(ctx context.Context) error {
	if sm.backend == nil {
		return nil
	}
	sm.flushMu.Lock()
	defer sm.flushMu.Unlock()

	doc, err := json.Marshal(sm.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := sm.backend.Write(ctx, doc); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// Backup writes a timestamped copy of the current state
func (sm *SessionManager) Backup(ctx context.Context) (string, error) {
	if sm.backend == nil {
		return "", errors.New("no state backend configured")
	}
	sm.flushMu.Lock()
	defer sm.flushMu.Unlock()

	doc, err := json.MarshalIndent(sm.Snapshot(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}
	location, err := sm.backend.Backup(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	sm.log.Info("State backup written", "location", location)
	return location, nil
}
