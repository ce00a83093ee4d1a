package services

import (
	"sync"
	"time"

	"github.com/Ananth-NQI/segurobot-backend/internal/logger"
)

// Availability turns automated replies off for a window and back on when the
// window ends. Only one resume timer is ever pending.
type Availability struct {
	sessions *SessionManager
	log      *logger.Logger

	mu         sync.Mutex
	cancel     func() bool
	generation int
	now        func() time.Time
	schedule   func(d time.Duration, f func()) func() bool
}

func NewAvailability(sessions *SessionManager, log *logger.Logger) *Availability {
	return &Availability{
		sessions: sessions,
		log:      log,
		now:      time.Now,
		schedule: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
}

// Active reports whether the bot currently answers users
func (a *Availability) Active() bool {
	return a.sessions.BotActive()
}

// Disable suspends the bot. d > 0 schedules an automatic resume and returns
// its deadline; d <= 0 disables until Enable is called.
func (a *Availability) Disable(d time.Duration) *time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()

	if d <= 0 {
		a.sessions.SetBotActive(false, nil)
		a.log.Info("⏸️  Bot disabled until manually enabled")
		return nil
	}

	resumeAt := a.now().Add(d)
	a.sessions.SetBotActive(false, &resumeAt)
	a.armLocked(d)
	a.log.Info("⏸️  Bot disabled", "minutes", d.Minutes(), "resume_at", resumeAt)
	return &resumeAt
}

// Enable resumes the bot immediately and cancels any pending resume timer
func (a *Availability) Enable() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()
	if !a.sessions.BotActive() {
		a.log.Info("▶️  Bot enabled")
	}
	a.sessions.SetBotActive(true, nil)
}

// Restore re-arms the resume timer after a restart, using the deadline that
// was persisted with the state. A deadline already in the past resumes now.
func (a *Availability) Restore() {
	if a.sessions.BotActive() {
		return
	}
	resumeAt := a.sessions.BotResumeAt()
	if resumeAt == nil {
		a.log.Warn("Bot restored in disabled state with no resume deadline")
		return
	}

	remaining := resumeAt.Sub(a.now())
	if remaining <= 0 {
		a.Enable()
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
	a.armLocked(remaining)
	a.log.Info("Bot resume re-scheduled", "resume_at", *resumeAt)
}

// Stop cancels the pending resume timer without changing the toggle
func (a *Availability) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *Availability) armLocked(d time.Duration) {
	a.generation++
	gen := a.generation
	a.cancel = a.schedule(d, func() {
		a.mu.Lock()
		// A newer Disable, Enable or Stop replaced this timer
		if gen != a.generation {
			a.mu.Unlock()
			return
		}
		a.cancel = nil
		a.sessions.SetBotActive(true, nil)
		a.mu.Unlock()
		a.log.Info("▶️  Bot automatically re-enabled")
	})
}

func (a *Availability) stopLocked() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.generation++
}
