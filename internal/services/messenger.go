package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Ananth-NQI/segurobot-backend/internal/logger"
)

type outboundKind int

const (
	outboundText outboundKind = iota
	outboundList
)

type outbound struct {
	kind outboundKind
	to   string
	text string
	list OptionList
}

// Messenger delivers outbound messages through a transport Sender. While the
// transport is not ready, sends are queued and later flushed in submission
// order. Consecutive messages to the same address are spaced by delay.
type Messenger struct {
	transport Sender
	log       *logger.Logger
	delay     time.Duration

	mu       sync.Mutex
	ready    bool
	pending  []outbound
	lastSent map[string]time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewMessenger wraps a transport. ready=false starts in queueing mode.
func NewMessenger(transport Sender, delay time.Duration, ready bool, log *logger.Logger) *Messenger {
	return &Messenger{
		transport: transport,
		log:       log,
		delay:     delay,
		ready:     ready,
		lastSent:  make(map[string]time.Time),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SendText sends or queues a plain text message
func (m *Messenger) SendText(ctx context.Context, to, text string) error {
	return m.submit(ctx, outbound{kind: outboundText, to: to, text: text})
}

// SendOptionList sends or queues an option list; it degrades to the numbered
// text rendering when the list is invalid or the transport rejects it.
func (m *Messenger) SendOptionList(ctx context.Context, to string, list OptionList) error {
	return m.submit(ctx, outbound{kind: outboundList, to: to, list: list})
}

func (m *Messenger) submit(ctx context.Context, msg outbound) error {
	m.mu.Lock()
	if !m.ready {
		m.pending = append(m.pending, msg)
		m.mu.Unlock()
		m.log.Debug("Transport not ready, message queued", "to", msg.to)
		return nil
	}
	m.mu.Unlock()
	return m.deliver(ctx, msg)
}

// MarkReady flushes queued messages in order, then switches to direct sends.
// Messages submitted during the flush are queued behind the backlog.
func (m *Messenger) MarkReady(ctx context.Context) {
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.ready = true
			m.mu.Unlock()
			return
		}
		batch := m.pending
		m.pending = nil
		m.mu.Unlock()

		m.log.Info("Flushing queued messages", "count", len(batch))
		for _, msg := range batch {
			if err := m.deliver(ctx, msg); err != nil {
				m.log.Warn("Queued message failed", "to", msg.to, "error", err)
			}
		}
	}
}

// MarkNotReady switches back to queueing, e.g. after a transport disconnect
func (m *Messenger) MarkNotReady() {
	m.mu.Lock()
	m.ready = false
	m.mu.Unlock()
}

// Ready reports whether sends go straight to the transport
func (m *Messenger) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Pending returns the number of queued messages
func (m *Messenger) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Messenger) deliver(ctx context.Context, msg outbound) error {
	if err := m.pace(ctx, msg.to); err != nil {
		return err
	}

	var err error
	switch msg.kind {
	case outboundList:
		err = m.deliverList(ctx, msg.to, msg.list)
	default:
		err = m.transport.SendText(ctx, msg.to, msg.text)
	}

	m.mu.Lock()
	m.lastSent[msg.to] = m.now()
	m.mu.Unlock()

	if err != nil {
		m.log.Error("❌ Failed to send WhatsApp message", "to", msg.to, "error", err)
	}
	return err
}

func (m *Messenger) deliverList(ctx context.Context, to string, list OptionList) error {
	if err := list.Validate(); err != nil {
		m.log.Warn("Option list rejected, sending text fallback", "to", to, "error", err)
		return m.transport.SendText(ctx, to, list.RenderText())
	}
	err := m.transport.SendOptionList(ctx, to, list)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrInteractiveUnsupported) {
		m.log.Warn("Option list send failed, sending text fallback", "to", to, "error", err)
	}
	return m.transport.SendText(ctx, to, list.RenderText())
}

func (m *Messenger) pace(ctx context.Context, to string) error {
	if m.delay <= 0 {
		return nil
	}
	m.mu.Lock()
	last, ok := m.lastSent[to]
	now := m.now()
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.sleep(ctx, m.delay-now.Sub(last))
}

var (
	_ Sender = (*Messenger)(nil)
	_ Sender = (*TwilioService)(nil)
	_ Sender = (*LogTransport)(nil)
)
