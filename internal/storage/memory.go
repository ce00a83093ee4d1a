package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Ananth-NQI/segurobot-backend/internal/models"
	"github.com/google/uuid"
)

// MemoryStore holds all data in memory (tests and local development)
type MemoryStore struct {
	quotes    []*models.QuoteRecord
	tickets   map[string]*models.SupportTicket
	snapshots []*models.StateSnapshot

	// Mutexes for thread safety
	quoteMu    sync.RWMutex
	ticketMu   sync.RWMutex
	snapshotMu sync.RWMutex

	// Counters for ID generation
	quoteCounter  uint
	ticketCounter uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets: make(map[string]*models.SupportTicket),
	}
}

// Quote operations
func (m *MemoryStore) CreateQuote(quote *models.QuoteRecord) (*models.QuoteRecord, error) {
	m.quoteMu.Lock()
	defer m.quoteMu.Unlock()

	m.quoteCounter++
	stored := *quote
	stored.ID = m.quoteCounter
	if stored.RecordID == "" {
		stored.RecordID = uuid.NewString()
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt

	m.quotes = append(m.quotes, &stored)
	return &stored, nil
}

func (m *MemoryStore) ListQuotes(limit int) ([]*models.QuoteRecord, error) {
	m.quoteMu.RLock()
	defer m.quoteMu.RUnlock()

	// Newest first, matching the database store
	var out []*models.QuoteRecord
	for i := len(m.quotes) - 1; i >= 0; i-- {
		out = append(out, m.quotes[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) GetQuotesByPhone(phone string) ([]*models.QuoteRecord, error) {
	m.quoteMu.RLock()
	defer m.quoteMu.RUnlock()

	var out []*models.QuoteRecord
	for _, q := range m.quotes {
		if q.Phone == phone {
			out = append(out, q)
		}
	}
	return out, nil
}

// Support operations
func (m *MemoryStore) CreateSupportTicket(ticket *models.SupportTicket) (*models.SupportTicket, error) {
	m.ticketMu.Lock()
	defer m.ticketMu.Unlock()

	m.ticketCounter++
	stored := *ticket
	stored.ID = m.ticketCounter
	if stored.TicketID == "" {
		stored.TicketID = fmt.Sprintf("TK%d", time.Now().UnixNano())
	}
	if _, exists := m.tickets[stored.TicketID]; exists {
		return nil, fmt.Errorf("ticket %s already exists", stored.TicketID)
	}
	if stored.IssueType == "" {
		stored.IssueType = models.IssueTypeHandoff
	}
	if stored.Status == "" {
		stored.Status = models.TicketStatusOpen
	}
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt

	m.tickets[stored.TicketID] = &stored
	return &stored, nil
}

func (m *MemoryStore) GetSupportTicket(ticketID string) (*models.SupportTicket, error) {
	m.ticketMu.RLock()
	defer m.ticketMu.RUnlock()

	ticket, exists := m.tickets[ticketID]
	if !exists {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, ErrNotFound)
	}
	return ticket, nil
}

func (m *MemoryStore) GetSupportTicketsByUser(userPhone string) ([]*models.SupportTicket, error) {
	m.ticketMu.RLock()
	defer m.ticketMu.RUnlock()

	var out []*models.SupportTicket
	for _, t := range m.tickets {
		if t.UserPhone == userPhone {
			out = append(out, t)
		}
	}
	sortTickets(out)
	return out, nil
}

func (m *MemoryStore) ListSupportTickets(status string) ([]*models.SupportTicket, error) {
	m.ticketMu.RLock()
	defer m.ticketMu.RUnlock()

	var out []*models.SupportTicket
	for _, t := range m.tickets {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	sortTickets(out)
	return out, nil
}

func (m *MemoryStore) UpdateSupportTicket(ticket *models.SupportTicket) error {
	m.ticketMu.Lock()
	defer m.ticketMu.Unlock()

	if _, exists := m.tickets[ticket.TicketID]; !exists {
		return fmt.Errorf("ticket %s: %w", ticket.TicketID, ErrNotFound)
	}
	ticket.UpdatedAt = time.Now()
	m.tickets[ticket.TicketID] = ticket
	return nil
}

// Snapshot operations
func (m *MemoryStore) SaveSnapshot(snapshot *models.StateSnapshot) error {
	m.snapshotMu.Lock()
	defer m.snapshotMu.Unlock()

	stored := *snapshot
	stored.Document = append([]byte(nil), snapshot.Document...)
	if stored.SnapshotID == "" {
		stored.SnapshotID = uuid.NewString()
	}
	if stored.TakenAt.IsZero() {
		stored.TakenAt = time.Now()
	}
	if stored.Kind == models.SnapshotKindCurrent {
		kept := m.snapshots[:0]
		for _, s := range m.snapshots {
			if s.Kind != models.SnapshotKindCurrent {
				kept = append(kept, s)
			}
		}
		m.snapshots = kept
	}
	m.snapshots = append(m.snapshots, &stored)
	return nil
}

func (m *MemoryStore) LatestSnapshot(kind string) (*models.StateSnapshot, error) {
	m.snapshotMu.RLock()
	defer m.snapshotMu.RUnlock()

	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].Kind == kind {
			return m.snapshots[i], nil
		}
	}
	return nil, fmt.Errorf("%s snapshot: %w", kind, ErrNotFound)
}

func sortTickets(tickets []*models.SupportTicket) {
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].ID > tickets[j].ID
	})
}
