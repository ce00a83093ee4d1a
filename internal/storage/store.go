package storage

import (
	"errors"

	"github.com/Ananth-NQI/segurobot-backend/internal/models"
)

// ErrNotFound is returned when a lookup matches nothing
var ErrNotFound = errors.New("not found")

// Store defines the interface for storage operations
type Store interface {
	// Quote operations
	CreateQuote(quote *models.QuoteRecord) (*models.QuoteRecord, error)
	ListQuotes(limit int) ([]*models.QuoteRecord, error)
	GetQuotesByPhone(phone string) ([]*models.QuoteRecord, error)

	// Support operations
	CreateSupportTicket(ticket *models.SupportTicket) (*models.SupportTicket, error)
	GetSupportTicket(ticketID string) (*models.SupportTicket, error)
	GetSupportTicketsByUser(userPhone string) ([]*models.SupportTicket, error)
	ListSupportTickets(status string) ([]*models.SupportTicket, error)
	UpdateSupportTicket(ticket *models.SupportTicket) error

	// State snapshot operations
	SaveSnapshot(snapshot *models.StateSnapshot) error
	LatestSnapshot(kind string) (*models.StateSnapshot, error)
}
