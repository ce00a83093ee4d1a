package storage

import (
	"errors"
	"fmt"

	"github.com/Ananth-NQI/segurobot-backend/internal/models"
	"gorm.io/gorm"
)

// DatabaseStore implements Store on top of GORM
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a store backed by the given connection
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Migrate creates or updates the tables used by the store
func (d *DatabaseStore) Migrate() error {
	return d.db.AutoMigrate(
		&models.QuoteRecord{},
		&models.SupportTicket{},
		&models.StateSnapshot{},
	)
}

// Quote operations
func (d *DatabaseStore) CreateQuote(quote *models.QuoteRecord) (*models.QuoteRecord, error) {
	if err := d.db.Create(quote).Error; err != nil {
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}
	return quote, nil
}

func (d *DatabaseStore) ListQuotes(limit int) ([]*models.QuoteRecord, error) {
	var quotes []*models.QuoteRecord
	q := d.db.Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&quotes).Error; err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	return quotes, nil
}

func (d *DatabaseStore) GetQuotesByPhone(phone string) ([]*models.QuoteRecord, error) {
	var quotes []*models.QuoteRecord
	if err := d.db.Where("phone = ?", phone).Order("id ASC").Find(&quotes).Error; err != nil {
		return nil, fmt.Errorf("failed to get quotes: %w", err)
	}
	return quotes, nil
}

// Support operations
func (d *DatabaseStore) CreateSupportTicket(ticket *models.SupportTicket) (*models.SupportTicket, error) {
	if err := d.db.Create(ticket).Error; err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}
	return ticket, nil
}

func (d *DatabaseStore) GetSupportTicket(ticketID string) (*models.SupportTicket, error) {
	var ticket models.SupportTicket
	err := d.db.Where("ticket_id = ?", ticketID).First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &ticket, nil
}

func (d *DatabaseStore) GetSupportTicketsByUser(userPhone string) ([]*models.SupportTicket, error) {
	var tickets []*models.SupportTicket
	if err := d.db.Where("user_phone = ?", userPhone).Order("id DESC").Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to get tickets: %w", err)
	}
	return tickets, nil
}

func (d *DatabaseStore) ListSupportTickets(status string) ([]*models.SupportTicket, error) {
	var tickets []*models.SupportTicket
	q := d.db.Order("id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

func (d *DatabaseStore) UpdateSupportTicket(ticket *models.SupportTicket) error {
	res := d.db.Model(&models.SupportTicket{}).
		Where("ticket_id = ?", ticket.TicketID).
		Updates(map[string]interface{}{
			"status":      ticket.Status,
			"description": ticket.Description,
			"resolved_at": ticket.ResolvedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update ticket: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("ticket %s: %w", ticket.TicketID, ErrNotFound)
	}
	return nil
}

// Snapshot operations. Only one "current" row is kept; backups accumulate.
func (d *DatabaseStore) SaveSnapshot(snapshot *models.StateSnapshot) error {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		if snapshot.Kind == models.SnapshotKindCurrent {
			if err := tx.Unscoped().Where("kind = ?", models.SnapshotKindCurrent).Delete(&models.StateSnapshot{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(snapshot).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (d *DatabaseStore) LatestSnapshot(kind string) (*models.StateSnapshot, error) {
	var snapshot models.StateSnapshot
	err := d.db.Where("kind = ?", kind).Order("id DESC").First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s snapshot: %w", kind, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return &snapshot, nil
}
