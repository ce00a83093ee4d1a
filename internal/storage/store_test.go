package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Ananth-NQI/segurobot-backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDatabaseStore(t *testing.T) *DatabaseStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	store := NewDatabaseStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return store
}

// storeFactories runs each contract test against both implementations
func storeFactories(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory":   NewMemoryStore(),
		"database": newTestDatabaseStore(t),
	}
}

func TestStoreQuotes(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				_, err := store.CreateQuote(&models.QuoteRecord{
					Name:          fmt.Sprintf("Cliente %d", i),
					Phone:         "+5519999990000",
					InsuranceType: models.InsuranceAuto,
				})
				if err != nil {
					t.Fatalf("CreateQuote failed: %v", err)
				}
			}
			_, _ = store.CreateQuote(&models.QuoteRecord{Name: "Outro", Phone: "+5519888880000"})

			latest, err := store.ListQuotes(2)
			if err != nil {
				t.Fatalf("ListQuotes failed: %v", err)
			}
			if len(latest) != 2 {
				t.Fatalf("Expected 2 quotes, got %d", len(latest))
			}
			if latest[0].Name != "Outro" {
				t.Errorf("Expected newest quote first, got %s", latest[0].Name)
			}
			if latest[0].RecordID == "" {
				t.Error("RecordID should be generated")
			}

			byPhone, err := store.GetQuotesByPhone("+5519999990000")
			if err != nil {
				t.Fatalf("GetQuotesByPhone failed: %v", err)
			}
			if len(byPhone) != 3 {
				t.Errorf("Expected 3 quotes for phone, got %d", len(byPhone))
			}
		})
	}
}

func TestStoreSupportTickets(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			created, err := store.CreateSupportTicket(&models.SupportTicket{
				TicketID:    "SIN-0001",
				UserPhone:   "+5519999990000",
				IssueType:   models.IssueTypeClaim,
				Description: "Batida leve no estacionamento",
			})
			if err != nil {
				t.Fatalf("CreateSupportTicket failed: %v", err)
			}
			if created.Status != models.TicketStatusOpen {
				t.Errorf("Expected open status, got %s", created.Status)
			}

			got, err := store.GetSupportTicket("SIN-0001")
			if err != nil {
				t.Fatalf("GetSupportTicket failed: %v", err)
			}
			if got.IssueType != models.IssueTypeClaim {
				t.Errorf("Expected claim ticket, got %s", got.IssueType)
			}

			got.Status = models.TicketStatusResolved
			if err := store.UpdateSupportTicket(got); err != nil {
				t.Fatalf("UpdateSupportTicket failed: %v", err)
			}

			open, _ := store.ListSupportTickets(models.TicketStatusOpen)
			if len(open) != 0 {
				t.Errorf("Expected no open tickets, got %d", len(open))
			}
			mine, _ := store.GetSupportTicketsByUser("+5519999990000")
			if len(mine) != 1 {
				t.Errorf("Expected 1 ticket for user, got %d", len(mine))
			}

			_, err = store.GetSupportTicket("missing")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreSnapshots(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.LatestSnapshot(models.SnapshotKindCurrent); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Expected ErrNotFound on empty store, got %v", err)
			}

			_ = store.SaveSnapshot(&models.StateSnapshot{Kind: models.SnapshotKindCurrent, Document: []byte(`{"v":1}`)})
			_ = store.SaveSnapshot(&models.StateSnapshot{Kind: models.SnapshotKindBackup, Document: []byte(`{"v":2}`)})
			_ = store.SaveSnapshot(&models.StateSnapshot{Kind: models.SnapshotKindCurrent, Document: []byte(`{"v":3}`)})

			latest, err := store.LatestSnapshot(models.SnapshotKindCurrent)
			if err != nil {
				t.Fatalf("LatestSnapshot failed: %v", err)
			}
			if string(latest.Document) != `{"v":3}` {
				t.Errorf("Expected newest current snapshot, got %s", latest.Document)
			}
		})
	}
}
